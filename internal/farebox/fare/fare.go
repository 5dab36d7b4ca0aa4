// Package fare computes trip fares from durations. A flat base fare
// covers everything up to the base duration; only the excess beyond it
// accrues the per-minute surcharge.
package fare

// Policy holds the fare parameters. The zero value is not useful;
// construct with Default or from config.
type Policy struct {
	Base        float64
	BaseMinutes float64
	PerMinute   float64
}

// Default matches the deployed vehicle: 10 base covering 5 minutes,
// then 2 per additional minute.
func Default() Policy {
	return Policy{Base: 10, BaseMinutes: 5, PerMinute: 2}
}

// Fare returns the amount owed for a trip of the given duration in
// minutes. Durations at or under the base threshold cost exactly the
// base fare. Negative durations (clock skew) clamp to zero excess.
// No rounding is applied here; callers decide display precision.
func (p Policy) Fare(durationMinutes float64) float64 {
	excess := durationMinutes - p.BaseMinutes
	if excess <= 0 {
		return p.Base
	}
	return p.Base + excess*p.PerMinute
}
