// Package ingest runs the live loop: read one line from the transport,
// decode it, append it to the durable log, reconcile it, record any
// completed trip, mirror, publish. Records are processed strictly one
// at a time in arrival order; the reconciler's working set is only ever
// touched from this loop.
package ingest

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/transitpi/farebox/internal/farebox/reconcile"
	"github.com/transitpi/farebox/internal/farebox/store"
	"github.com/transitpi/farebox/internal/farebox/types"
	"github.com/transitpi/farebox/internal/transport"
)

// Publisher receives live state after each record. Implementations
// must not block the loop for long; failures are logged, not fatal.
type Publisher interface {
	PublishSnapshot(types.Snapshot) error
	PublishTrip(types.Trip) error
}

// Metrics is the ingester's reporting surface; nil disables it.
type Metrics interface {
	RecordProcessed(msgType string)
	DecodeError()
	TripCompleted(fare float64)
	SetOnboard(rfid, wifi int)
	ObserveHandle(d time.Duration)
}

type Dependencies struct {
	Source     transport.LineSource
	Reconciler *reconcile.Reconciler
	Events     store.EventLog
	Ledger     store.TripLedger
	Mirror     store.Mirror // nil means no mirror
	Publisher  Publisher    // nil means no subscribers
	Metrics    Metrics      // nil disables metrics
	Logger     *log.Logger

	// Now overrides the clock; tests use it to control trip durations.
	Now func() time.Time
}

type Ingester struct {
	source  transport.LineSource
	rec     *reconcile.Reconciler
	events  store.EventLog
	ledger  store.TripLedger
	mirror  store.Mirror
	pub     Publisher
	metrics Metrics
	logger  *log.Logger
	now     func() time.Time
}

func New(d Dependencies) *Ingester {
	mirror := d.Mirror
	if mirror == nil {
		mirror = store.NopMirror{}
	}
	now := d.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Ingester{
		source:  d.Source,
		rec:     d.Reconciler,
		events:  d.Events,
		ledger:  d.Ledger,
		mirror:  mirror,
		pub:     d.Publisher,
		metrics: d.Metrics,
		logger:  d.Logger,
		now:     now,
	}
}

// Run consumes the transport until it ends or ctx is cancelled. No
// record error is fatal: a bad record degrades and the loop continues
// with the next one.
func (i *Ingester) Run(ctx context.Context) error {
	lines, err := i.source.Lines(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			i.handleLine(ctx, line)
		}
	}
}

func (i *Ingester) handleLine(ctx context.Context, line []byte) {
	start := time.Now()
	defer func() {
		if i.metrics != nil {
			i.metrics.ObserveHandle(time.Since(start))
		}
	}()

	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return
	}

	var msg types.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &msg); err != nil {
		i.logger.Printf("undecodable line skipped: %v", err)
		if i.metrics != nil {
			i.metrics.DecodeError()
		}
		return
	}

	now := i.now()

	// Durable append first: the log is the source of truth, so a crash
	// from here on leaves "event recorded, maybe not yet counted" —
	// never the reverse. The append failure path skips reconciliation
	// to keep log and state consistent.
	rec := store.EventAppend{At: now, Type: msg.Type, Payload: []byte(trimmed)}
	if err := i.events.Append(ctx, rec); err != nil {
		i.logger.Printf("event log append failed, record skipped: %v", err)
		return
	}
	if err := i.mirror.MirrorEvent(ctx, rec); err != nil {
		i.logger.Printf("event mirror error: %v", err)
	}
	if i.metrics != nil {
		i.metrics.RecordProcessed(msg.Type)
	}

	i.reconcile(ctx, msg, now)

	snap := i.rec.Snapshot()
	if err := i.mirror.MirrorCount(ctx, snap); err != nil {
		i.logger.Printf("count mirror error: %v", err)
	}
	if i.pub != nil {
		if err := i.pub.PublishSnapshot(snap); err != nil {
			i.logger.Printf("snapshot publish error: %v", err)
		}
	}
	if i.metrics != nil {
		i.metrics.SetOnboard(snap.RFID, snap.Wifi)
	}
	i.logger.Printf("passengers: %d (rfid: %d, wifi: %d)", snap.Total, snap.RFID, snap.Wifi)
}

func (i *Ingester) reconcile(ctx context.Context, msg types.RawMessage, now time.Time) {
	var obs types.Observation
	switch msg.Type {
	case "rfid":
		obs = types.Observation{
			At:        now,
			Namespace: types.NamespaceRFID,
			ID:        strings.ToUpper(strings.TrimSpace(msg.UID)),
			Signal:    types.SignalTap,
		}
	case "wifi_event":
		obs = types.Observation{
			At:        now,
			Namespace: types.NamespaceWifi,
			ID:        strings.ToUpper(strings.TrimSpace(msg.MAC)),
			Signal:    types.Signal(strings.ToLower(strings.TrimSpace(msg.Event))),
		}
	default:
		// Unknown type: logged verbatim above, never reconciled.
		i.logger.Printf("unhandled record type %q", msg.Type)
		return
	}

	action, trip := i.rec.Observe(obs)
	switch action {
	case types.ActionEntry:
		i.logger.Printf("[%s entry] %s at %s", obs.Namespace, obs.ID, now.Format("15:04:05"))
	case types.ActionExit:
		if trip == nil {
			// Wi-Fi disconnect with no observed session start.
			i.logger.Printf("[%s exit] %s (no open entry)", obs.Namespace, obs.ID)
		}
	}

	if trip == nil {
		return
	}

	i.logger.Printf("[%s exit] %s at %s | duration: %.1f min | fare: %v",
		obs.Namespace, trip.DisplayName, now.Format("15:04:05"), trip.DurationMinutes, trip.Fare)

	if err := i.ledger.Append(ctx, *trip); err != nil {
		i.logger.Printf("trip ledger append error: %v", err)
	}
	if err := i.mirror.MirrorTrip(ctx, *trip); err != nil {
		i.logger.Printf("trip mirror error: %v", err)
	}
	if i.pub != nil {
		if err := i.pub.PublishTrip(*trip); err != nil {
			i.logger.Printf("trip publish error: %v", err)
		}
	}
	if i.metrics != nil {
		i.metrics.TripCompleted(trip.Fare)
	}
}
