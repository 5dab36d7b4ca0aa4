package httpapi

import (
	"math"
	"time"

	"github.com/transitpi/farebox/internal/farebox/service"
	"github.com/transitpi/farebox/internal/farebox/types"
)

// API payload shapes. Field names are fixed: the dashboard page and
// existing consumers of the old viewer read exactly these keys.

type apiEvent struct {
	TS     string `json:"ts"`
	Source string `json:"source"`
	ID     string `json:"id"`
	Action string `json:"action"`
	Raw    any    `json:"raw"`
}

type apiTrip struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	EntryTime   string  `json:"entry_time"`
	ExitTime    string  `json:"exit_time"`
	DurationMin float64 `json:"duration_min"`
	Fare        float64 `json:"fare"`
	Source      string  `json:"source"`
}

type apiStatus struct {
	PassengersTotal int       `json:"passengers_total"`
	PassengersRFID  int       `json:"passengers_rfid"`
	PassengersWifi  int       `json:"passengers_wifi"`
	OnboardRFID     []string  `json:"onboard_rfid"`
	OnboardWifi     []string  `json:"onboard_wifi"`
	TotalFare       float64   `json:"total_fare"`
	LastEvent       *apiEvent `json:"last_event"`
}

type apiTrips struct {
	TotalFare float64   `json:"total_fare"`
	Trips     []apiTrip `json:"trips"`
}

func eventToAPI(e types.Event) apiEvent {
	return apiEvent{
		TS:     e.Timestamp(),
		Source: e.Source,
		ID:     e.ID,
		Action: string(e.Action),
		Raw:    e.Raw,
	}
}

func eventsToAPI(events []types.Event) []apiEvent {
	out := make([]apiEvent, 0, len(events))
	for _, e := range events {
		out = append(out, eventToAPI(e))
	}
	return out
}

func tripToAPI(t types.Trip) apiTrip {
	return apiTrip{
		ID:          t.ID,
		Name:        t.DisplayName,
		EntryTime:   t.EntryTime.Format(time.RFC3339Nano),
		ExitTime:    t.ExitTime.Format(time.RFC3339Nano),
		DurationMin: math.Round(t.DurationMinutes*100) / 100,
		Fare:        t.Fare,
		Source:      string(t.Namespace),
	}
}

func statusToAPI(r service.StatusReport) apiStatus {
	out := apiStatus{
		PassengersTotal: r.Snapshot.Total,
		PassengersRFID:  r.Snapshot.RFID,
		PassengersWifi:  r.Snapshot.Wifi,
		OnboardRFID:     r.Snapshot.OnboardRFID,
		OnboardWifi:     r.Snapshot.OnboardWifi,
		TotalFare:       r.TotalFare,
	}
	if r.LastEvent != nil {
		ev := eventToAPI(*r.LastEvent)
		out.LastEvent = &ev
	}
	return out
}

func tripsToAPI(r service.TripsReport) apiTrips {
	out := apiTrips{TotalFare: r.TotalFare, Trips: make([]apiTrip, 0, len(r.Trips))}
	for _, t := range r.Trips {
		out.Trips = append(out.Trips, tripToAPI(t))
	}
	return out
}
