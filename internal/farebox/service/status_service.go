// Package service derives the viewer's state. Nothing here holds state
// between queries: every call re-reads the event log, replays it
// through a fresh reconciler, and reads the trip ledger. Trips come
// from two places: the ledger (written by the live ingester) and trips
// derived on replay from legacy pre-resolved rows, whose writer kept
// no ledger this process can read. Full replay is always correct; the
// log stays small enough (hours to days of one vehicle) that the
// O(log) cost per query is acceptable.
package service

import (
	"context"
	"math"
	"sort"

	"github.com/transitpi/farebox/internal/farebox/fare"
	"github.com/transitpi/farebox/internal/farebox/logparse"
	"github.com/transitpi/farebox/internal/farebox/reconcile"
	"github.com/transitpi/farebox/internal/farebox/store"
	"github.com/transitpi/farebox/internal/farebox/types"
)

type StatusService struct {
	events store.EventLog
	ledger store.TripLedger
	policy fare.Policy
	names  reconcile.NameResolver
}

func NewStatusService(events store.EventLog, ledger store.TripLedger, policy fare.Policy, names reconcile.NameResolver) *StatusService {
	return &StatusService{events: events, ledger: ledger, policy: policy, names: names}
}

// StatusReport is the live view served by /api/status.
type StatusReport struct {
	Snapshot  types.Snapshot
	TotalFare float64
	LastEvent *types.Event
}

// TripsReport is the ledger view served by /api/trips.
type TripsReport struct {
	TotalFare float64
	Trips     []types.Trip
}

// Status recomputes the onboard state from scratch and aggregates the
// fare total over ledgered and legacy-derived trips.
func (s *StatusService) Status(ctx context.Context) (StatusReport, error) {
	events, _, snap, err := s.replay(ctx)
	if err != nil {
		return StatusReport{}, err
	}

	report, err := s.RecentTrips(ctx, 0)
	if err != nil {
		return StatusReport{}, err
	}

	out := StatusReport{Snapshot: snap, TotalFare: report.TotalFare}
	if len(events) > 0 {
		last := events[len(events)-1]
		out.LastEvent = &last
	}
	return out, nil
}

// RecentEvents replays the log and returns the last n reconciled
// events, oldest first.
func (s *StatusService) RecentEvents(ctx context.Context, n int) ([]types.Event, error) {
	events, _, _, err := s.replay(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}

// RecentTrips returns the last n trips ordered by exit time, oldest
// first: ledgered trips merged with trips derived from legacy log rows.
// The fare total covers all of them (not just the returned window),
// rounded to currency precision at this presentation boundary.
func (s *StatusService) RecentTrips(ctx context.Context, n int) (TripsReport, error) {
	_, legacy, _, err := s.replay(ctx)
	if err != nil {
		return TripsReport{}, err
	}
	ledgered, err := s.ledger.All(ctx)
	if err != nil {
		return TripsReport{}, err
	}

	trips := make([]types.Trip, 0, len(legacy)+len(ledgered))
	trips = append(trips, legacy...)
	trips = append(trips, ledgered...)
	sort.SliceStable(trips, func(i, j int) bool {
		return trips[i].ExitTime.Before(trips[j].ExitTime)
	})

	total := 0.0
	for _, t := range trips {
		total += t.Fare
	}
	if n > 0 && len(trips) > n {
		trips = trips[len(trips)-n:]
	}
	return TripsReport{TotalFare: roundCurrency(total), Trips: trips}, nil
}

// replay parses the full event log, orders it, and runs it through a
// fresh reconciler. Observation rows get their action from
// reconciliation; pre-resolved rows update bookkeeping directly; rows
// that decode as unknown pass through untouched. Trips from canonical
// rows are discarded (the ingester ledgered them at observation time),
// while trips closed by legacy pre-resolved rows are collected — no
// ledger of theirs exists to read them back from.
func (s *StatusService) replay(ctx context.Context) ([]types.Event, []types.Trip, types.Snapshot, error) {
	raw, err := s.events.Rows(ctx)
	if err != nil {
		return nil, nil, types.Snapshot{}, err
	}

	rows := logparse.Parse(raw)
	logparse.SortEvents(rows)

	rec := reconcile.New(s.policy, s.names)
	events := make([]types.Event, 0, len(rows))
	var legacy []types.Trip
	for _, row := range rows {
		ev := row.Event
		switch row.Kind {
		case logparse.KindObservation:
			if act, _ := rec.Observe(row.Obs); act != types.ActionUnknown {
				ev.Action = act
			}
		case logparse.KindResolved:
			if trip := rec.ApplyResolved(row.Obs.Namespace, row.Obs.ID, row.Resolved, row.Obs.At); trip != nil {
				legacy = append(legacy, *trip)
			}
		}
		events = append(events, ev)
	}
	return events, legacy, rec.Snapshot(), nil
}

func roundCurrency(v float64) float64 {
	return math.Round(v*100) / 100
}
