// Package memory provides in-memory store implementations for tests
// and dev environments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/transitpi/farebox/internal/farebox/store"
	"github.com/transitpi/farebox/internal/farebox/types"
)

// EventLog keeps appended records in memory and renders them as raw
// rows in the canonical encoding, so the parser sees the same shape it
// would read from disk.
type EventLog struct {
	mu   sync.Mutex
	rows [][]string
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

func (l *EventLog) Append(_ context.Context, rec store.EventAppend) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	at := rec.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	l.rows = append(l.rows, []string{at.Format(time.RFC3339Nano), rec.Type, string(rec.Payload)})
	return nil
}

func (l *EventLog) Rows(_ context.Context) ([][]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]string, len(l.rows))
	copy(out, l.rows)
	return out, nil
}

// AppendRaw injects a pre-encoded row, bypassing the canonical
// encoding. Test-only helper for legacy and malformed shapes.
func (l *EventLog) AppendRaw(row []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, row)
}

// TripLedger is an in-memory append-only trip collection.
type TripLedger struct {
	mu    sync.Mutex
	trips []types.Trip
}

func NewTripLedger() *TripLedger {
	return &TripLedger{}
}

func (l *TripLedger) Append(_ context.Context, trip types.Trip) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trips = append(l.trips, trip)
	return nil
}

func (l *TripLedger) All(_ context.Context) ([]types.Trip, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.Trip, len(l.trips))
	copy(out, l.trips)
	return out, nil
}

// Mirror records everything it receives. Test-only inspection helpers
// return copies.
type Mirror struct {
	mu     sync.Mutex
	events []store.EventAppend
	trips  []types.Trip
	counts []types.Snapshot
}

func NewMirror() *Mirror {
	return &Mirror{}
}

func (m *Mirror) MirrorEvent(_ context.Context, rec store.EventAppend) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, rec)
	return nil
}

func (m *Mirror) MirrorTrip(_ context.Context, trip types.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips = append(m.trips, trip)
	return nil
}

func (m *Mirror) MirrorCount(_ context.Context, snap types.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = append(m.counts, snap)
	return nil
}

func (m *Mirror) Events() []store.EventAppend {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.EventAppend, len(m.events))
	copy(out, m.events)
	return out
}

func (m *Mirror) Trips() []types.Trip {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Trip, len(m.trips))
	copy(out, m.trips)
	return out
}

func (m *Mirror) Counts() []types.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Snapshot, len(m.counts))
	copy(out, m.counts)
	return out
}
