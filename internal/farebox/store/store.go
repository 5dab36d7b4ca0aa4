package store

import (
	"context"
	"time"

	"github.com/transitpi/farebox/internal/farebox/types"
)

// EventAppend is one record for the durable event log: the observation
// time, the transport-reported type, and the original payload verbatim
// for archival and audit.
type EventAppend struct {
	At      time.Time
	Type    string
	Payload []byte
}

// EventLog is the durable, append-only record store. Append must be
// durable before it returns: the reconciler's state is only considered
// authoritative for a record after its append succeeded. Rows returns
// every raw row in append order for replay.
type EventLog interface {
	Append(ctx context.Context, rec EventAppend) error
	Rows(ctx context.Context) ([][]string, error)
}

// TripLedger is the append-only collection of completed trips. There
// are no update or delete operations; a mis-recorded trip can only be
// corrected by a compensating append at a higher layer.
type TripLedger interface {
	Append(ctx context.Context, trip types.Trip) error
	All(ctx context.Context) ([]types.Trip, error)
}

// Mirror receives a secondary copy of everything for archival. It is
// never read for reconciliation, and mirror failures must not stop the
// ingest loop.
type Mirror interface {
	MirrorEvent(ctx context.Context, rec EventAppend) error
	MirrorTrip(ctx context.Context, trip types.Trip) error
	MirrorCount(ctx context.Context, snap types.Snapshot) error
}

// NopMirror discards everything. Used when no archival store is
// configured.
type NopMirror struct{}

func (NopMirror) MirrorEvent(context.Context, EventAppend) error    { return nil }
func (NopMirror) MirrorTrip(context.Context, types.Trip) error      { return nil }
func (NopMirror) MirrorCount(context.Context, types.Snapshot) error { return nil }
