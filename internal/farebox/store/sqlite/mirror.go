// Package sqlite implements the archival mirror on SQLite. The mirror
// holds an unbounded copy of events and trips plus the live count
// snapshot; it is written after the durable CSV append and never read
// back for reconciliation.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/transitpi/farebox/internal/db"
	"github.com/transitpi/farebox/internal/farebox/store"
	"github.com/transitpi/farebox/internal/farebox/types"
)

type Mirror struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewMirror(sqlDB *sql.DB, writer *dbpkg.Worker) *Mirror {
	return &Mirror{db: sqlDB, writer: writer}
}

func (m *Mirror) MirrorEvent(ctx context.Context, rec store.EventAppend) error {
	at := rec.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return m.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO events(received_at_ms, type, payload) VALUES (?, ?, ?);
`, at.UTC().UnixMilli(), rec.Type, string(rec.Payload)); err != nil {
			return fmt.Errorf("MirrorEvent insert: %w", err)
		}
		return nil
	})
}

func (m *Mirror) MirrorTrip(ctx context.Context, trip types.Trip) error {
	return m.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO trips(
  passenger_id, display_name, source, entry_at_ms, exit_at_ms, duration_min, fare
) VALUES (?, ?, ?, ?, ?, ?, ?);
`,
			trip.ID, trip.DisplayName, string(trip.Namespace),
			trip.EntryTime.UTC().UnixMilli(), trip.ExitTime.UTC().UnixMilli(),
			trip.DurationMinutes, trip.Fare,
		); err != nil {
			return fmt.Errorf("MirrorTrip insert: %w", err)
		}
		return nil
	})
}

func (m *Mirror) MirrorCount(ctx context.Context, snap types.Snapshot) error {
	at := snap.TakenAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return m.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO passenger_count(id, total, rfid, wifi, updated_at_ms)
VALUES (1, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  total = excluded.total,
  rfid = excluded.rfid,
  wifi = excluded.wifi,
  updated_at_ms = excluded.updated_at_ms;
`, snap.Total, snap.RFID, snap.Wifi, at.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("MirrorCount upsert: %w", err)
		}
		return nil
	})
}
