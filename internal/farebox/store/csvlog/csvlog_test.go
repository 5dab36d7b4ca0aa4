package csvlog_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/transitpi/farebox/internal/farebox/store"
	"github.com/transitpi/farebox/internal/farebox/store/csvlog"
	"github.com/transitpi/farebox/internal/farebox/types"
)

var t0 = time.Date(2025, 11, 7, 14, 0, 0, 0, time.UTC)

func TestEventLog_AppendThenRows(t *testing.T) {
	ctx := context.Background()
	l := csvlog.NewEventLog(filepath.Join(t.TempDir(), "events_log.csv"))

	if err := l.Append(ctx, store.EventAppend{At: t0, Type: "rfid", Payload: []byte(`{"type":"rfid","uid":"A1"}`)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Append(ctx, store.EventAppend{At: t0.Add(time.Minute), Type: "wifi_event", Payload: []byte(`{"type":"wifi_event","mac":"DE:AD","event":"connected"}`)}); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, err := l.Rows(ctx)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	// Header plus two records.
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "timestamp" || rows[0][1] != "type" {
		t.Errorf("expected header row first, got %v", rows[0])
	}
	if rows[1][1] != "rfid" {
		t.Errorf("row 1 type = %q, want rfid", rows[1][1])
	}
	if rows[2][2] != `{"type":"wifi_event","mac":"DE:AD","event":"connected"}` {
		t.Errorf("payload not preserved verbatim: %q", rows[2][2])
	}
}

func TestEventLog_MissingFileIsEmpty(t *testing.T) {
	l := csvlog.NewEventLog(filepath.Join(t.TempDir(), "absent.csv"))
	rows, err := l.Rows(context.Background())
	if err != nil {
		t.Fatalf("rows on missing file: %v", err)
	}
	if rows != nil {
		t.Errorf("expected no rows, got %v", rows)
	}
}

func TestEventLog_HeaderWrittenOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events_log.csv")

	// Two separate store instances on the same file, as across process
	// restarts.
	if err := csvlog.NewEventLog(path).Append(ctx, store.EventAppend{At: t0, Type: "rfid", Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := csvlog.NewEventLog(path).Append(ctx, store.EventAppend{At: t0, Type: "rfid", Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, err := csvlog.NewEventLog(path).Rows(ctx)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 records, got %d rows", len(rows))
	}
}

func TestTripLedger_AppendThenAll(t *testing.T) {
	ctx := context.Background()
	l := csvlog.NewTripLedger(filepath.Join(t.TempDir(), "trip_log.csv"))

	trip := types.Trip{
		ID:              "A1B2",
		DisplayName:     "Asha",
		Namespace:       types.NamespaceRFID,
		EntryTime:       t0,
		ExitTime:        t0.Add(6 * time.Minute),
		DurationMinutes: 6,
		Fare:            12,
	}
	if err := l.Append(ctx, trip); err != nil {
		t.Fatalf("append: %v", err)
	}

	trips, err := l.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(trips) != 1 {
		t.Fatalf("expected 1 trip, got %d", len(trips))
	}
	got := trips[0]
	if got.ID != "A1B2" || got.DisplayName != "Asha" || got.Namespace != types.NamespaceRFID {
		t.Errorf("identity fields lost: %+v", got)
	}
	if got.DurationMinutes != 6 || got.Fare != 12 {
		t.Errorf("numeric fields = %v/%v, want 6/12", got.DurationMinutes, got.Fare)
	}
	if !got.EntryTime.Equal(t0) || !got.ExitTime.Equal(t0.Add(6*time.Minute)) {
		t.Errorf("times = %v/%v", got.EntryTime, got.ExitTime)
	}
}

func TestTripLedger_ToleratesBadNumericColumns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trip_log.csv")
	l := csvlog.NewTripLedger(path)

	if err := l.Append(ctx, types.Trip{ID: "X", Namespace: types.NamespaceWifi, EntryTime: t0, ExitTime: t0, Fare: 10}); err != nil {
		t.Fatalf("append: %v", err)
	}
	// Simulate an old hand-written row with a bad fare column.
	appendRaw(t, path, "Y,Someone,2025-11-07T14:00:00Z,2025-11-07T14:05:00Z,5.00,not-a-number,rfid\n")

	trips, err := l.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(trips) != 2 {
		t.Fatalf("expected 2 trips, got %d", len(trips))
	}
	if trips[1].Fare != 0 {
		t.Errorf("bad fare should degrade to 0, got %v", trips[1].Fare)
	}
}
