package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/transitpi/farebox/internal/farebox/directory"
	"github.com/transitpi/farebox/internal/farebox/fare"
	"github.com/transitpi/farebox/internal/farebox/service"
	"github.com/transitpi/farebox/internal/farebox/store"
	"github.com/transitpi/farebox/internal/farebox/store/memory"
	"github.com/transitpi/farebox/internal/farebox/types"
)

var t0 = time.Date(2025, 11, 7, 14, 0, 0, 0, time.UTC)

func newTestService() (*service.StatusService, *memory.EventLog, *memory.TripLedger) {
	events := memory.NewEventLog()
	ledger := memory.NewTripLedger()
	svc := service.NewStatusService(events, ledger, fare.Default(), directory.New(nil))
	return svc, events, ledger
}

func appendEvent(t *testing.T, log *memory.EventLog, at time.Time, msgType, payload string) {
	t.Helper()
	err := log.Append(context.Background(), store.EventAppend{At: at, Type: msgType, Payload: []byte(payload)})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestStatus_ReplaysOnboardStateFromLog(t *testing.T) {
	svc, events, _ := newTestService()

	appendEvent(t, events, t0, "rfid", `{"type":"rfid","uid":"a1"}`)
	appendEvent(t, events, t0.Add(time.Minute), "wifi_event", `{"type":"wifi_event","mac":"de:ad","event":"connected"}`)
	appendEvent(t, events, t0.Add(2*time.Minute), "rfid", `{"type":"rfid","uid":"b2"}`)
	appendEvent(t, events, t0.Add(3*time.Minute), "rfid", `{"type":"rfid","uid":"a1"}`)

	report, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	snap := report.Snapshot
	if snap.RFID != 1 || snap.Wifi != 1 || snap.Total != 2 {
		t.Errorf("counts = %d/%d/%d, want 1/1/2", snap.RFID, snap.Wifi, snap.Total)
	}
	if len(snap.OnboardRFID) != 1 || snap.OnboardRFID[0] != "B2" {
		t.Errorf("onboard rfid = %v, want [B2]", snap.OnboardRFID)
	}
	if report.LastEvent == nil || report.LastEvent.Action != types.ActionExit {
		t.Errorf("last event = %+v, want A1's exit", report.LastEvent)
	}
}

func TestStatus_ReplayIsIdempotentAcrossQueries(t *testing.T) {
	svc, events, _ := newTestService()

	appendEvent(t, events, t0, "rfid", `{"type":"rfid","uid":"a1"}`)
	appendEvent(t, events, t0.Add(time.Minute), "wifi_event", `{"type":"wifi_event","mac":"de:ad","event":"connected"}`)

	first, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	second, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if first.Snapshot.Total != second.Snapshot.Total ||
		first.Snapshot.RFID != second.Snapshot.RFID ||
		first.Snapshot.Wifi != second.Snapshot.Wifi {
		t.Errorf("replay diverged between queries: %+v vs %+v", first.Snapshot, second.Snapshot)
	}
}

func TestRecentEvents_AnnotatesActionsAndCaps(t *testing.T) {
	svc, events, _ := newTestService()

	appendEvent(t, events, t0, "rfid", `{"type":"rfid","uid":"a1"}`)
	appendEvent(t, events, t0.Add(time.Minute), "rfid", `{"type":"rfid","uid":"a1"}`)
	appendEvent(t, events, t0.Add(2*time.Minute), "rfid", `{"type":"rfid","uid":"a1"}`)

	all, err := svc.RecentEvents(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	wantActions := []types.Action{types.ActionEntry, types.ActionExit, types.ActionEntry}
	for i, want := range wantActions {
		if all[i].Action != want {
			t.Errorf("event %d action = %s, want %s", i, all[i].Action, want)
		}
	}

	capped, err := svc.RecentEvents(context.Background(), 2)
	if err != nil {
		t.Fatalf("RecentEvents capped: %v", err)
	}
	if len(capped) != 2 {
		t.Fatalf("expected 2 events with cap, got %d", len(capped))
	}
	if capped[0].Action != types.ActionExit || capped[1].Action != types.ActionEntry {
		t.Errorf("cap must keep the most recent events, got %v then %v", capped[0].Action, capped[1].Action)
	}
}

func TestReplay_LegacyRowsBypassToggle(t *testing.T) {
	svc, events, _ := newTestService()

	// Legacy writer recorded pre-resolved directions. Re-inferring by
	// toggle would read the second row as an entry; the resolved path
	// must not.
	events.AppendRaw([]string{"2025-11-07T14:25:00", "ABCD1234", "entry", "rfid"})
	events.AppendRaw([]string{"2025-11-07T14:30:00", "ABCD1234", "exit", "rfid"})

	report, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if report.Snapshot.RFID != 0 {
		t.Errorf("onboard rfid = %d after entry/exit pair, want 0", report.Snapshot.RFID)
	}

	evs, err := svc.RecentEvents(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("expected both legacy rows preserved, got %d", len(evs))
	}
	if evs[0].Action != types.ActionEntry || evs[1].Action != types.ActionExit {
		t.Errorf("legacy actions = %s/%s, want entry/exit verbatim", evs[0].Action, evs[1].Action)
	}
}

func TestReplay_MixedFormatsInOneLog(t *testing.T) {
	svc, events, _ := newTestService()

	events.AppendRaw([]string{"timestamp", "type", "data"})
	events.AppendRaw([]string{"2025-11-07T13:00:00", "CAFE", "entry", "rfid"})
	appendEvent(t, events, t0, "wifi_event", `{"type":"wifi_event","mac":"de:ad","event":"connected"}`)
	events.AppendRaw([]string{"garbage-row"})

	report, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if report.Snapshot.RFID != 1 || report.Snapshot.Wifi != 1 {
		t.Errorf("counts = %d/%d, want 1/1", report.Snapshot.RFID, report.Snapshot.Wifi)
	}

	evs, err := svc.RecentEvents(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	// Header is skipped; the garbage row is preserved as unknown.
	if len(evs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evs))
	}
	last := evs[len(evs)-1]
	if last.Action != types.ActionUnknown {
		t.Errorf("garbage row action = %s, want unknown", last.Action)
	}
}

func TestRecentTrips_DerivesTripFromLegacyPair(t *testing.T) {
	svc, events, _ := newTestService()

	// The legacy writer's own ledger is gone; the pair must still
	// surface as one trip, timed from the two row timestamps.
	events.AppendRaw([]string{"2025-11-07T14:25:00", "ABCD1234", "entry", "rfid"})
	events.AppendRaw([]string{"2025-11-07T14:30:00", "ABCD1234", "exit", "rfid"})

	report, err := svc.RecentTrips(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentTrips: %v", err)
	}
	if len(report.Trips) != 1 {
		t.Fatalf("trips = %d, want 1", len(report.Trips))
	}
	trip := report.Trips[0]
	if trip.DurationMinutes != 5 {
		t.Errorf("duration = %v, want 5", trip.DurationMinutes)
	}
	if trip.Fare != 10 {
		t.Errorf("fare = %v, want base fare 10", trip.Fare)
	}
	if trip.DisplayName != "RFID_ABCD1234" {
		t.Errorf("display name = %q, want RFID_ABCD1234", trip.DisplayName)
	}
	if report.TotalFare != 10 {
		t.Errorf("total fare = %v, want 10", report.TotalFare)
	}

	status, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.TotalFare != 10 {
		t.Errorf("status total fare = %v, want 10", status.TotalFare)
	}
}

func TestRecentTrips_MergesLegacyAndLedgeredByExitTime(t *testing.T) {
	svc, events, ledger := newTestService()
	ctx := context.Background()

	events.AppendRaw([]string{"2025-11-07T13:00:00", "CAFE", "entry", "rfid"})
	events.AppendRaw([]string{"2025-11-07T13:06:00", "CAFE", "exit", "rfid"})

	ledgered := types.Trip{
		ID: "A1", Namespace: types.NamespaceRFID,
		EntryTime: t0, ExitTime: t0.Add(3 * time.Minute), Fare: 10,
	}
	if err := ledger.Append(ctx, ledgered); err != nil {
		t.Fatalf("append trip: %v", err)
	}

	report, err := svc.RecentTrips(ctx, 0)
	if err != nil {
		t.Fatalf("RecentTrips: %v", err)
	}
	if len(report.Trips) != 2 {
		t.Fatalf("trips = %d, want 2", len(report.Trips))
	}
	// Legacy exit at 13:06 precedes the ledgered exit at 14:03.
	if report.Trips[0].ID != "CAFE" || report.Trips[1].ID != "A1" {
		t.Errorf("trip order = %s,%s, want CAFE,A1 by exit time",
			report.Trips[0].ID, report.Trips[1].ID)
	}
	// Legacy trip: 6 minutes → 10 + 1*2 = 12. Plus the ledgered 10.
	if report.TotalFare != 22 {
		t.Errorf("total fare = %v, want 22", report.TotalFare)
	}
}

func TestRecentTrips_TotalOverWholeLedger(t *testing.T) {
	svc, _, ledger := newTestService()
	ctx := context.Background()

	fares := []float64{10, 12, 15.5}
	for i, f := range fares {
		trip := types.Trip{
			ID: "T", Namespace: types.NamespaceRFID,
			EntryTime: t0, ExitTime: t0.Add(time.Duration(i) * time.Minute),
			Fare: f,
		}
		if err := ledger.Append(ctx, trip); err != nil {
			t.Fatalf("append trip: %v", err)
		}
	}

	report, err := svc.RecentTrips(ctx, 2)
	if err != nil {
		t.Fatalf("RecentTrips: %v", err)
	}
	if len(report.Trips) != 2 {
		t.Fatalf("expected 2 trips in window, got %d", len(report.Trips))
	}
	// Total covers all three trips, not just the returned window.
	if report.TotalFare != 37.5 {
		t.Errorf("total fare = %v, want 37.5", report.TotalFare)
	}
}
