// Package reconcile turns a time-ordered sequence of presence
// observations into onboard-set transitions and completed trips.
//
// Two disciplines apply, one per namespace:
//
//   - RFID readers emit a single indistinguishable tap, so direction is
//     inferred purely from current presence: no open entry means the tap
//     is an entry, an open entry means it is an exit.
//   - Wi-Fi adapters emit distinct connect/disconnect signals, so the
//     transition is signal-driven: connected always opens an entry
//     (overwriting a stale one from a missed disconnect), disconnected
//     closes the entry if one is open and is a no-op otherwise.
package reconcile

import (
	"sort"
	"time"

	"github.com/transitpi/farebox/internal/farebox/fare"
	"github.com/transitpi/farebox/internal/farebox/types"
)

// NameResolver supplies display names for completed trips.
type NameResolver interface {
	DisplayName(ns types.Namespace, id string) string
}

type onboardKey struct {
	ns types.Namespace
	id string
}

// Reconciler owns the in-memory working set for one reconciliation
// pass. Construct one per ingester process, or one per replay in the
// viewer. Not safe for concurrent use: all records must be funneled
// through a single ordering point before reaching it.
type Reconciler struct {
	policy  fare.Policy
	names   NameResolver
	onboard map[onboardKey]time.Time
}

func New(policy fare.Policy, names NameResolver) *Reconciler {
	return &Reconciler{
		policy:  policy,
		names:   names,
		onboard: make(map[onboardKey]time.Time),
	}
}

// Observe applies one observation and reports the reconciled action
// plus the completed trip, if the observation closed an entry.
//
// A Wi-Fi disconnect with no open entry returns ActionExit with a nil
// trip: the signal is an exit signal, but no observed session started.
// Unrecognized namespace/signal combinations return ActionUnknown and
// leave the working set untouched.
func (r *Reconciler) Observe(obs types.Observation) (types.Action, *types.Trip) {
	key := onboardKey{ns: obs.Namespace, id: obs.ID}

	switch obs.Namespace {
	case types.NamespaceRFID:
		if obs.Signal != types.SignalTap {
			return types.ActionUnknown, nil
		}
		if _, open := r.onboard[key]; !open {
			r.onboard[key] = obs.At
			return types.ActionEntry, nil
		}
		return types.ActionExit, r.close(key, obs.At)

	case types.NamespaceWifi:
		switch obs.Signal {
		case types.SignalConnected:
			// Overwrite any stale entry: a missed disconnect means the
			// previous session silently ended.
			r.onboard[key] = obs.At
			return types.ActionEntry, nil
		case types.SignalDisconnected:
			if _, open := r.onboard[key]; !open {
				return types.ActionExit, nil
			}
			return types.ActionExit, r.close(key, obs.At)
		}
	}
	return types.ActionUnknown, nil
}

// ApplyResolved updates the onboard set from a record whose direction
// was already resolved by an earlier log writer. Toggle inference is
// bypassed: re-inferring direction from a pre-resolved record would
// desync the RFID toggle. An exit that closes an open entry returns
// the completed trip, timed from the two row timestamps; callers that
// already hold the trip elsewhere discard it. Actions other than
// entry/exit are ignored.
func (r *Reconciler) ApplyResolved(ns types.Namespace, id string, action types.Action, at time.Time) *types.Trip {
	key := onboardKey{ns: ns, id: id}
	switch action {
	case types.ActionEntry:
		r.onboard[key] = at
	case types.ActionExit:
		if _, open := r.onboard[key]; open {
			return r.close(key, at)
		}
	}
	return nil
}

// close removes the entry and builds the trip for it. The entry must
// exist.
func (r *Reconciler) close(key onboardKey, exitAt time.Time) *types.Trip {
	entryAt := r.onboard[key]
	delete(r.onboard, key)

	duration := exitAt.Sub(entryAt).Minutes()
	name := "RFID_" + key.id
	if key.ns == types.NamespaceWifi {
		name = "WiFiUser_" + key.id
	}
	if r.names != nil {
		name = r.names.DisplayName(key.ns, key.id)
	}

	return &types.Trip{
		ID:              key.id,
		DisplayName:     name,
		Namespace:       key.ns,
		EntryTime:       entryAt,
		ExitTime:        exitAt,
		DurationMinutes: duration,
		Fare:            r.policy.Fare(duration),
	}
}

// Onboard reports the current onboard count for one namespace.
func (r *Reconciler) Onboard(ns types.Namespace) int {
	n := 0
	for key := range r.onboard {
		if key.ns == ns {
			n++
		}
	}
	return n
}

// Snapshot returns the current onboard state with member lists sorted
// for stable output.
func (r *Reconciler) Snapshot() types.Snapshot {
	snap := types.Snapshot{
		OnboardRFID: []string{},
		OnboardWifi: []string{},
		TakenAt:     time.Now().UTC(),
	}
	for key := range r.onboard {
		switch key.ns {
		case types.NamespaceRFID:
			snap.OnboardRFID = append(snap.OnboardRFID, key.id)
		case types.NamespaceWifi:
			snap.OnboardWifi = append(snap.OnboardWifi, key.id)
		}
	}
	sort.Strings(snap.OnboardRFID)
	sort.Strings(snap.OnboardWifi)
	snap.RFID = len(snap.OnboardRFID)
	snap.Wifi = len(snap.OnboardWifi)
	snap.Total = snap.RFID + snap.Wifi
	return snap
}
