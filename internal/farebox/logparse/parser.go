// Package logparse reconstructs event records from the persisted event
// log, whose row encoding changed over the system's lifetime. Every row
// is classified into exactly one known shape before any semantic
// processing:
//
//	canonical  timestamp, type, json-payload
//	legacy     timestamp, identifier, action, source  (4+ columns)
//	unknown    anything else — preserved verbatim, never dropped
//
// Canonical rows yield observations that must go through full
// reconciliation. Legacy rows carry a pre-resolved entry/exit action
// and bypass toggle inference entirely: that format computed direction
// at write time, and re-inferring it would desync the RFID toggle.
package logparse

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/transitpi/farebox/internal/farebox/types"
)

// Kind tags the decode outcome for one row.
type Kind int

const (
	// KindObservation rows carry a raw presence signal and require
	// reconciliation.
	KindObservation Kind = iota
	// KindResolved rows carry a pre-computed entry/exit action.
	KindResolved
	// KindUnknown rows could not be interpreted; they are kept for the
	// audit trail and never touch the onboard set.
	KindUnknown
)

// Row is the decoded form of one log line.
type Row struct {
	Kind  Kind
	Event types.Event
	// Obs is set for KindObservation and, for KindResolved, carries the
	// namespace/identifier/time the resolved action applies to.
	Obs types.Observation
	// Resolved is the bookkeeping action for KindResolved rows. It may
	// differ from Event.Action, which preserves the verbatim column
	// value for display (e.g. "connected" resolves to entry).
	Resolved types.Action
}

// Field-name aliases for identifiers embedded in canonical payloads,
// consulted in priority order. This list is part of the parser's
// contract with historical log writers.
var (
	rfidIDAliases = []string{"uid", "id"}
	wifiIDAliases = []string{"mac", "addr", "mac_addr"}
)

// Parse decodes all rows. Header rows are skipped; every other input
// row produces exactly one output row. A decode failure on one row
// never aborts the rest — the row degrades to the legacy or unknown
// path.
func Parse(rows [][]string) []Row {
	out := make([]Row, 0, len(rows))
	for _, cols := range rows {
		if row, ok := parseRow(cols); ok {
			out = append(out, row)
		}
	}
	return out
}

func parseRow(cols []string) (Row, bool) {
	if len(cols) == 0 {
		return Row{}, false
	}
	if isHeader(cols) {
		return Row{}, false
	}

	tsRaw := strings.TrimSpace(cols[0])
	ts, parsed := parseTimestamp(tsRaw)

	base := types.Event{
		Time:       ts,
		TimeRaw:    tsRaw,
		TimeParsed: parsed,
		Action:     types.ActionUnknown,
	}

	if len(cols) < 3 {
		base.Raw = rawColumns(cols)
		base.Source = ""
		return Row{Kind: KindUnknown, Event: base}, true
	}

	outerType := strings.TrimSpace(cols[1])
	payload := strings.TrimSpace(cols[2])

	var inner map[string]any
	if err := json.Unmarshal([]byte(payload), &inner); err == nil && inner != nil {
		return canonicalRow(base, outerType, inner), true
	}

	if len(cols) >= 4 {
		return legacyRow(base, cols), true
	}

	base.Source = outerType
	base.Raw = rawColumns(cols)
	return Row{Kind: KindUnknown, Event: base}, true
}

// canonicalRow interprets a timestamp,type,json row. The embedded
// payload wins over the outer type column when both disagree — it is
// closer to ground truth at write time.
func canonicalRow(base types.Event, outerType string, inner map[string]any) Row {
	innerType := stringField(inner, "type")
	base.Raw = inner

	switch {
	case innerType == "wifi_event" || outerType == "wifi_event" || strings.Contains(innerType, "wifi"):
		mac := strings.ToUpper(firstAlias(inner, wifiIDAliases))
		ev := strings.ToLower(stringField(inner, "event"))

		base.Source = string(types.NamespaceWifi)
		base.ID = mac
		obs := types.Observation{At: base.Time, Namespace: types.NamespaceWifi, ID: mac}

		switch ev {
		case "connected":
			obs.Signal = types.SignalConnected
		case "disconnected":
			obs.Signal = types.SignalDisconnected
		default:
			// Unrecognized Wi-Fi event value: keep it as the displayed
			// action, do not reconcile.
			if ev != "" {
				base.Action = types.Action(ev)
			}
			return Row{Kind: KindUnknown, Event: base}
		}
		return Row{Kind: KindObservation, Event: base, Obs: obs}

	case innerType == "rfid" || outerType == "rfid" || strings.Contains(innerType, "rfid"):
		uid := strings.ToUpper(firstAlias(inner, rfidIDAliases))
		base.Source = string(types.NamespaceRFID)
		base.ID = uid
		obs := types.Observation{
			At:        base.Time,
			Namespace: types.NamespaceRFID,
			ID:        uid,
			Signal:    types.SignalTap,
		}
		return Row{Kind: KindObservation, Event: base, Obs: obs}
	}

	source := innerType
	if source == "" {
		source = outerType
	}
	base.Source = source
	base.ID = strings.ToUpper(firstAlias(inner, append(rfidIDAliases, wifiIDAliases...)))
	return Row{Kind: KindUnknown, Event: base}
}

// legacyRow interprets a timestamp,identifier,action,source row written
// by earlier log versions. The action column is taken as-is; the toggle
// model is never consulted for these.
func legacyRow(base types.Event, cols []string) Row {
	id := strings.ToUpper(strings.TrimSpace(cols[1]))
	action := strings.ToLower(strings.TrimSpace(cols[2]))
	source := strings.ToLower(strings.TrimSpace(cols[3]))

	base.ID = id
	if action != "" {
		base.Action = types.Action(action)
	}
	base.Raw = map[string]any{"pid": cols[1], "event": action, "type": source}

	switch source {
	case "rfid":
		base.Source = string(types.NamespaceRFID)
		return Row{
			Kind:     KindResolved,
			Event:    base,
			Obs:      types.Observation{At: base.Time, Namespace: types.NamespaceRFID, ID: id},
			Resolved: resolveLegacyAction(action),
		}
	case "wifi", "wifi_event":
		base.Source = string(types.NamespaceWifi)
		return Row{
			Kind:     KindResolved,
			Event:    base,
			Obs:      types.Observation{At: base.Time, Namespace: types.NamespaceWifi, ID: id},
			Resolved: resolveLegacyAction(action),
		}
	}

	base.Source = source
	base.Raw = rawColumns(cols)
	return Row{Kind: KindUnknown, Event: base}
}

// resolveLegacyAction maps legacy action spellings onto the two actions
// that affect bookkeeping. Anything else resolves to unknown, which
// ApplyResolved ignores.
func resolveLegacyAction(action string) types.Action {
	switch action {
	case "entry", "connected":
		return types.ActionEntry
	case "exit", "disconnected":
		return types.ActionExit
	}
	return types.ActionUnknown
}

func isHeader(cols []string) bool {
	if len(cols) < 2 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(cols[0]))
	second := strings.ToLower(strings.TrimSpace(cols[1]))
	return (first == "timestamp" || first == "time") && second == "type"
}

// timestampLayouts covers RFC 3339 with and without zone offset; the
// original writer used zone-less ISO 8601 local times.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// firstAlias returns the first non-empty string value among the alias
// keys, in priority order.
func firstAlias(m map[string]any, aliases []string) string {
	for _, key := range aliases {
		if v := stringField(m, key); v != "" {
			return v
		}
	}
	return ""
}

func rawColumns(cols []string) map[string]any {
	return map[string]any{"row": append([]string(nil), cols...)}
}
