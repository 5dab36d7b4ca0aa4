package types

import "time"

// Namespace partitions the identifier space. RFID tag UIDs and Wi-Fi
// hardware addresses never collide even when the raw strings coincide,
// because the namespace is carried alongside the identifier everywhere.
type Namespace string

const (
	NamespaceRFID Namespace = "rfid"
	NamespaceWifi Namespace = "wifi"
)

// Signal is the raw presence signal as observed at the transport.
type Signal string

const (
	SignalTap          Signal = "tap"
	SignalConnected    Signal = "connected"
	SignalDisconnected Signal = "disconnected"
)

// Action is the reconciled direction of an event. Legacy log rows may
// carry other verbatim values (e.g. "connected"); those are preserved
// for display but only entry/exit affect the onboard set.
type Action string

const (
	ActionEntry   Action = "entry"
	ActionExit    Action = "exit"
	ActionUnknown Action = "unknown"
)

// RawMessage is the decoded shape of one transport line. Two known
// shapes share it:
//
//	{ "type": "rfid", "uid": "<hex>" }
//	{ "type": "wifi_event", "mac": "<hex>", "event": "connected"|"disconnected" }
//
// Any other type value is logged verbatim but never reconciled.
type RawMessage struct {
	Type  string `json:"type"`
	UID   string `json:"uid,omitempty"`
	MAC   string `json:"mac,omitempty"`
	Event string `json:"event,omitempty"`
}

// Observation is one normalized presence fact fed to the reconciler.
// ID is upper-cased before it gets here.
type Observation struct {
	At        time.Time
	Namespace Namespace
	ID        string
	Signal    Signal
}

// Event is a reconciled (or preserved-as-unknown) record as exposed to
// the query surface. Time is only meaningful when TimeParsed is true;
// TimeRaw always holds the original timestamp column so rows with
// unparseable timestamps survive for audit and display.
type Event struct {
	Time       time.Time
	TimeRaw    string
	TimeParsed bool
	Source     string
	ID         string
	Action     Action
	Raw        any
}

// Timestamp renders the event time for display: the parsed instant in
// RFC 3339 when available, otherwise the raw column verbatim.
func (e Event) Timestamp() string {
	if e.TimeParsed {
		return e.Time.Format(time.RFC3339Nano)
	}
	return e.TimeRaw
}
