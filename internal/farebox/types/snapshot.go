package types

import "time"

// Snapshot is the reconciler's observable state after a record has been
// processed: onboard counts split by namespace plus the member lists.
type Snapshot struct {
	Total       int       `json:"passengers_total"`
	RFID        int       `json:"passengers_rfid"`
	Wifi        int       `json:"passengers_wifi"`
	OnboardRFID []string  `json:"onboard_rfid"`
	OnboardWifi []string  `json:"onboard_wifi"`
	TakenAt     time.Time `json:"timestamp"`
}
