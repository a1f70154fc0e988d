package types

import "time"

// BeaconSighting is one proximity observation from a scan window, already
// reduced to the strongest RSSI per beacon by the device bridge.
type BeaconSighting struct {
	BeaconID string    `json:"beacon_id"`
	RSSI     int       `json:"rssi"`
	SeenAt   time.Time `json:"seen_at"`
}

// Checkin records a guard reaching a round checkpoint.
type Checkin struct {
	GuardID     string    `json:"guard_id"`
	BeaconID    string    `json:"beacon_id"`
	Checkpoint  string    `json:"checkpoint"`
	RSSI        int       `json:"rssi"`
	CheckedInAt time.Time `json:"checked_in_at"`
}
