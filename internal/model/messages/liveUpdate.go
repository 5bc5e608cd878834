package messages

import "time"

// Names of the events pushed to live subscribers.
const (
	EventSensorUpdate = "sensor_update"
	EventRelayChanged = "relay_changed"
	EventModeChanged  = "mode_changed"
)

// LiveUpdate is the composite result broadcast after each ingestion.
// Smoothed fields are null until the first moving average has been computed.
type LiveUpdate struct {
	Voltage     float64   `json:"tegangan"`
	Current     float64   `json:"arus"`
	Light       float64   `json:"cahaya"`
	Motion      bool      `json:"gerak"`
	RelayStatus bool      `json:"relay_status"`
	MAFVoltage  *float64  `json:"maf_tegangan"`
	MAFCurrent  *float64  `json:"maf_arus"`
	MAFLight    *float64  `json:"maf_cahaya"`
	Timestamp   time.Time `json:"timestamp"`
}

// LiveEvent is the envelope written to a subscriber.
type LiveEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type RelayChanged struct {
	Status bool `json:"status"`
}

type ModeChanged struct {
	Mode string `json:"mode"`
}
