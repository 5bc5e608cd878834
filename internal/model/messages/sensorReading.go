package messages

import (
	"time"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
)

// SensorReading is the payload posted by the pole controller, over HTTP or
// on the pju/sensor/data topic. Numeric fields are pointers so a missing
// value can be told apart from a legitimate 0.
type SensorReading struct {
	Voltage     *float64 `json:"tegangan"`
	Current     *float64 `json:"arus"`
	Light       *float64 `json:"cahaya"`
	Motion      bool     `json:"gerak"`
	RelayStatus *bool    `json:"relay_status,omitempty"`
}

// Complete reports whether voltage, current and illuminance are all present.
func (s SensorReading) Complete() bool {
	return s.Voltage != nil && s.Current != nil && s.Light != nil
}

// ToReading converts a complete payload into a not-yet-persisted row.
func (s SensorReading) ToReading(now time.Time) entities.Reading {
	r := entities.Reading{
		Motion:    s.Motion,
		CreatedAt: now,
	}
	if s.Voltage != nil {
		r.Voltage = *s.Voltage
	}
	if s.Current != nil {
		r.Current = *s.Current
	}
	if s.Light != nil {
		r.Light = *s.Light
	}
	if s.RelayStatus != nil {
		r.RelayStatus = *s.RelayStatus
	}
	return r
}
