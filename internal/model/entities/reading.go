package entities

import "time"

// Sensor identifies one measured channel. The values double as the wire
// field names sent by the pole controller.
type Sensor string

const (
	SensorVoltage Sensor = "tegangan"
	SensorCurrent Sensor = "arus"
	SensorLight   Sensor = "cahaya"
)

// Reading is one persisted sample from the pole.
type Reading struct {
	ID          int64     `json:"id"`
	Voltage     float64   `json:"tegangan"`
	Current     float64   `json:"arus"`
	Light       float64   `json:"cahaya"`
	Motion      bool      `json:"gerak"`
	RelayStatus bool      `json:"relay_status"`
	MAFVoltage  *float64  `json:"maf_tegangan"`
	MAFCurrent  *float64  `json:"maf_arus"`
	MAFLight    *float64  `json:"maf_cahaya"`
	CreatedAt   time.Time `json:"created_at"`
}

// Value returns the raw value of the given channel.
func (r Reading) Value(s Sensor) float64 {
	switch s {
	case SensorVoltage:
		return r.Voltage
	case SensorCurrent:
		return r.Current
	case SensorLight:
		return r.Light
	}
	return 0
}

// Smoothed holds the moving-average values of the three channels.
type Smoothed struct {
	Voltage float64 `json:"maf_tegangan"`
	Current float64 `json:"maf_arus"`
	Light   float64 `json:"maf_cahaya"`
}

// Apply back-fills the smoothed columns of r.
func (s Smoothed) Apply(r *Reading) {
	v, c, l := s.Voltage, s.Current, s.Light
	r.MAFVoltage = &v
	r.MAFCurrent = &c
	r.MAFLight = &l
}
