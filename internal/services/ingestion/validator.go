package ingestion

import (
	"fmt"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
)

// Violation is one out-of-range finding.
type Violation struct {
	Sensor entities.Sensor `json:"sensor"`
	Value  float64         `json:"value"`
	Reason string          `json:"reason"`
}

type Validation struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
}

var units = map[entities.Sensor]string{
	entities.SensorVoltage: "V",
	entities.SensorCurrent: "A",
	entities.SensorLight:   " lux",
}

var sensorOrder = []entities.Sensor{entities.SensorVoltage, entities.SensorCurrent, entities.SensorLight}

// Validate checks r against the configured ranges. Bounds are inclusive, so
// an illuminance of exactly 0 is valid with the default light range.
func Validate(r entities.Reading, ranges entities.SensorRanges) Validation {
	v := Validation{Valid: true}
	for _, s := range sensorOrder {
		rng := ranges.For(s)
		val := r.Value(s)
		if rng.Contains(val) {
			continue
		}
		v.Valid = false
		v.Violations = append(v.Violations, Violation{
			Sensor: s,
			Value:  val,
			Reason: fmt.Sprintf("outside normal range (%g%s - %g%s)", rng.Min, units[s], rng.Max, units[s]),
		})
	}
	return v
}
