package ingestion

import (
	"math"
	"time"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
)

const DefaultHistorySize = 5

// FaultReport maps each faulty sensor to a reason. Sensors that look healthy
// are absent.
type FaultReport struct {
	Faults    map[entities.Sensor]string `json:"faults"`
	CheckedAt time.Time                  `json:"checked_at"`
}

func (f FaultReport) HasFault() bool { return len(f.Faults) > 0 }

// Details is the wire form used in ingestion results.
func (f FaultReport) Details() map[string]string {
	if !f.HasFault() {
		return nil
	}
	out := make(map[string]string, len(f.Faults))
	for s, reason := range f.Faults {
		out[string(s)] = reason
	}
	return out
}

// FaultDetector flags stuck or physically implausible sensors using the most
// recent persisted readings.
type FaultDetector struct {
	historySize int
	// sentinels are the values a dead sensor keeps reporting. Light has none:
	// a constant 0 lux is a normal night.
	sentinels map[entities.Sensor]float64
}

func NewFaultDetector(historySize int) *FaultDetector {
	if historySize < 1 {
		historySize = DefaultHistorySize
	}
	return &FaultDetector{
		historySize: historySize,
		sentinels: map[entities.Sensor]float64{
			entities.SensorVoltage: 0,
			entities.SensorCurrent: 0,
		},
	}
}

func (d *FaultDetector) HistorySize() int { return d.historySize }

// Detect judges cur against history (newest first, as stored before cur is
// inserted). With fewer than HistorySize rows the stuck check is skipped.
func (d *FaultDetector) Detect(cur entities.Reading, history []entities.Reading, ranges entities.SensorRanges) FaultReport {
	faults := make(map[entities.Sensor]string)

	if len(history) >= d.historySize {
		window := history[:d.historySize]
		for _, s := range []entities.Sensor{entities.SensorVoltage, entities.SensorCurrent} {
			if d.stuck(s, cur, window) {
				faults[s] = "sensor not responding (value stuck at 0)"
			}
		}
	}

	switch {
	case cur.Light < 0:
		faults[entities.SensorLight] = "light sensor error (negative value)"
	case cur.Light > ranges.Light.Max:
		faults[entities.SensorLight] = "light sensor error (value too high)"
	}

	for _, v := range Validate(cur, ranges).Violations {
		if v.Sensor == entities.SensorLight {
			continue
		}
		if _, ok := faults[v.Sensor]; !ok {
			faults[v.Sensor] = v.Reason
		}
	}

	return FaultReport{Faults: faults, CheckedAt: cur.CreatedAt}
}

func (d *FaultDetector) stuck(s entities.Sensor, cur entities.Reading, window []entities.Reading) bool {
	sentinel, ok := d.sentinels[s]
	if !ok {
		return false
	}
	bits := math.Float64bits(cur.Value(s))
	if bits != math.Float64bits(sentinel) {
		return false
	}
	for _, h := range window {
		if math.Float64bits(h.Value(s)) != bits {
			return false
		}
	}
	return true
}
