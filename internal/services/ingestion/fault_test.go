package ingestion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
)

func history(n int, r entities.Reading) []entities.Reading {
	out := make([]entities.Reading, n)
	for i := range out {
		out[i] = r
	}
	return out
}

// Ranges wide enough that range checks never fire, isolating the stuck check.
var wideRanges = entities.SensorRanges{
	Voltage: entities.Range{Min: -1000, Max: 1000},
	Current: entities.Range{Min: -1000, Max: 1000},
	Light:   entities.Range{Min: 0, Max: 100000},
}

func TestDetect_StuckVoltage(t *testing.T) {
	d := NewFaultDetector(5)
	hist := history(5, entities.Reading{Voltage: 0, Current: 1, Light: 300})

	report := d.Detect(entities.Reading{Voltage: 0, Current: 1, Light: 300}, hist, wideRanges)
	assert.True(t, report.HasFault())
	assert.Contains(t, report.Faults, entities.SensorVoltage)
	assert.NotContains(t, report.Faults, entities.SensorCurrent)

	report = d.Detect(entities.Reading{Voltage: 5.0, Current: 1, Light: 300}, hist, wideRanges)
	assert.False(t, report.HasFault())
}

func TestDetect_StableNonSentinelIsHealthy(t *testing.T) {
	d := NewFaultDetector(5)
	r := entities.Reading{Voltage: 220, Current: 1.5, Light: 300}
	assert.False(t, d.Detect(r, history(5, r), wideRanges).HasFault())
}

func TestDetect_StuckRequiresWholeWindow(t *testing.T) {
	d := NewFaultDetector(5)
	hist := history(5, entities.Reading{Voltage: 220, Current: 0})
	hist[4].Current = 0.1

	report := d.Detect(entities.Reading{Voltage: 220, Current: 0}, hist, wideRanges)
	assert.False(t, report.HasFault())
	assert.NotContains(t, report.Faults, entities.SensorCurrent)
}

func TestDetect_ColdStartSkipsStuckCheck(t *testing.T) {
	d := NewFaultDetector(5)
	hist := history(4, entities.Reading{Voltage: 0})
	assert.False(t, d.Detect(entities.Reading{Voltage: 0}, hist, wideRanges).HasFault())
}

func TestDetect_NegativeZeroIsNotTheSentinel(t *testing.T) {
	d := NewFaultDetector(5)
	negZero := math.Copysign(0, -1)
	hist := history(5, entities.Reading{Voltage: negZero, Current: 1})

	report := d.Detect(entities.Reading{Voltage: negZero, Current: 1}, hist, wideRanges)
	assert.False(t, report.HasFault())
	assert.NotContains(t, report.Faults, entities.SensorVoltage)
}

func TestDetect_LightZeroNeverStuck(t *testing.T) {
	d := NewFaultDetector(5)
	r := entities.Reading{Voltage: 220, Current: 1, Light: 0}
	for _, n := range []int{0, 5, 50} {
		report := d.Detect(r, history(n, r), defaultRanges)
		assert.False(t, report.HasFault(), "history=%d", n)
	}
}

func TestDetect_LightRange(t *testing.T) {
	d := NewFaultDetector(5)
	base := entities.Reading{Voltage: 220, Current: 1}

	neg := base
	neg.Light = -3
	assert.Contains(t, d.Detect(neg, nil, defaultRanges).Faults[entities.SensorLight], "negative")

	high := base
	high.Light = 100001
	assert.Contains(t, d.Detect(high, nil, defaultRanges).Faults[entities.SensorLight], "too high")

	// below a raised minimum is only a validation warning
	ranges := defaultRanges
	ranges.Light.Min = 10
	low := base
	low.Light = 5
	assert.False(t, Validate(low, ranges).Valid)
	assert.False(t, d.Detect(low, nil, ranges).HasFault())
}

func TestDetect_MergesVoltageAndCurrentRangeFindings(t *testing.T) {
	d := NewFaultDetector(5)
	report := d.Detect(entities.Reading{Voltage: 310, Current: 12, Light: 50}, nil, defaultRanges)
	assert.Len(t, report.Faults, 2)
	assert.Contains(t, report.Faults, entities.SensorVoltage)
	assert.Contains(t, report.Faults, entities.SensorCurrent)
	assert.Equal(t, map[string]string{
		"tegangan": report.Faults[entities.SensorVoltage],
		"arus":     report.Faults[entities.SensorCurrent],
	}, report.Details())
}

func TestDetect_StuckReasonWinsOverRange(t *testing.T) {
	d := NewFaultDetector(5)
	r := entities.Reading{Voltage: 0, Current: 1, Light: 50}
	report := d.Detect(r, history(5, r), defaultRanges)
	assert.Contains(t, report.Faults[entities.SensorVoltage], "stuck")
}

func TestNewFaultDetector_DefaultsHistorySize(t *testing.T) {
	assert.Equal(t, DefaultHistorySize, NewFaultDetector(0).HistorySize())
	assert.Equal(t, 3, NewFaultDetector(3).HistorySize())
}
