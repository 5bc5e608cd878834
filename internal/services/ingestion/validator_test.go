package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
)

var defaultRanges = entities.DefaultSystemConfig().Ranges

func TestValidate_InRangeIsValid(t *testing.T) {
	for _, light := range []float64{0, 0.5, 200, 100000} {
		v := Validate(entities.Reading{Voltage: 220, Current: 0, Light: light}, defaultRanges)
		assert.True(t, v.Valid, "light=%v", light)
		assert.Empty(t, v.Violations)
	}
	// bounds are inclusive
	assert.True(t, Validate(entities.Reading{Voltage: 150, Current: 10}, defaultRanges).Valid)
	assert.True(t, Validate(entities.Reading{Voltage: 300, Current: 0}, defaultRanges).Valid)
}

func TestValidate_Violations(t *testing.T) {
	v := Validate(entities.Reading{Voltage: 120, Current: 11, Light: -1}, defaultRanges)
	require.False(t, v.Valid)
	require.Len(t, v.Violations, 3)

	assert.Equal(t, entities.SensorVoltage, v.Violations[0].Sensor)
	assert.Equal(t, 120.0, v.Violations[0].Value)
	assert.Contains(t, v.Violations[0].Reason, "150V - 300V")
	assert.Equal(t, entities.SensorCurrent, v.Violations[1].Sensor)
	assert.Equal(t, entities.SensorLight, v.Violations[2].Sensor)
}

func TestValidate_LightAboveMax(t *testing.T) {
	v := Validate(entities.Reading{Voltage: 220, Current: 1, Light: 100001}, defaultRanges)
	require.False(t, v.Valid)
	require.Len(t, v.Violations, 1)
	assert.Equal(t, entities.SensorLight, v.Violations[0].Sensor)
}
