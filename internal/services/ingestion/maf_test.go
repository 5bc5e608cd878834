package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
)

// newestFirst builds rows from light values listed oldest to newest.
func newestFirst(lights ...float64) []entities.Reading {
	out := make([]entities.Reading, len(lights))
	for i, l := range lights {
		out[len(lights)-1-i] = entities.Reading{Voltage: 220, Current: 1, Light: l}
	}
	return out
}

func TestMovingAverage_WindowOfThree(t *testing.T) {
	s, ok := MovingAverage(newestFirst(100, 200, 300, 400), 3)
	require.True(t, ok)
	assert.Equal(t, 300.0, s.Light)
	assert.Equal(t, 220.0, s.Voltage)
	assert.Equal(t, 1.0, s.Current)
}

func TestMovingAverage_FewerRowsThanWindow(t *testing.T) {
	s, ok := MovingAverage(newestFirst(100, 200), 10)
	require.True(t, ok)
	assert.Equal(t, 150.0, s.Light)
}

func TestMovingAverage_Empty(t *testing.T) {
	_, ok := MovingAverage(nil, 10)
	assert.False(t, ok)
}

func TestMovingAverage_WindowOneIsIdentity(t *testing.T) {
	rows := []entities.Reading{{Voltage: 221.37, Current: 2.05, Light: 12.34}, {Voltage: 1, Current: 1, Light: 1}}
	s, ok := MovingAverage(rows, 1)
	require.True(t, ok)
	assert.Equal(t, entities.Smoothed{Voltage: 221.37, Current: 2.05, Light: 12.34}, s)
}

func TestMovingAverage_RoundsToTwoDecimals(t *testing.T) {
	s, ok := MovingAverage(newestFirst(1, 1, 2), 3)
	require.True(t, ok)
	assert.Equal(t, 1.33, s.Light)
}

func TestMovingAverage_NonPositiveWindow(t *testing.T) {
	s, ok := MovingAverage(newestFirst(10, 20), 0)
	require.True(t, ok)
	assert.Equal(t, 20.0, s.Light)
}
