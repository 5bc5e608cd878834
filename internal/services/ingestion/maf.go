package ingestion

import (
	"math"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
)

// MovingAverage is the simple mean of each channel over the newest
// min(window, len(rows)) rows, rounded to two decimals. rows must be ordered
// newest first. ok is false when there is nothing to average.
func MovingAverage(rows []entities.Reading, window int) (s entities.Smoothed, ok bool) {
	if window < 1 {
		window = 1
	}
	n := len(rows)
	if n == 0 {
		return entities.Smoothed{}, false
	}
	if window < n {
		n = window
	}

	var sumV, sumC, sumL float64
	for _, r := range rows[:n] {
		sumV += r.Voltage
		sumC += r.Current
		sumL += r.Light
	}
	count := float64(n)
	return entities.Smoothed{
		Voltage: round2(sumV / count),
		Current: round2(sumC / count),
		Light:   round2(sumL / count),
	}, true
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
