package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
)

func TestDecideRelay_Auto(t *testing.T) {
	cfg := entities.DefaultSystemConfig()
	cfg.LightThreshold = 200

	cases := []struct {
		name   string
		light  float64
		motion bool
		want   entities.RelayState
	}{
		{"day with motion", 250, true, entities.RelayOff},
		{"day without motion", 250, false, entities.RelayOff},
		{"at threshold is day", 200, true, entities.RelayOff},
		{"night with motion", 50, true, entities.RelayOn},
		{"night without motion", 50, false, entities.RelayOff},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DecideRelay(cfg, entities.Reading{Light: tc.light, Motion: tc.motion})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecideRelay_ManualKeepsStoredOutput(t *testing.T) {
	cfg := entities.DefaultSystemConfig()
	cfg.Mode = entities.ModeManual

	for _, stored := range []entities.RelayState{entities.RelayOn, entities.RelayOff} {
		cfg.RelayStatus = stored
		for _, r := range []entities.Reading{{Light: 0, Motion: true}, {Light: 5000}, {Light: 50}} {
			assert.Equal(t, stored, DecideRelay(cfg, r))
		}
	}
}
