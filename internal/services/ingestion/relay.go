package ingestion

import "github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"

// DecideRelay returns the commanded output for r. In manual mode the stored
// output is kept as is; in auto mode the lamp is off in daylight and, below
// the threshold, follows the motion sensor.
func DecideRelay(cfg entities.SystemConfig, r entities.Reading) entities.RelayState {
	if cfg.Mode != entities.ModeAuto {
		return cfg.RelayStatus
	}
	if r.Light >= cfg.LightThreshold {
		return entities.RelayOff
	}
	return entities.RelayStateOf(r.Motion)
}
