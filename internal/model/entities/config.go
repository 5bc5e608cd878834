package entities

import (
	"fmt"
	"strconv"
	"strings"
)

// Keys of the system_config table.
const (
	KeyRelayMode      = "relay_mode"
	KeyRelayStatus    = "relay_status"
	KeyWindowSize     = "maf_window_size"
	KeyLightThreshold = "light_threshold"
	KeyMAFEnabled     = "maf_enabled"
	KeyVoltageMin     = "voltage_min"
	KeyVoltageMax     = "voltage_max"
	KeyCurrentMin     = "current_min"
	KeyCurrentMax     = "current_max"
	KeyLightMin       = "light_min"
	KeyLightMax       = "light_max"
)

// Range is an inclusive valid interval for one sensor.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

type SensorRanges struct {
	Voltage Range `json:"voltage"`
	Current Range `json:"current"`
	Light   Range `json:"light"`
}

// For returns the range configured for s.
func (r SensorRanges) For(s Sensor) Range {
	switch s {
	case SensorVoltage:
		return r.Voltage
	case SensorCurrent:
		return r.Current
	default:
		return r.Light
	}
}

// SystemConfig is the typed snapshot of system_config read on every ingestion.
type SystemConfig struct {
	Mode           RelayMode
	RelayStatus    RelayState
	WindowSize     int
	LightThreshold float64
	MAFEnabled     bool
	Ranges         SensorRanges
}

// DefaultSystemConfig mirrors the values seeded on a fresh database.
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		Mode:           ModeAuto,
		RelayStatus:    RelayOff,
		WindowSize:     10,
		LightThreshold: 200,
		MAFEnabled:     true,
		Ranges: SensorRanges{
			Voltage: Range{Min: 150, Max: 300},
			Current: Range{Min: 0, Max: 10},
			Light:   Range{Min: 0, Max: 100000},
		},
	}
}

// Values renders the snapshot back into its key/value form.
func (c SystemConfig) Values() map[string]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return map[string]string{
		KeyRelayMode:      string(c.Mode),
		KeyRelayStatus:    c.RelayStatus.ConfigValue(),
		KeyWindowSize:     strconv.Itoa(c.WindowSize),
		KeyLightThreshold: f(c.LightThreshold),
		KeyMAFEnabled:     strconv.FormatBool(c.MAFEnabled),
		KeyVoltageMin:     f(c.Ranges.Voltage.Min),
		KeyVoltageMax:     f(c.Ranges.Voltage.Max),
		KeyCurrentMin:     f(c.Ranges.Current.Min),
		KeyCurrentMax:     f(c.Ranges.Current.Max),
		KeyLightMin:       f(c.Ranges.Light.Min),
		KeyLightMax:       f(c.Ranges.Light.Max),
	}
}

// ParseSystemConfig builds a snapshot from raw key/value rows. Missing keys
// take the value from defaults silently; malformed values also fall back but
// are reported so the caller can log them.
func ParseSystemConfig(values map[string]string, defaults SystemConfig) (SystemConfig, []error) {
	cfg := defaults
	var errs []error

	raw := func(key string) (string, bool) {
		v, ok := values[key]
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	float := func(key string, dst *float64) {
		v, ok := raw(key)
		if !ok {
			return
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", key, v, err))
			return
		}
		*dst = f
	}

	if v, ok := raw(KeyRelayMode); ok {
		if m, err := ParseRelayMode(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", KeyRelayMode, err))
		} else {
			cfg.Mode = m
		}
	}
	if v, ok := raw(KeyRelayStatus); ok {
		cfg.RelayStatus = RelayStateOf(v == "true")
	}
	if v, ok := raw(KeyWindowSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", KeyWindowSize, v, err))
		} else if n < 1 {
			errs = append(errs, fmt.Errorf("%s=%d: must be positive", KeyWindowSize, n))
		} else {
			cfg.WindowSize = n
		}
	}
	if v, ok := raw(KeyMAFEnabled); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", KeyMAFEnabled, v, err))
		} else {
			cfg.MAFEnabled = b
		}
	}
	float(KeyLightThreshold, &cfg.LightThreshold)
	float(KeyVoltageMin, &cfg.Ranges.Voltage.Min)
	float(KeyVoltageMax, &cfg.Ranges.Voltage.Max)
	float(KeyCurrentMin, &cfg.Ranges.Current.Min)
	float(KeyCurrentMax, &cfg.Ranges.Current.Max)
	float(KeyLightMin, &cfg.Ranges.Light.Min)
	float(KeyLightMax, &cfg.Ranges.Light.Max)

	return cfg, errs
}
