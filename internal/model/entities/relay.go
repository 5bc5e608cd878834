package entities

import (
	"fmt"
	"strings"
)

// RelayMode selects who drives the lamp relay.
type RelayMode string

const (
	ModeAuto   RelayMode = "auto"
	ModeManual RelayMode = "manual"
)

// ParseRelayMode accepts exactly "auto" or "manual".
func ParseRelayMode(s string) (RelayMode, error) {
	switch RelayMode(s) {
	case ModeAuto, ModeManual:
		return RelayMode(s), nil
	}
	return "", fmt.Errorf("unknown relay mode %q", s)
}

// Upper is the display form used in alert texts.
func (m RelayMode) Upper() string { return strings.ToUpper(string(m)) }

// RelayState is the commanded lamp output.
type RelayState string

const (
	RelayOff RelayState = "OFF"
	RelayOn  RelayState = "ON"
)

func RelayStateOf(on bool) RelayState {
	if on {
		return RelayOn
	}
	return RelayOff
}

func (s RelayState) On() bool { return s == RelayOn }

// ConfigValue is the representation stored under the relay_status key.
func (s RelayState) ConfigValue() string {
	if s.On() {
		return "true"
	}
	return "false"
}
