package messages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Number accepts a JSON number or a numeric string ("250", "12,5").
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// SettingsUpdate carries the operator-editable settings. Absent fields are
// left untouched.
type SettingsUpdate struct {
	LightThreshold *Number `json:"light_threshold,omitempty"`
	WindowSize     *Number `json:"maf_window_size,omitempty"`
}

type RelayControlRequest struct {
	Status *bool `json:"status"`
}

type RelayModeRequest struct {
	Mode string `json:"mode"`
}

// RelayStatus is the answer of GET /api/relay/status.
type RelayStatus struct {
	Success bool   `json:"success"`
	Mode    string `json:"mode"`
	Status  bool   `json:"status"`
}
