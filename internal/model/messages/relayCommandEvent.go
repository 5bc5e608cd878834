package messages

import (
	"time"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
)

// RelayCommandEvent is published on pju/relay/command for the pole controller.
// Buzzer fields mirror IngestResult and are only set after an ingestion that
// raised a new fault.
type RelayCommandEvent struct {
	Command        entities.RelayState `json:"relay_command"`
	Mode           entities.RelayMode  `json:"mode"`
	Source         string              `json:"source"` // ingest | manual | mode
	Buzzer         bool                `json:"buzzer,omitempty"`
	BuzzerDuration int64               `json:"buzzer_duration,omitempty"`
	ErrorDetails   map[string]string   `json:"error_details,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
}

// CommandFromResult builds the command sent back after an MQTT ingestion.
func CommandFromResult(res IngestResult, at time.Time) RelayCommandEvent {
	return RelayCommandEvent{
		Command:        res.RelayCommand,
		Mode:           res.Mode,
		Source:         "ingest",
		Buzzer:         res.Buzzer,
		BuzzerDuration: res.BuzzerDuration,
		ErrorDetails:   res.ErrorDetails,
		Timestamp:      at,
	}
}
