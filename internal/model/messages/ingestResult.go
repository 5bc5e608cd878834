package messages

import "github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"

// IngestResult is returned to the device after every accepted reading.
// Buzzer fields are only set when a new sensor fault was raised.
type IngestResult struct {
	Success        bool                `json:"success"`
	RelayCommand   entities.RelayState `json:"relay_command"`
	Mode           entities.RelayMode  `json:"mode"`
	Buzzer         bool                `json:"buzzer,omitempty"`
	BuzzerDuration int64               `json:"buzzer_duration,omitempty"` // ms
	ErrorDetails   map[string]string   `json:"error_details,omitempty"`
}
