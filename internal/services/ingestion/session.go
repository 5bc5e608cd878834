package ingestion

import (
	"sync"
	"time"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
)

// Session is the process-wide control state. It is never persisted.
type Session struct {
	mu         sync.Mutex
	gate       Gate
	report     FaultReport
	validation Validation
	lastIngest time.Time
}

func NewSession() *Session {
	return &Session{gate: NewGate()}
}

// Advance records the outcome of one ingestion and returns the alert
// decision. The read-modify-write of both latches is atomic.
func (s *Session) Advance(report FaultReport, validation Validation, relay entities.RelayState, at time.Time) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.gate.Observe(report.HasFault(), relay)
	s.report = report
	s.validation = validation
	if at.After(s.lastIngest) {
		s.lastIngest = at
	}
	return d
}

func (s *Session) LastIngest() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastIngest
}

// Diagnostics is a snapshot of the last fault evaluation.
type Diagnostics struct {
	Faults        map[string]string   `json:"faults"`
	Violations    []Violation         `json:"violations"`
	FaultNotified bool                `json:"fault_notified"`
	LastRelay     entities.RelayState `json:"last_relay"`
	CheckedAt     *time.Time          `json:"checked_at"`
}

func (s *Session) Diagnostics() Diagnostics {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := Diagnostics{
		Faults:        map[string]string{},
		Violations:    append([]Violation(nil), s.validation.Violations...),
		FaultNotified: s.gate.faultNotified,
		LastRelay:     s.gate.lastRelay,
	}
	for k, v := range s.report.Faults {
		d.Faults[string(k)] = v
	}
	if !s.lastIngest.IsZero() {
		t := s.lastIngest
		d.CheckedAt = &t
	}
	return d
}
