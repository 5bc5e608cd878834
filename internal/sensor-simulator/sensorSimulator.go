package sensor_simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/messages"
	"github.com/LeonardoBeccarini/pju_monitoring/pkg/dedup"
)

// Local fallback rule, used until the service sends a command.
const autoLightThreshold = 200.0

type Publisher interface {
	Publish(v interface{}) error
}

type Consumer interface {
	Consume(ctx context.Context) error
}

// SensorSimulator plays the pole controller: it publishes readings and obeys
// relay commands coming back from the service.
type SensorSimulator struct {
	mu        sync.Mutex
	generator *DataGenerator
	publisher Publisher
	consumer  Consumer
	deduper   *dedup.Deduper
	logger    *zap.Logger

	period  Period // empty: follow the clock
	relayOn bool
	manual  bool
	buzzer  *time.Timer
	buzzing bool
	now     func() time.Time
	sent    int
}

func NewSensorSimulator(consumer Consumer, publisher Publisher, gen *DataGenerator, logger *zap.Logger) *SensorSimulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SensorSimulator{
		generator: gen,
		publisher: publisher,
		consumer:  consumer,
		deduper:   dedup.New(2*time.Minute, 10000),
		logger:    logger.Named("simulator"),
		now:       time.Now,
	}
}

// AttachConsumer sets the command subscription. The consumer's handler is
// usually HandleMessage, so it is created after the simulator.
func (s *SensorSimulator) AttachConsumer(c Consumer) {
	s.mu.Lock()
	s.consumer = c
	s.mu.Unlock()
}

// FixPeriod pins the light profile instead of following the clock.
func (s *SensorSimulator) FixPeriod(p Period) {
	s.mu.Lock()
	s.period = p
	s.mu.Unlock()
}

// Start publishes one reading immediately and then every interval, until
// ctx is cancelled.
func (s *SensorSimulator) Start(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	consumer := s.consumer
	s.mu.Unlock()
	if consumer != nil {
		go func() {
			if err := consumer.Consume(ctx); err != nil {
				s.logger.Error("command subscription failed", zap.Error(err))
			}
		}()
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if err := s.Tick(); err != nil {
			s.logger.Warn("publish error", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.stopBuzzer()
			return
		case <-t.C:
		}
	}
}

// Tick generates and publishes one reading.
func (s *SensorSimulator) Tick() error {
	s.mu.Lock()
	period := s.period
	if period == "" {
		period = PeriodAt(s.now())
	}
	reading := s.generator.Next(period, s.relayOn)
	if !s.manual {
		// the pole applies its own rule between commands
		s.relayOn = *reading.Light < autoLightThreshold && reading.Motion
	}
	relay := s.relayOn
	reading.RelayStatus = &relay
	s.sent++
	n := s.sent
	s.mu.Unlock()

	s.logger.Info("reading",
		zap.Int("n", n),
		zap.String("period", string(period)),
		zap.Float64("tegangan", *reading.Voltage),
		zap.Float64("arus", *reading.Current),
		zap.Float64("cahaya", *reading.Light),
		zap.Bool("gerak", reading.Motion),
		zap.Bool("relay", *reading.RelayStatus),
	)
	return s.publisher.Publish(reading)
}

// HandleMessage applies a relay command published by the service.
func (s *SensorSimulator) HandleMessage(topic string, msg mqtt.Message) error {
	if msg.Qos() > 0 {
		key := dedup.MessageKey(topic, msg.MessageID())
		if msg.Duplicate() && s.deduper.Seen(key) {
			return nil
		}
		s.deduper.Mark(key)
	}

	var ev messages.RelayCommandEvent
	if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
		return fmt.Errorf("invalid relay command: %w", err)
	}
	s.apply(ev)
	return nil
}

func (s *SensorSimulator) apply(ev messages.RelayCommandEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.Mode != "" {
		s.manual = ev.Mode == model.ModeManual
	}
	if on := ev.Command.On(); on != s.relayOn {
		s.relayOn = on
		s.logger.Info("relay command from server", zap.String("relay", string(ev.Command)), zap.String("source", ev.Source))
	}
	if ev.Buzzer {
		d := time.Duration(ev.BuzzerDuration) * time.Millisecond
		if d <= 0 {
			d = 10 * time.Second
		}
		s.startBuzzerLocked(d, ev.ErrorDetails)
	}
}

func (s *SensorSimulator) startBuzzerLocked(d time.Duration, details map[string]string) {
	if s.buzzer != nil {
		s.buzzer.Stop()
	}
	s.buzzing = true
	s.logger.Warn("BUZZER ON", zap.Duration("duration", d), zap.Any("errors", details))
	s.buzzer = time.AfterFunc(d, func() {
		s.mu.Lock()
		s.buzzing = false
		s.buzzer = nil
		s.mu.Unlock()
		s.logger.Info("BUZZER OFF")
	})
}

func (s *SensorSimulator) stopBuzzer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buzzer != nil {
		s.buzzer.Stop()
		s.buzzer = nil
	}
	s.buzzing = false
}

// State reports the lamp, mode and buzzer as the pole sees them.
func (s *SensorSimulator) State() (relayOn, manual, buzzing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relayOn, s.manual, s.buzzing
}
