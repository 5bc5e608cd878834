package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/metrics"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/model"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/messages"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/services/ingestion"
	"github.com/LeonardoBeccarini/pju_monitoring/pkg/dedup"
)

// Ingester is the part of the ingestion coordinator the device link needs.
type Ingester interface {
	Ingest(ctx context.Context, in model.SensorReading) (model.IngestResult, error)
}

// Publisher writes one message to the relay command topic.
type Publisher interface {
	Publish(v interface{}) error
}

type Consumer interface {
	Consume(ctx context.Context) error
}

// DeviceService links the pole controller over MQTT: readings come in on the
// sensor topic, relay commands go out on the command topic.
type DeviceService struct {
	ingester Ingester
	commands Publisher
	seen     *dedup.Deduper
	timeout  time.Duration
	now      func() time.Time

	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewDeviceService(ingester Ingester, commands Publisher, seen *dedup.Deduper, logger *zap.Logger, m *metrics.Metrics) *DeviceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if seen == nil {
		seen = dedup.New(0, 0)
	}
	return &DeviceService{
		ingester: ingester,
		commands: commands,
		seen:     seen,
		timeout:  10 * time.Second,
		now:      time.Now,
		logger:   logger.Named("device"),
		metrics:  m,
	}
}

// Start consumes readings until ctx is cancelled.
func (d *DeviceService) Start(ctx context.Context, consumer Consumer) error {
	return consumer.Consume(ctx)
}

// HandleMessage is the mqttbus handler for the sensor topic.
func (d *DeviceService) HandleMessage(topic string, msg mqtt.Message) error {
	if msg.Qos() > 0 {
		key := dedup.MessageKey(topic, msg.MessageID())
		if msg.Duplicate() && d.seen.Seen(key) {
			d.metrics.MQTTDuplicate()
			d.logger.Debug("dropping redelivered reading", zap.Uint16("packet_id", msg.MessageID()))
			return nil
		}
		d.seen.Mark(key)
	}

	var in messages.SensorReading
	if err := json.Unmarshal(msg.Payload(), &in); err != nil {
		return fmt.Errorf("decode reading: %w", err)
	}

	ctx, cancel := context.WithTimeout(ingestion.WithSource(context.Background(), "mqtt"), d.timeout)
	defer cancel()

	res, err := d.ingester.Ingest(ctx, in)
	if err != nil {
		if errors.Is(err, ingestion.ErrIncompleteReading) {
			d.logger.Warn("reading rejected", zap.Error(err))
			return nil
		}
		return fmt.Errorf("ingest reading: %w", err)
	}

	return d.PublishCommand(ctx, messages.CommandFromResult(res, d.now().UTC()))
}

// PublishCommand sends ev to the pole controller.
func (d *DeviceService) PublishCommand(_ context.Context, ev messages.RelayCommandEvent) error {
	if d.commands == nil {
		return nil
	}
	if err := d.commands.Publish(ev); err != nil {
		return fmt.Errorf("publish relay command: %w", err)
	}
	d.logger.Debug("relay command published",
		zap.String("relay", string(ev.Command)),
		zap.String("source", ev.Source),
		zap.Bool("buzzer", ev.Buzzer),
	)
	return nil
}
