package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/metrics"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/messages"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/storage"
)

var ErrIncompleteReading = errors.New("incomplete sensor data")

// Notifier delivers an alert text. Delivery is best effort.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Publisher receives the composite result of every successful ingestion.
type Publisher interface {
	Publish(update messages.LiveUpdate)
}

type Options struct {
	// Defaults are used for config keys that are missing or unparsable.
	Defaults       entities.SystemConfig
	HistorySize    int
	BuzzerDuration time.Duration
	AlertTimeout   time.Duration
	Clock          func() time.Time
}

// Coordinator runs the per-reading pipeline.
type Coordinator struct {
	store      storage.Store
	notifier   Notifier
	publishers []Publisher
	detector   *FaultDetector
	session    *Session

	defaults     entities.SystemConfig
	buzzer       time.Duration
	alertTimeout time.Duration
	now          func() time.Time

	// seq keeps commit, latch update and publish in one order.
	seq sync.Mutex

	logger  *zap.Logger
	metrics *metrics.Metrics
	alerts  sync.WaitGroup
}

func NewCoordinator(store storage.Store, notifier Notifier, logger *zap.Logger, m *metrics.Metrics, opts Options, publishers ...Publisher) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.AlertTimeout <= 0 {
		opts.AlertTimeout = 15 * time.Second
	}
	if opts.Defaults.WindowSize == 0 {
		opts.Defaults = entities.DefaultSystemConfig()
	}
	return &Coordinator{
		store:        store,
		notifier:     notifier,
		publishers:   publishers,
		detector:     NewFaultDetector(opts.HistorySize),
		session:      NewSession(),
		defaults:     opts.Defaults,
		buzzer:       opts.BuzzerDuration,
		alertTimeout: opts.AlertTimeout,
		now:          opts.Clock,
		logger:       logger.Named("ingest"),
		metrics:      m,
	}
}

func (c *Coordinator) Session() *Session { return c.session }

type sourceKey struct{}

// WithSource tags ctx with the transport a reading arrived on.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceOf returns the transport tag set by WithSource, "http" if unset.
func SourceOf(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return "http"
}

// outcome is what the store transaction produced.
type outcome struct {
	cfg        entities.SystemConfig
	reading    entities.Reading
	validation Validation
	report     FaultReport
	relay      entities.RelayState
}

// Ingest validates, persists, smooths and acts on one reading. Any store
// error aborts the whole ingestion with nothing written.
func (c *Coordinator) Ingest(ctx context.Context, in messages.SensorReading) (messages.IngestResult, error) {
	start := c.now()
	source := SourceOf(ctx)

	if !in.Complete() {
		c.metrics.Ingest(source, "rejected", c.now().Sub(start))
		return messages.IngestResult{}, ErrIncompleteReading
	}

	c.seq.Lock()
	defer c.seq.Unlock()

	var out outcome
	err := c.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		out, err = c.process(ctx, tx, in.ToReading(start))
		return err
	})
	if err != nil {
		c.metrics.Ingest(source, "error", c.now().Sub(start))
		c.logger.Error("ingestion aborted", zap.String("source", source), zap.Error(err))
		return messages.IngestResult{}, fmt.Errorf("ingest reading: %w", err)
	}

	decision := c.session.Advance(out.report, out.validation, out.relay, start)
	for s := range out.report.Faults {
		c.metrics.Fault(string(s))
	}

	res := messages.IngestResult{
		Success:      true,
		RelayCommand: out.relay,
		Mode:         out.cfg.Mode,
	}

	if decision.FaultAlert {
		c.logger.Warn("sensor fault detected", zap.Any("faults", out.report.Details()))
		c.dispatch("fault", faultText(out.report, c.buzzer, start))
		if c.buzzer > 0 {
			res.Buzzer = true
			res.BuzzerDuration = c.buzzer.Milliseconds()
			res.ErrorDetails = out.report.Details()
		}
	}
	if decision.RelayAlert {
		c.logger.Info("relay changed",
			zap.String("from", string(decision.PreviousRelay)),
			zap.String("to", string(out.relay)),
			zap.String("mode", string(out.cfg.Mode)))
		c.dispatch("relay", relayText(out.relay, out.reading, out.cfg.Mode, start))
	}

	update := messages.LiveUpdate{
		Voltage:     out.reading.Voltage,
		Current:     out.reading.Current,
		Light:       out.reading.Light,
		Motion:      out.reading.Motion,
		RelayStatus: out.relay.On(),
		MAFVoltage:  out.reading.MAFVoltage,
		MAFCurrent:  out.reading.MAFCurrent,
		MAFLight:    out.reading.MAFLight,
		Timestamp:   start,
	}
	for _, p := range c.publishers {
		p.Publish(update)
	}

	c.metrics.SetRelay(out.relay.On())
	c.metrics.Ingest(source, "ok", c.now().Sub(start))
	return res, nil
}

func (c *Coordinator) process(ctx context.Context, tx storage.Tx, reading entities.Reading) (outcome, error) {
	values, err := tx.ConfigValues(ctx)
	if err != nil {
		return outcome{}, err
	}
	cfg, cfgErrs := entities.ParseSystemConfig(values, c.defaults)
	for _, e := range cfgErrs {
		c.logger.Warn("invalid config value, using default", zap.Error(e))
	}

	validation := Validate(reading, cfg.Ranges)
	if !validation.Valid {
		c.logger.Warn("sensor validation warning", zap.Any("violations", validation.Violations))
	}

	history, err := tx.RecentReadings(ctx, c.detector.HistorySize())
	if err != nil {
		return outcome{}, err
	}
	report := c.detector.Detect(reading, history, cfg.Ranges)

	id, err := tx.InsertReading(ctx, reading)
	if err != nil {
		return outcome{}, err
	}
	reading.ID = id

	if cfg.MAFEnabled {
		rows, err := tx.RecentReadings(ctx, cfg.WindowSize)
		if err != nil {
			return outcome{}, err
		}
		if smoothed, ok := MovingAverage(rows, cfg.WindowSize); ok {
			if err := tx.SetSmoothed(ctx, id, smoothed); err != nil {
				return outcome{}, err
			}
			smoothed.Apply(&reading)
		}
	}

	relay := DecideRelay(cfg, reading)
	if cfg.Mode == entities.ModeAuto {
		if err := tx.SetConfigValue(ctx, entities.KeyRelayStatus, relay.ConfigValue()); err != nil {
			return outcome{}, err
		}
		cfg.RelayStatus = relay
	}

	return outcome{cfg: cfg, reading: reading, validation: validation, report: report, relay: relay}, nil
}

// dispatch sends text without holding any lock and without blocking the
// caller. Failures are logged and counted.
func (c *Coordinator) dispatch(kind, text string) {
	if c.notifier == nil {
		return
	}
	c.alerts.Add(1)
	go func() {
		defer c.alerts.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.alertTimeout)
		defer cancel()
		err := c.notifier.Send(ctx, text)
		c.metrics.Alert(kind, err)
		if err != nil {
			c.logger.Warn("alert not delivered", zap.String("kind", kind), zap.Error(err))
		}
	}()
}

// Flush waits for in-flight alerts.
func (c *Coordinator) Flush() { c.alerts.Wait() }
