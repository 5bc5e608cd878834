package watchdog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/metrics"
)

type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Watchdog raises one alert when the pole has been silent for longer than
// the offline threshold. The next reading re-arms it.
type Watchdog struct {
	lastIngest func() time.Time
	notifier   Notifier
	after      time.Duration
	now        func() time.Time
	started    time.Time

	mu      sync.Mutex
	offline bool

	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(lastIngest func() time.Time, notifier Notifier, after time.Duration, logger *zap.Logger, m *metrics.Metrics) *Watchdog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watchdog{
		lastIngest: lastIngest,
		notifier:   notifier,
		after:      after,
		now:        time.Now,
		started:    time.Now(),
		logger:     logger.Named("watchdog"),
		metrics:    m,
	}
}

// Check compares the last ingestion time with the threshold. It reports
// whether an offline alert was raised by this call.
func (w *Watchdog) Check(ctx context.Context) bool {
	now := w.now()
	last := w.lastIngest()
	since := last
	if since.IsZero() {
		since = w.started
	}
	silent := now.Sub(since)

	w.mu.Lock()
	switch {
	case silent >= w.after && !w.offline:
		w.offline = true
	case silent < w.after && w.offline:
		w.offline = false
		w.mu.Unlock()
		w.logger.Info("device back online", zap.Time("last_reading", last))
		return false
	default:
		w.mu.Unlock()
		return false
	}
	w.mu.Unlock()

	w.logger.Warn("device offline", zap.Duration("silent_for", silent))
	err := w.notifier.Send(ctx, offlineText(last, silent, now))
	w.metrics.Alert("offline", err)
	if err != nil {
		w.logger.Warn("offline alert not delivered", zap.Error(err))
	}
	return true
}

// Start runs Check on schedule until the returned cron is stopped.
func (w *Watchdog) Start(schedule string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		w.Check(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("watchdog schedule %q: %w", schedule, err)
	}
	c.Start()
	w.logger.Info("watchdog started", zap.String("schedule", schedule), zap.Duration("offline_after", w.after))
	return c, nil
}

func offlineText(last time.Time, silent time.Duration, now time.Time) string {
	seen := "never"
	if !last.IsZero() {
		seen = last.Local().Format("02/01/2006 15:04:05")
	}
	return fmt.Sprintf("📡 <b>DEVICE OFFLINE</b>\n\nNo sensor data for %s.\nLast reading: %s\nTime: %s",
		silent.Truncate(time.Second), seen, now.Local().Format("02/01/2006 15:04:05"))
}
