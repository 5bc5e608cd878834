package timeseries

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model"
)

// Writer mirrors ingestion results into InfluxDB through the non-blocking
// write API and tracks the last write error for readiness.
type Writer struct {
	api     api.WriteAPI
	pole    string
	logger  *zap.Logger
	written atomic.Int64

	mu      sync.RWMutex
	lastErr time.Time
	done    chan struct{}
}

func NewWriter(w api.WriteAPI, pole string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	ww := &Writer{
		api:     w,
		pole:    pole,
		logger:  logger.Named("influx"),
		lastErr: time.Now().Add(-24 * time.Hour),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(ww.done)
		for err := range w.Errors() {
			if err != nil {
				ww.mu.Lock()
				ww.lastErr = time.Now()
				ww.mu.Unlock()
				ww.logger.Warn("influx write error", zap.Error(err))
			}
		}
	}()
	return ww
}

// Publish queues one point. It never blocks on the network.
func (w *Writer) Publish(u model.LiveUpdate) {
	w.api.WritePoint(UpdateToPoint(u, w.pole))
	w.written.Add(1)
}

// LastErrorAge is the time since the last failed write.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

func (w *Writer) Written() int64 { return w.written.Load() }

func (w *Writer) Flush() { w.api.Flush() }
