package live

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/metrics"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/messages"
)

// DefaultBufferSize is the per-subscriber send buffer.
const DefaultBufferSize = 16

// Subscriber receives encoded LiveEvents on C until it is unsubscribed or
// the hub is closed, at which point C is closed.
type Subscriber struct {
	ID   uuid.UUID
	send chan []byte
}

func (s *Subscriber) C() <-chan []byte { return s.send }

// Hub fans out live events. Delivery is best effort: a subscriber whose
// buffer is full misses the event, nobody else waits for it.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]*Subscriber
	last   []byte
	buffer int
	closed bool

	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewHub(buffer int, logger *zap.Logger, m *metrics.Metrics) *Hub {
	if buffer < 1 {
		buffer = DefaultBufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:    make(map[uuid.UUID]*Subscriber),
		buffer:  buffer,
		logger:  logger.Named("live"),
		metrics: m,
	}
}

// Subscribe registers a new subscriber. The most recent sensor_update, if
// any, is already queued on it when Subscribe returns.
func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{ID: uuid.New(), send: make(chan []byte, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.send)
		return s
	}
	if h.last != nil {
		s.send <- h.last
	}
	h.subs[s.ID] = s
	h.metrics.SetSubscribers(len(h.subs))
	h.logger.Debug("subscriber joined", zap.String("id", s.ID.String()), zap.Int("subscribers", len(h.subs)))
	return s
}

func (h *Hub) Unsubscribe(s *Subscriber) {
	if s == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s.ID]; !ok {
		return
	}
	delete(h.subs, s.ID)
	close(s.send)
	h.metrics.SetSubscribers(len(h.subs))
	h.logger.Debug("subscriber left", zap.String("id", s.ID.String()), zap.Int("subscribers", len(h.subs)))
}

// Publish broadcasts a sensor_update and keeps it for replay.
func (h *Hub) Publish(u messages.LiveUpdate) {
	b, err := encode(messages.EventSensorUpdate, u)
	if err != nil {
		h.logger.Error("encode live update", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.last = b
	h.fanout(b)
}

// Broadcast sends a named event without keeping it for replay.
func (h *Hub) Broadcast(event string, data interface{}) {
	b, err := encode(event, data)
	if err != nil {
		h.logger.Error("encode live event", zap.String("event", event), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	h.fanout(b)
}

// fanout must be called with h.mu held.
func (h *Hub) fanout(b []byte) {
	for _, s := range h.subs {
		select {
		case s.send <- b:
		default:
			h.metrics.LiveDropped()
		}
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber. Later calls are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.subs {
		close(s.send)
		delete(h.subs, id)
	}
	h.metrics.SetSubscribers(0)
}

func encode(event string, data interface{}) ([]byte, error) {
	return json.Marshal(messages.LiveEvent{Event: event, Data: data})
}
