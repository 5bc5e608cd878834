package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
)

// Memory is an in-process Store. Transactions are serialized and work on a
// copy that replaces the live state only when fn succeeds.
type Memory struct {
	mu       sync.Mutex
	nextID   int64
	readings []entities.Reading // ascending by (created_at, id)
	config   map[string]string
	closed   bool
}

func NewMemory(seed map[string]string) *Memory {
	cfg := make(map[string]string, len(seed))
	for k, v := range seed {
		cfg[k] = v
	}
	return &Memory{nextID: 1, config: cfg}
}

func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	return nil
}

func (m *Memory) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *Memory) InTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		nextID:   m.nextID,
		readings: make([]entities.Reading, len(m.readings)),
		config:   make(map[string]string, len(m.config)),
	}
	copy(tx.readings, m.readings)
	for k, v := range m.config {
		tx.config[k] = v
	}

	if err := fn(tx); err != nil {
		return err
	}

	m.nextID = tx.nextID
	m.readings = tx.readings
	m.config = tx.config
	return nil
}

type memError string

func (e memError) Error() string { return string(e) }

const errClosed = memError("storage: memory store closed")

type memTx struct {
	nextID   int64
	readings []entities.Reading
	config   map[string]string
}

func (t *memTx) ConfigValues(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(t.config))
	for k, v := range t.config {
		out[k] = v
	}
	return out, nil
}

func (t *memTx) SetConfigValue(_ context.Context, key, value string) error {
	t.config[key] = value
	return nil
}

func (t *memTx) RecentReadings(_ context.Context, limit int) ([]entities.Reading, error) {
	if limit <= 0 {
		return nil, nil
	}
	n := len(t.readings)
	if limit > n {
		limit = n
	}
	out := make([]entities.Reading, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, t.readings[i])
	}
	return out, nil
}

func (t *memTx) InsertReading(_ context.Context, r entities.Reading) (int64, error) {
	r.ID = t.nextID
	t.nextID++
	r.MAFVoltage, r.MAFCurrent, r.MAFLight = nil, nil, nil

	t.readings = append(t.readings, r)
	sort.SliceStable(t.readings, func(i, j int) bool {
		a, b := t.readings[i], t.readings[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return r.ID, nil
}

func (t *memTx) SetSmoothed(_ context.Context, id int64, s entities.Smoothed) error {
	for i := range t.readings {
		if t.readings[i].ID == id {
			s.Apply(&t.readings[i])
			return nil
		}
	}
	return ErrNotFound
}

func (t *memTx) LatestReading(context.Context) (entities.Reading, error) {
	if len(t.readings) == 0 {
		return entities.Reading{}, ErrNotFound
	}
	return t.readings[len(t.readings)-1], nil
}
