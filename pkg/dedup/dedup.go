package dedup

import (
	"fmt"
	"sync"
	"time"
)

// Deduper remembers keys for a TTL. It is used to drop MQTT redeliveries.
type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	now  func() time.Time
	seen map[string]time.Time
}

func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Deduper{ttl: ttl, max: max, now: time.Now, seen: make(map[string]time.Time)}
}

// MessageKey identifies a QoS>0 publish by topic and packet id.
func MessageKey(topic string, packetID uint16) string {
	return fmt.Sprintf("%s#%d", topic, packetID)
}

// ShouldProcess reports whether key is new and marks it seen. An empty key is
// always processed.
func (d *Deduper) ShouldProcess(key string) bool {
	if key == "" {
		return true
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.seen[key]; ok && now.Before(exp) {
		return false
	}
	d.seen[key] = now.Add(d.ttl)
	if len(d.seen) > d.max {
		d.evict(now)
	}
	return true
}

// Mark records key without asking, e.g. for the first delivery of a packet
// whose redeliveries must be dropped.
func (d *Deduper) Mark(key string) {
	if key == "" {
		return
	}
	d.mu.Lock()
	d.seen[key] = d.now().Add(d.ttl)
	d.mu.Unlock()
}

// Seen reports whether key is currently remembered.
func (d *Deduper) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.seen[key]
	return ok && d.now().Before(exp)
}

func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// evict drops expired keys, then the oldest ones while still over max.
func (d *Deduper) evict(now time.Time) {
	for k, exp := range d.seen {
		if !now.Before(exp) {
			delete(d.seen, k)
		}
	}
	for len(d.seen) > d.max {
		var oldest string
		var oldestExp time.Time
		for k, exp := range d.seen {
			if oldest == "" || exp.Before(oldestExp) {
				oldest, oldestExp = k, exp
			}
		}
		delete(d.seen, oldest)
	}
}
