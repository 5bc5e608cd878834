package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDeduper(ttl time.Duration, max int) (*Deduper, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)}
	d := New(ttl, max)
	d.now = clock.now
	return d, clock
}

func TestShouldProcess_DropsWithinTTL(t *testing.T) {
	d, clock := newTestDeduper(time.Minute, 0)
	key := MessageKey("pju/sensor/data", 7)

	assert.True(t, d.ShouldProcess(key))
	assert.False(t, d.ShouldProcess(key))

	clock.advance(time.Minute)
	assert.True(t, d.ShouldProcess(key))
}

func TestShouldProcess_EmptyKey(t *testing.T) {
	d, _ := newTestDeduper(time.Minute, 0)
	assert.True(t, d.ShouldProcess(""))
	assert.True(t, d.ShouldProcess(""))
	assert.Equal(t, 0, d.Len())
}

func TestMarkAndSeen(t *testing.T) {
	d, clock := newTestDeduper(time.Minute, 0)
	key := MessageKey("t", 1)

	assert.False(t, d.Seen(key))
	d.Mark(key)
	assert.True(t, d.Seen(key))
	assert.False(t, d.ShouldProcess(key))

	clock.advance(2 * time.Minute)
	assert.False(t, d.Seen(key))
}

func TestEviction_BoundsSize(t *testing.T) {
	d, clock := newTestDeduper(time.Hour, 3)
	for i := uint16(0); i < 5; i++ {
		assert.True(t, d.ShouldProcess(MessageKey("t", i)))
		clock.advance(time.Second)
	}
	assert.Equal(t, 3, d.Len())
	// the oldest keys went first
	assert.False(t, d.Seen(MessageKey("t", 0)))
	assert.True(t, d.Seen(MessageKey("t", 4)))
}

func TestMessageKey(t *testing.T) {
	assert.Equal(t, "pju/sensor/data#42", MessageKey("pju/sensor/data", 42))
}
