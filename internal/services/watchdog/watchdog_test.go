package watchdog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type clock struct {
	now  time.Time
	last time.Time
}

func setup(t *testing.T, n *fakeNotifier) (*Watchdog, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)}
	w := New(func() time.Time { return c.last }, n, 2*time.Minute, zaptest.NewLogger(t), nil)
	w.now = func() time.Time { return c.now }
	w.started = c.now
	return w, c
}

func TestCheck_AlertsOnceUntilRearmed(t *testing.T) {
	n := &fakeNotifier{}
	w, c := setup(t, n)
	ctx := context.Background()

	c.last = c.now
	assert.False(t, w.Check(ctx))

	c.now = c.now.Add(3 * time.Minute)
	assert.True(t, w.Check(ctx))
	assert.False(t, w.Check(ctx))
	require.Equal(t, 1, n.count())
	assert.Contains(t, n.sent[0], "DEVICE OFFLINE")

	// a new reading re-arms
	c.last = c.now
	assert.False(t, w.Check(ctx))
	c.now = c.now.Add(5 * time.Minute)
	assert.True(t, w.Check(ctx))
	assert.Equal(t, 2, n.count())
}

func TestCheck_NoReadingSinceStart(t *testing.T) {
	n := &fakeNotifier{}
	w, c := setup(t, n)

	assert.False(t, w.Check(context.Background()))
	c.now = c.now.Add(2 * time.Minute)
	assert.True(t, w.Check(context.Background()))
	assert.Contains(t, n.sent[0], "Last reading: never")
}

func TestCheck_NotifierFailureStillLatches(t *testing.T) {
	n := &fakeNotifier{err: errors.New("telegram down")}
	w, c := setup(t, n)
	c.now = c.now.Add(10 * time.Minute)

	assert.True(t, w.Check(context.Background()))
	assert.False(t, w.Check(context.Background()))
	assert.Equal(t, 1, n.count())
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	w, _ := setup(t, &fakeNotifier{})
	_, err := w.Start("every now and then")
	assert.Error(t, err)

	c, err := w.Start("@every 1h")
	require.NoError(t, err)
	<-c.Stop().Done()
}
