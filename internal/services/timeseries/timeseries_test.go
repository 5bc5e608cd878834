package timeseries

import (
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/model"
)

type fakeWriteAPI struct {
	mu     sync.Mutex
	points []*write.Point
	errs   chan error
}

func newFakeWriteAPI() *fakeWriteAPI { return &fakeWriteAPI{errs: make(chan error, 1)} }

func (f *fakeWriteAPI) WriteRecord(string) {}
func (f *fakeWriteAPI) WritePoint(p *write.Point) {
	f.mu.Lock()
	f.points = append(f.points, p)
	f.mu.Unlock()
}
func (f *fakeWriteAPI) Flush()                                         {}
func (f *fakeWriteAPI) Errors() <-chan error                           { return f.errs }
func (f *fakeWriteAPI) SetWriteFailedCallback(api.WriteFailedCallback) {}

func fields(p *write.Point) map[string]interface{} {
	out := map[string]interface{}{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func tags(p *write.Point) map[string]string {
	out := map[string]string{}
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func TestUpdateToPoint(t *testing.T) {
	at := time.Date(2024, 6, 1, 19, 0, 0, 0, time.UTC)
	maf := 219.5
	p := UpdateToPoint(model.LiveUpdate{
		Voltage: 220, Current: 1.2, Light: 40, Motion: true, RelayStatus: true,
		MAFVoltage: &maf, Timestamp: at,
	}, "pole-1")

	assert.Equal(t, "pju_reading", p.Name())
	assert.Equal(t, at, p.Time())
	assert.Equal(t, map[string]string{"relay": "ON", "pole": "pole-1"}, tags(p))

	f := fields(p)
	assert.Equal(t, 220.0, f["tegangan"])
	assert.Equal(t, 219.5, f["maf_tegangan"])
	assert.Equal(t, true, f["gerak"])
	assert.NotContains(t, f, "maf_arus")
}

func TestUpdateToPoint_NoPole(t *testing.T) {
	p := UpdateToPoint(model.LiveUpdate{Timestamp: time.Unix(0, 0)}, "")
	assert.Equal(t, map[string]string{"relay": "OFF"}, tags(p))
}

func TestWriter_PublishAndErrors(t *testing.T) {
	fake := newFakeWriteAPI()
	w := NewWriter(fake, "", zaptest.NewLogger(t))

	w.Publish(model.LiveUpdate{Voltage: 230, Timestamp: time.Now()})
	assert.Equal(t, int64(1), w.Written())
	require.Len(t, fake.points, 1)

	assert.Greater(t, w.LastErrorAge(), time.Hour)
	fake.errs <- errors.New("unauthorized")
	require.Eventually(t, func() bool { return w.LastErrorAge() < time.Minute }, time.Second, 5*time.Millisecond)

	close(fake.errs)
	<-w.done
}

func TestLastErrorAge_NilWriter(t *testing.T) {
	var w *Writer
	assert.Greater(t, w.LastErrorAge(), 24*time.Hour)
}

func TestParseHistory(t *testing.T) {
	p := parseHistory(httptest.NewRequest("GET", "/api/sensor/history", nil))
	assert.Equal(t, historyParams{Minutes: 60, Limit: 100, TimeoutMS: 2000}, p)

	p = parseHistory(httptest.NewRequest("GET", "/api/sensor/history?minutes=0&limit=5000&timeout_ms=x", nil))
	assert.Equal(t, historyParams{Minutes: 1, Limit: 1000, TimeoutMS: 2000}, p)
}

func TestBuildFlux(t *testing.T) {
	q := buildFlux("readings", 30, 10)
	assert.True(t, strings.Contains(q, `from(bucket: "readings")`))
	assert.Contains(t, q, "range(start: -30m)")
	assert.Contains(t, q, `r._measurement == "pju_reading"`)
	assert.Contains(t, q, "limit(n: 10)")
}

func TestFloatOf(t *testing.T) {
	assert.Equal(t, 1.5, *floatOf(1.5))
	assert.Equal(t, 3.0, *floatOf(int64(3)))
	assert.Nil(t, floatOf("x"))
	assert.Nil(t, boolOf(nil))
}
