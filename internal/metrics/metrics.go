package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of the pju service. All methods are no-ops
// on a nil receiver so components can run without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	ingestTotal       *prometheus.CounterVec
	ingestDuration    prometheus.Histogram
	faultsTotal       *prometheus.CounterVec
	alertsTotal       *prometheus.CounterVec
	relayState        prometheus.Gauge
	liveSubscribers   prometheus.Gauge
	liveDropped       prometheus.Counter
	mqttDuplicates    prometheus.Counter
	cbState           *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pju_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pju_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		ingestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pju_ingest_total",
			Help: "Sensor readings ingested by source and result.",
		}, []string{"source", "result"}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pju_ingest_duration_seconds",
			Help:    "Time spent processing one sensor reading.",
			Buckets: prometheus.DefBuckets,
		}),
		faultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pju_sensor_faults_total",
			Help: "Readings judged faulty, per sensor.",
		}, []string{"sensor"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pju_alerts_total",
			Help: "Alerts dispatched to the notifier by kind and result.",
		}, []string{"kind", "result"}),
		relayState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pju_relay_on",
			Help: "Last commanded relay output (1 on, 0 off).",
		}),
		liveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pju_live_subscribers",
			Help: "Currently connected live subscribers.",
		}),
		liveDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pju_live_dropped_total",
			Help: "Live events dropped because a subscriber buffer was full.",
		}),
		mqttDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pju_mqtt_duplicates_total",
			Help: "QoS1 redeliveries dropped by the intake deduper.",
		}),
		cbState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pju_cb_state",
			Help: "Circuit breaker state gauge (0 closed, 1 half, 2 open).",
		}, []string{"target"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.ingestTotal,
		m.ingestDuration,
		m.faultsTotal,
		m.alertsTotal,
		m.relayState,
		m.liveSubscribers,
		m.liveDropped,
		m.mqttDuplicates,
		m.cbState,
	)
	return m
}

// Registry exposes the private registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Ingest(source, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(source, result).Inc()
	m.ingestDuration.Observe(d.Seconds())
}

func (m *Metrics) Fault(sensor string) {
	if m == nil {
		return
	}
	m.faultsTotal.WithLabelValues(sensor).Inc()
}

func (m *Metrics) Alert(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.alertsTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) SetRelay(on bool) {
	if m == nil {
		return
	}
	if on {
		m.relayState.Set(1)
	} else {
		m.relayState.Set(0)
	}
}

func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.liveSubscribers.Set(float64(n))
}

func (m *Metrics) LiveDropped() {
	if m == nil {
		return
	}
	m.liveDropped.Inc()
}

func (m *Metrics) MQTTDuplicate() {
	if m == nil {
		return
	}
	m.mqttDuplicates.Inc()
}

func (m *Metrics) SetCircuitBreakerState(target string, state float64) {
	if m == nil {
		return
	}
	m.cbState.WithLabelValues(target).Set(state)
}
