package api

import (
	"context"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/metrics"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/model"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/entities"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/model/messages"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/services/ingestion"
)

type Ingester interface {
	Ingest(ctx context.Context, in model.SensorReading) (model.IngestResult, error)
}

// Controller is the operator side: relay, mode and settings.
type Controller interface {
	Status(ctx context.Context) (entities.RelayMode, entities.RelayState, error)
	SetRelay(ctx context.Context, on bool) error
	SetMode(ctx context.Context, mode string) (entities.RelayMode, error)
	Settings(ctx context.Context) (map[string]string, error)
	UpdateSettings(ctx context.Context, u messages.SettingsUpdate) (map[string]string, error)
	ResetSettings(ctx context.Context) (map[string]string, error)
	LatestReading(ctx context.Context) (entities.Reading, error)
}

type Diagnoser interface {
	Diagnostics() ingestion.Diagnostics
}

type Options struct {
	Ingester    Ingester
	Controller  Controller
	Diagnostics Diagnoser
	// Live serves /ws. History serves /api/sensor/history; it is optional.
	Live    http.Handler
	History http.Handler
	Checks  Checks

	AllowedOrigins []string
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
}

type Server struct {
	ingester Ingester
	control  Controller
	diag     Diagnoser
	checks   Checks
	logger   *zap.Logger
}

// NewRouter builds the HTTP surface of the service.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ingester: opts.Ingester,
		control:  opts.Controller,
		diag:     opts.Diagnostics,
		checks:   opts.Checks,
		logger:   logger.Named("api"),
	}

	r := mux.NewRouter()
	route := func(method, path string, h http.HandlerFunc) {
		r.Handle(path, opts.Metrics.WrapHandler(path, h)).Methods(method)
	}

	route(http.MethodPost, "/api/sensor/data", s.handleSensorData)
	route(http.MethodGet, "/api/sensor/latest", s.handleLatest)
	route(http.MethodGet, "/api/sensor/diagnostics", s.handleDiagnostics)
	route(http.MethodPost, "/api/relay/control", s.handleRelayControl)
	route(http.MethodPost, "/api/relay/mode", s.handleRelayMode)
	route(http.MethodGet, "/api/relay/status", s.handleRelayStatus)
	route(http.MethodGet, "/api/settings", s.handleSettings)
	route(http.MethodPost, "/api/settings/update", s.handleSettingsUpdate)
	route(http.MethodPost, "/api/settings/reset", s.handleSettingsReset)
	if opts.History != nil {
		route(http.MethodGet, "/api/sensor/history", opts.History.ServeHTTP)
	}

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	if opts.Live != nil {
		// not wrapped: the upgrade needs the raw ResponseWriter
		r.Handle("/ws", opts.Live).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(s.logger)),
		handlers.PrintRecoveryStack(true),
	)
	return recovery(cors(r))
}
