package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/pju_monitoring/internal/config"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/metrics"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/services/api"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/services/control"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/services/device"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/services/ingestion"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/services/live"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/services/notifier"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/services/timeseries"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/services/watchdog"
	"github.com/LeonardoBeccarini/pju_monitoring/internal/storage"
	"github.com/LeonardoBeccarini/pju_monitoring/pkg/dedup"
	"github.com/LeonardoBeccarini/pju_monitoring/pkg/logging"
	"github.com/LeonardoBeccarini/pju_monitoring/pkg/mqttbus"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	cfg.PrintConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	defaults := cfg.Defaults.SystemConfig()

	// === Store ===
	store, err := openStore(ctx, cfg, defaults.Values(), logger)
	if err != nil {
		logger.Fatal("store unavailable", zap.Error(err))
	}
	defer store.Close()

	// === Notifier ===
	var alerts ingestion.Notifier
	if cfg.Telegram.Configured() {
		tg := notifier.NewTelegram(notifier.TelegramOptions{
			APIURL:   cfg.Telegram.APIURL,
			BotToken: cfg.Telegram.BotToken,
			ChatID:   cfg.Telegram.ChatID,
			Timeout:  cfg.Telegram.Timeout,
		}, logger, m)
		checkCtx, cancel := context.WithTimeout(ctx, cfg.Telegram.Timeout)
		if name, err := tg.CheckConnection(checkCtx); err != nil {
			logger.Warn("telegram bot not reachable, alerts may be lost", zap.Error(err))
		} else {
			logger.Info("telegram bot connected", zap.String("bot", name))
		}
		cancel()
		alerts = tg
	} else {
		logger.Warn("telegram not configured, alerts are only logged")
		alerts = notifier.NewLog(logger)
	}

	// === Live + ingestion ===
	hub := live.NewHub(cfg.Live.BufferSize, logger, m)
	defer hub.Close()

	publishers := []ingestion.Publisher{hub}
	checks := api.Checks{"store": store.Ping}

	// === InfluxDB ===
	var history http.Handler
	if cfg.Influx.Enabled {
		opts := influxdb2.DefaultOptions().
			SetBatchSize(cfg.Influx.BatchSize).
			SetFlushInterval(cfg.Influx.FlushIntervalMS)
		influx := influxdb2.NewClientWithOptions(cfg.Influx.URL, cfg.Influx.Token, opts)
		defer influx.Close()

		writer := timeseries.NewWriter(influx.WriteAPI(cfg.Influx.Org, cfg.Influx.Bucket), cfg.Influx.Pole, logger)
		defer writer.Flush()
		publishers = append(publishers, writer)
		history = timeseries.NewHistoryHandler(influx.QueryAPI(cfg.Influx.Org), cfg.Influx.Bucket, logger)
		checks["influx"] = func(context.Context) error {
			if age := writer.LastErrorAge(); age < 30*time.Second {
				return fmt.Errorf("write failed %s ago", age.Truncate(time.Second))
			}
			return nil
		}
	}

	coord := ingestion.NewCoordinator(store, alerts, logger, m, ingestion.Options{
		Defaults:       defaults,
		HistorySize:    cfg.Fault.HistorySize,
		BuzzerDuration: cfg.Fault.BuzzerDuration,
	}, publishers...)
	defer coord.Flush()

	// === MQTT ===
	var commands control.CommandPublisher
	if cfg.MQTT.Enabled {
		client, err := mqttbus.Connect(ctx, mqttbus.Config{
			Host:     cfg.MQTT.Host,
			Port:     cfg.MQTT.Port,
			User:     cfg.MQTT.User,
			Password: cfg.MQTT.Password,
			ClientID: cfg.MQTT.ClientID,
		}, logger)
		if err != nil {
			logger.Fatal("MQTT connect error", zap.Error(err))
		}
		defer mqttbus.Close(client)

		dev := device.NewDeviceService(
			coord,
			mqttbus.NewPublisher(client, cfg.MQTT.CommandTopic, 1),
			dedup.New(cfg.MQTT.DedupTTL, 0),
			logger, m,
		)
		commands = dev
		consumer := mqttbus.NewConsumer(client, cfg.MQTT.SensorTopic, 1, dev.HandleMessage, logger)
		go func() {
			if err := dev.Start(ctx, consumer); err != nil {
				logger.Error("sensor intake stopped", zap.Error(err))
				stop()
			}
		}()
		checks["mqtt"] = brokerCheck(client)
	}

	ctl := control.NewService(store, defaults, hub, commands, logger, m)

	// === Watchdog ===
	wd := watchdog.New(coord.Session().LastIngest, alerts, cfg.Watchdog.OfflineAfter, logger, m)
	sched, err := wd.Start(cfg.Watchdog.Schedule)
	if err != nil {
		logger.Fatal("watchdog", zap.Error(err))
	}
	defer sched.Stop()

	// === gRPC health ===
	if cfg.GRPC.Port > 0 {
		lis, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.GRPC.Port))
		if err != nil {
			logger.Fatal("gRPC listen", zap.Error(err))
		}
		hs := api.NewHealthServer(checks, logger)
		go func() {
			if err := hs.Serve(ctx, lis, 10*time.Second); err != nil {
				logger.Error("gRPC health server stopped", zap.Error(err))
			}
		}()
	}

	// === HTTP ===
	srv := &http.Server{
		Addr: ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler: api.NewRouter(api.Options{
			Ingester:       coord,
			Controller:     ctl,
			Diagnostics:    coord.Session(),
			Live:           hub.Handler(),
			History:        history,
			Checks:         checks,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			Metrics:        m,
			Logger:         logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("HTTP listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, seed map[string]string, logger *zap.Logger) (storage.Store, error) {
	if cfg.Store.Driver == "memory" {
		logger.Warn("using in-memory store, data is lost on restart")
		return storage.NewMemory(seed), nil
	}

	pg, err := storage.NewPostgres(ctx, cfg.Store.DSN, cfg.Store.MaxConns)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Migrate {
		if err := pg.Migrate(ctx, seed); err != nil {
			pg.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("database schema ready")
	}
	return pg, nil
}

func brokerCheck(client mqtt.Client) func(context.Context) error {
	return func(context.Context) error {
		if !client.IsConnectionOpen() {
			return errors.New("broker connection down")
		}
		return nil
	}
}
