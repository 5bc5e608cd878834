package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	sensorSimulator "github.com/LeonardoBeccarini/pju_monitoring/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/pju_monitoring/pkg/logging"
	"github.com/LeonardoBeccarini/pju_monitoring/pkg/mqttbus"
)

func main() {
	host := flag.String("host", "localhost", "MQTT broker host")
	port := flag.Int("port", 1883, "MQTT broker port")
	user := flag.String("user", "", "MQTT user")
	password := flag.String("password", "", "MQTT password")
	clientID := flag.String("client-id", "", "MQTT client ID (random if empty)")
	sensorTopic := flag.String("sensor-topic", "pju/sensor/data", "topic readings are published on")
	commandTopic := flag.String("command-topic", "pju/relay/command", "topic relay commands arrive on")
	interval := flag.Duration("interval", 5*time.Second, "publish interval")
	errorProb := flag.Float64("error-prob", 0.05, "chance per minute of a sensor error")
	period := flag.String("period", "", "pin the light profile: day, evening or night")
	logFormat := flag.String("log-format", "console", "console, json or logfmt")
	flag.Parse()

	logCfg := logging.Config{Format: *logFormat, Level: "info"}
	if err := logCfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if *clientID == "" {
		*clientID = "pju-sim-" + uuid.NewString()[:8]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := mqttbus.Connect(ctx, mqttbus.Config{
		Host:     *host,
		Port:     *port,
		User:     *user,
		Password: *password,
		ClientID: *clientID,
	}, logger)
	if err != nil {
		logger.Fatal("MQTT connect error", zap.Error(err))
	}

	publisher := mqttbus.NewPublisher(client, *sensorTopic, 1)
	generator := sensorSimulator.NewDataGenerator(time.Now().UnixNano(), *errorProb)
	sim := sensorSimulator.NewSensorSimulator(nil, publisher, generator, logger)
	sim.AttachConsumer(mqttbus.NewConsumer(client, *commandTopic, 1, sim.HandleMessage, logger))

	switch p := sensorSimulator.Period(*period); p {
	case "":
	case sensorSimulator.Day, sensorSimulator.Evening, sensorSimulator.Night:
		sim.FixPeriod(p)
	default:
		logger.Fatal("unknown period", zap.String("period", *period))
	}

	logger.Info("simulation started",
		zap.String("client_id", *clientID),
		zap.Duration("interval", *interval),
		zap.Float64("error_prob", *errorProb),
	)
	sim.Start(ctx, *interval)
	logger.Info("simulation stopped")
}
