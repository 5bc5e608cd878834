package mqttbus

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func startBroker(t *testing.T) Config {
	t.Helper()
	port := freePort(t)

	server := mochi.New(nil)
	require.NoError(t, server.AddHook(new(auth.AllowHook), nil))
	tcp := listeners.NewTCP(listeners.Config{
		Type:    "tcp",
		ID:      "t1",
		Address: "127.0.0.1:" + strconv.Itoa(port),
	})
	require.NoError(t, server.AddListener(tcp))
	require.NoError(t, server.Serve())
	t.Cleanup(func() { _ = server.Close() })

	return Config{Host: "127.0.0.1", Port: port, MaxRetries: 3, MaxElapsed: 3 * time.Second}
}

func TestPublishConsume_RoundTrip(t *testing.T) {
	cfg := startBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subCfg := cfg
	subCfg.ClientID = "sub"
	sub, err := Connect(ctx, subCfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	got := make(chan map[string]interface{}, 1)
	consumer := NewConsumer(sub, "pju/sensor/data", 1, func(topic string, msg mqtt.Message) error {
		var m map[string]interface{}
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			return err
		}
		got <- m
		return nil
	}, zaptest.NewLogger(t))

	done := make(chan error, 1)
	go func() { done <- consumer.Consume(ctx) }()

	pubCfg := cfg
	pubCfg.ClientID = "pub"
	pub, err := Connect(ctx, pubCfg, nil)
	require.NoError(t, err)
	publisher := NewPublisher(pub, "pju/sensor/data", 1)

	// the subscription is asynchronous; publish until it lands
	require.Eventually(t, func() bool {
		if err := publisher.Publish(map[string]interface{}{"tegangan": 220.5}); err != nil {
			return false
		}
		select {
		case m := <-got:
			assert.Equal(t, 220.5, m["tegangan"])
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConnect_FailsWithoutBroker(t *testing.T) {
	cfg := Config{Host: "127.0.0.1", Port: freePort(t), ClientID: "nobody", MaxRetries: 2, MaxElapsed: time.Second}
	_, err := Connect(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestPublish_RawPayload(t *testing.T) {
	cfg := startBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg.ClientID = "raw"
	client, err := Connect(ctx, cfg, nil)
	require.NoError(t, err)

	p := NewPublisher(client, "pju/relay/command", 0)
	assert.Equal(t, "pju/relay/command", p.Topic())
	assert.NoError(t, p.Publish(`{"relay_command":"ON"}`))
	assert.NoError(t, p.Publish([]byte(`{}`)))
}
