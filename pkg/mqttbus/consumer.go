package mqttbus

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Handler processes one message. Returned errors are logged.
type Handler func(topic string, msg mqtt.Message) error

type Consumer struct {
	client  mqtt.Client
	topic   string
	qos     byte
	handler Handler
	logger  *zap.Logger
}

func NewConsumer(client mqtt.Client, topic string, qos byte, handler Handler, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		client:  client,
		topic:   topic,
		qos:     qos,
		handler: handler,
		logger:  logger.Named("consumer").With(zap.String("topic", topic)),
	}
}

// Consume subscribes to the topic and blocks until ctx is cancelled.
func (c *Consumer) Consume(ctx context.Context) error {
	token := c.client.Subscribe(c.topic, c.qos, func(_ mqtt.Client, msg mqtt.Message) {
		if err := c.handler(msg.Topic(), msg); err != nil {
			c.logger.Warn("error handling message", zap.Error(err))
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", c.topic, token.Error())
	}
	c.logger.Info("subscribed")

	<-ctx.Done()

	if c.client.IsConnected() {
		c.client.Unsubscribe(c.topic).Wait()
	}
	return nil
}
