package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mr1hm/event-weather-alerts/internal/models"
)

const mqttPublishTimeout = 3 * time.Second

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes each alert to <prefix>/<event id>.
type MQTTPublisher struct {
	client mqttClient
	prefix string
}

func NewMQTTPublisher(broker, clientID, prefix string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("mqtt connection lost", "broker", broker, "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("timed out connecting to %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	slog.Info("connected to MQTT broker", "broker", broker, "client_id", clientID)

	return &MQTTPublisher{client: client, prefix: prefix}, nil
}

func (p *MQTTPublisher) Topic(eventID string) string {
	return fmt.Sprintf("%s/%s", p.prefix, eventID)
}

func (p *MQTTPublisher) Publish(ctx context.Context, l *models.AlertLog) error {
	payload, err := encode(l)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	token := p.client.Publish(p.Topic(l.EventID), 1, false, payload)
	select {
	case <-token.Done():
	case <-time.After(mqttPublishTimeout):
		return fmt.Errorf("publish to %s timed out", p.Topic(l.EventID))
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish error: %w", err)
	}
	return nil
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
