package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"dwelo-bridge/internal/domain/model"
)

const publishTimeout = 5 * time.Second

// client is the part of paho.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Publisher mirrors reconciled accessory state to retained MQTT topics of
// the form <prefix>/<deviceId>/state.
type Publisher struct {
	client client
	prefix string
	logger *slog.Logger
}

// NewPublisher connects to the configured broker.
func NewPublisher(cfg model.MQTTConfig, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mqtt")

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", "error", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}

	c := paho.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connecting to %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Broker, err)
	}
	logger.Info("mqtt connected", "broker", cfg.Broker)

	return newPublisher(c, cfg.TopicPrefix, logger), nil
}

func newPublisher(c client, prefix string, logger *slog.Logger) *Publisher {
	return &Publisher{client: c, prefix: prefix, logger: logger}
}

func (p *Publisher) Topic(deviceID string) string {
	return fmt.Sprintf("%s/%s/state", p.prefix, deviceID)
}

func (p *Publisher) Publish(ctx context.Context, deviceID string, state map[model.Characteristic]any) error {
	payload, err := encodeState(state)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.Topic(deviceID), 1, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return errors.New("mqtt publish timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing %s: %w", deviceID, err)
	}
	p.logger.Debug("state published", "device", deviceID)
	return nil
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

func encodeState(state map[model.Characteristic]any) ([]byte, error) {
	out := make(map[string]any, len(state))
	for k, v := range state {
		out[string(k)] = v
	}
	return json.Marshal(out)
}

// Noop discards state; it stands in when MQTT is disabled.
type Noop struct{}

func (Noop) Publish(context.Context, string, map[model.Characteristic]any) error { return nil }
