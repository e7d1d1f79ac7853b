// Package mqtt lets operators request a sync run on demand by publishing
// to a trigger topic, instead of waiting for the next scheduled run.
package mqtt

import (
	"fmt"

	"cehupo-sync/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Trigger subscribes to the configured topic and coalesces every message
// into run requests. A message arriving while a run is pending is dropped;
// one pending request is always enough because a run syncs everything.
type Trigger struct {
	client   mqtt.Client
	cfg      config.MQTTConfig
	requests chan struct{}
	logger   *zap.Logger
}

// NewTrigger connects to the broker and subscribes to the trigger topic.
func NewTrigger(cfg config.MQTTConfig, logger *zap.Logger) (*Trigger, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	t := &Trigger{
		client:   client,
		cfg:      cfg,
		requests: make(chan struct{}, 1),
		logger:   logger,
	}

	if token := client.Subscribe(cfg.Topic, cfg.QoS, t.handleMessage); token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", cfg.Topic, token.Error())
	}

	logger.Info("MQTT sync trigger active", zap.String("broker", cfg.Broker), zap.String("topic", cfg.Topic))
	return t, nil
}

func (t *Trigger) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	t.logger.Info("sync run requested over MQTT",
		zap.String("topic", msg.Topic()),
		zap.Int("payload_size", len(msg.Payload())),
	)
	select {
	case t.requests <- struct{}{}:
	default: // a run is already pending
	}
}

// Requests yields one value per coalesced trigger.
func (t *Trigger) Requests() <-chan struct{} {
	return t.requests
}

// Close unsubscribes and disconnects.
func (t *Trigger) Close() {
	if token := t.client.Unsubscribe(t.cfg.Topic); token.Wait() && token.Error() != nil {
		t.logger.Warn("MQTT unsubscribe failed", zap.Error(token.Error()))
	}
	t.client.Disconnect(250)
}
