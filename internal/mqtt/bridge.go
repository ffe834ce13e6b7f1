// Package mqtt bridges the inbox to an MQTT broker: customer messages
// arrive on {prefix}/inbound/{platform} and replies leave on
// {prefix}/outbound/{platform}.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"oneinbox/internal/domain"
	"oneinbox/internal/usecase"
)

const handleTimeout = 10 * time.Second

type BridgeConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// Sender records one customer message. *usecase.InboxService satisfies it.
type Sender interface {
	Send(ctx context.Context, in usecase.SendInput) ([]domain.Message, error)
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

type inboundPayload struct {
	User string `json:"user"`
	Text string `json:"text"`
}

type Bridge struct {
	cfg    BridgeConfig
	logger *slog.Logger

	mu     sync.RWMutex
	pub    publisher
	sender Sender
}

func NewBridge(cfg BridgeConfig, logger *slog.Logger) (*Bridge, error) {
	if strings.TrimSpace(cfg.BrokerURL) == "" {
		return nil, errors.New("mqtt: broker URL must not be empty")
	}
	cfg.TopicPrefix = strings.Trim(strings.TrimSpace(cfg.TopicPrefix), "/")
	if cfg.TopicPrefix == "" {
		return nil, errors.New("mqtt: topic prefix must not be empty")
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("mqtt: invalid qos %d", cfg.QoS)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{cfg: cfg, logger: logger}, nil
}

// Start connects to the broker and routes inbound messages to sender until
// ctx is cancelled.
func (b *Bridge) Start(ctx context.Context, sender Sender) error {
	if sender == nil {
		return errors.New("mqtt: sender must not be nil")
	}
	opts := paho.NewClientOptions().
		AddBroker(b.cfg.BrokerURL).
		SetClientID(b.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		// Replies are published from inside the inbound handler.
		SetOrderMatters(false)

	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		b.logger.Error("mqtt connection lost", "error", err)
	})

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	b.attach(client, sender)

	if token := client.Subscribe(TopicInboundAll(b.cfg.TopicPrefix), b.cfg.QoS, b.handleInbound); token.Wait() && token.Error() != nil {
		client.Disconnect(100)
		return token.Error()
	}
	b.logger.Info("mqtt bridge started", "broker", b.cfg.BrokerURL, "topic", TopicInboundAll(b.cfg.TopicPrefix))

	go func() {
		<-ctx.Done()
		client.Disconnect(100)
		b.logger.Info("mqtt bridge stopped")
	}()

	return nil
}

func (b *Bridge) attach(pub publisher, sender Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pub = pub
	b.sender = sender
}

func (b *Bridge) handleInbound(_ paho.Client, msg paho.Message) {
	platform, err := ParsePlatform(msg.Topic(), b.cfg.TopicPrefix)
	if err != nil {
		b.logger.Warn("skip invalid inbound topic", "topic", msg.Topic(), "error", err)
		return
	}

	var in inboundPayload
	if err := json.Unmarshal(msg.Payload(), &in); err != nil {
		// plain-text payloads carry just the message
		in = inboundPayload{Text: string(msg.Payload())}
	}

	b.mu.RLock()
	sender := b.sender
	b.mu.RUnlock()
	if sender == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	msgs, err := sender.Send(ctx, usecase.SendInput{Platform: string(platform), User: in.User, Text: in.Text})
	if err != nil {
		b.logger.Warn("inbound message rejected", "platform", platform, "error", err)
		return
	}
	b.logger.Debug("inbound message recorded", "platform", platform, "thread_id", msgs[0].ThreadID)
}

// Deliver publishes a reply on the outbound topic of its platform.
func (b *Bridge) Deliver(ctx context.Context, msg domain.Message) error {
	b.mu.RLock()
	pub := b.pub
	b.mu.RUnlock()
	if pub == nil {
		return errors.New("mqtt: bridge not started")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mqtt: marshal reply: %w", err)
	}

	token := pub.Publish(TopicOutbound(b.cfg.TopicPrefix, msg.Platform), b.cfg.QoS, false, body)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt: publish reply: %w", err)
		}
		return nil
	}
}
