package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/weblog/api/config"
)

const (
	// MaxDeliveries bounds how often a failing message is handed to a
	// subscriber before it is parked on the channel's dead-letter queue.
	MaxDeliveries = 5
	// RetryDelay is the minimum wait before a failed message is delivered again.
	RetryDelay = 30 * time.Second

	contentTypeJSON = "application/json"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
	// Attempt counts deliveries of this message, starting at 1.
	Attempt int
}

// Handler processes a message. Return an error to signal a nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// NewMQ constructs an MQ wrapper for the provided backend.
func NewMQ(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open connects to the broker selected by cfg.MQ.Backend. It returns a nil
// *MQ and no error when messaging is disabled.
func Open(ctx context.Context, cfg config.Config) (*MQ, error) {
	switch cfg.MQ.Backend {
	case "", config.MQBackendNone:
		return nil, nil
	case config.MQBackendRabbitMQ:
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return NewMQ(client), nil
	case config.MQBackendPubSub:
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("connect pubsub: %w", err)
		}
		return NewMQ(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes messages from the named channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// Close closes the underlying backend. Closing a nil *MQ is a no-op.
func (m *MQ) Close() error {
	if m == nil {
		return nil
	}
	return m.backend.Close()
}

func retryChannel(channel string) string {
	return channel + ".retry"
}

func deadLetterChannel(channel string) string {
	return channel + ".dead"
}
