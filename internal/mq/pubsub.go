package mq

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/weblog/api/config"
	"google.golang.org/api/option"
)

const (
	contentTypeAttribute = "content-type"
	pubsubAckDeadline    = 60 * time.Second
	pubsubMaxBackoff     = 10 * time.Minute
)

// PubSubClient wraps the Google Cloud Pub/Sub SDK client. Each channel maps
// to a topic of the same name, read through "<channel><suffix>".
type PubSubClient struct {
	client             *pubsub.Client
	subscriptionSuffix string
}

// NewPubSubClient constructs a Pub/Sub client from config.
func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	suffix := cfg.SubscriptionSuffix
	if suffix == "" {
		suffix = "-sub"
	}

	return &PubSubClient{
		client:             client,
		subscriptionSuffix: suffix,
	}, nil
}

// Publish sends a JSON message to the named topic.
func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("pubsub channel is required")
	}

	topic, err := p.ensureTopic(ctx, channel)
	if err != nil {
		return "", err
	}
	result := topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: publishAttributes(attrs)})
	return result.Get(ctx)
}

// Subscribe consumes messages from the named channel. Failed messages are
// nacked; the subscription backs off at least RetryDelay between deliveries
// and forwards a message to "<channel>.dead" after MaxDeliveries attempts.
func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("pubsub channel is required")
	}

	topic, err := p.ensureTopic(ctx, channel)
	if err != nil {
		return err
	}
	dead, err := p.ensureTopic(ctx, deadLetterChannel(channel))
	if err != nil {
		return err
	}
	// Dead-lettered messages are kept on their own subscription.
	if _, err := p.ensureSubscription(ctx, p.subscriptionName(dead.ID()), subscriptionConfig(dead, "")); err != nil {
		return err
	}

	sub, err := p.ensureSubscription(ctx, p.subscriptionName(channel), subscriptionConfig(topic, dead.String()))
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		message := Message{
			ID:         msg.ID,
			Data:       msg.Data,
			Attributes: msg.Attributes,
			Attempt:    1,
		}
		if msg.DeliveryAttempt != nil {
			message.Attempt = *msg.DeliveryAttempt
		}
		if err := handler(ctx, message); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close closes the underlying Pub/Sub client.
func (p *PubSubClient) Close() error {
	return p.client.Close()
}

func (p *PubSubClient) ensureTopic(ctx context.Context, name string) (*pubsub.Topic, error) {
	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return p.client.CreateTopic(ctx, name)
	}
	return topic, nil
}

func (p *PubSubClient) ensureSubscription(ctx context.Context, name string, cfg pubsub.SubscriptionConfig) (*pubsub.Subscription, error) {
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return p.client.CreateSubscription(ctx, name, cfg)
	}
	return sub, nil
}

func (p *PubSubClient) subscriptionName(channel string) string {
	if p.subscriptionSuffix == "" {
		return channel
	}
	return channel + p.subscriptionSuffix
}

// subscriptionConfig backs off redeliveries and, when deadLetterTopic is
// set, caps them at MaxDeliveries.
func subscriptionConfig(topic *pubsub.Topic, deadLetterTopic string) pubsub.SubscriptionConfig {
	cfg := pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: pubsubAckDeadline,
		RetryPolicy: &pubsub.RetryPolicy{
			MinimumBackoff: RetryDelay,
			MaximumBackoff: pubsubMaxBackoff,
		},
	}
	if deadLetterTopic != "" {
		cfg.DeadLetterPolicy = &pubsub.DeadLetterPolicy{
			DeadLetterTopic:     deadLetterTopic,
			MaxDeliveryAttempts: MaxDeliveries,
		}
	}
	return cfg
}

func publishAttributes(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs)+1)
	for key, value := range attrs {
		out[key] = value
	}
	if _, ok := out[contentTypeAttribute]; !ok {
		out[contentTypeAttribute] = contentTypeJSON
	}
	return out
}
