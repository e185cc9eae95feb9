package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/weblog/api/config"
)

const attemptHeader = "x-attempt"

// RabbitMQClient wraps a RabbitMQ connection/channel pair.
type RabbitMQClient struct {
	conn            *amqp.Connection
	channel         *amqp.Channel
	queueDurable    bool
	queueAutoDelete bool
}

// NewRabbitMQClient constructs a RabbitMQ client from config.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	return &RabbitMQClient{
		conn:            conn,
		channel:         ch,
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
	}, nil
}

// Publish sends a message to the named queue.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	if err := r.declareTopology(channel); err != nil {
		return "", err
	}

	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}

	deliveryMode := amqp.Transient
	if r.queueDurable {
		deliveryMode = amqp.Persistent
	}

	messageID := uuid.NewString()
	err := r.channel.PublishWithContext(ctx, "", channel, false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: deliveryMode,
		MessageId:    messageID,
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe consumes messages from the named queue. A failed message waits
// RetryDelay on the channel's retry queue and is redelivered, up to
// MaxDeliveries times in total.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	if err := r.declareTopology(channel); err != nil {
		return err
	}

	consumerTag := fmt.Sprintf("weblog-%s", uuid.NewString())
	deliveries, err := r.channel.Consume(channel, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.channel.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			message := Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
				Attempt:    deliveryAttempt(delivery.Headers),
			}
			if err := handler(ctx, message); err != nil {
				r.reschedule(ctx, channel, delivery)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the underlying channel and connection.
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// reschedule moves a failed delivery to the retry queue, or to the
// dead-letter queue once it has been delivered MaxDeliveries times.
func (r *RabbitMQClient) reschedule(ctx context.Context, channel string, delivery amqp.Delivery) {
	queue, headers := nextHop(channel, delivery.Headers)
	err := r.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  delivery.ContentType,
		DeliveryMode: delivery.DeliveryMode,
		MessageId:    delivery.MessageId,
		Headers:      headers,
		Body:         delivery.Body,
	})
	if err != nil {
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
}

// declareTopology declares the work queue, a retry queue whose expired
// messages dead-letter back onto the work queue, and a dead-letter queue.
func (r *RabbitMQClient) declareTopology(channel string) error {
	if _, err := r.declareQueue(channel, nil); err != nil {
		return err
	}
	if _, err := r.declareQueue(retryChannel(channel), retryQueueArgs(channel)); err != nil {
		return err
	}
	_, err := r.declareQueue(deadLetterChannel(channel), nil)
	return err
}

func (r *RabbitMQClient) declareQueue(name string, args amqp.Table) (amqp.Queue, error) {
	return r.channel.QueueDeclare(
		name,
		r.queueDurable,
		r.queueAutoDelete,
		false,
		false,
		args,
	)
}

func retryQueueArgs(channel string) amqp.Table {
	return amqp.Table{
		"x-message-ttl":             RetryDelay.Milliseconds(),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": channel,
	}
}

// nextHop returns the queue a failed delivery moves to and the headers it
// carries there.
func nextHop(channel string, headers amqp.Table) (string, amqp.Table) {
	attempt := deliveryAttempt(headers)
	next := make(amqp.Table, len(headers)+1)
	for key, value := range headers {
		next[key] = value
	}
	next[attemptHeader] = int32(attempt + 1)
	if attempt >= MaxDeliveries {
		return deadLetterChannel(channel), next
	}
	return retryChannel(channel), next
}

func deliveryAttempt(headers amqp.Table) int {
	switch v := headers[attemptHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 1
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
