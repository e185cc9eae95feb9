package mq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestDeliveryAttempt(t *testing.T) {
	assert.Equal(t, 1, deliveryAttempt(nil))
	assert.Equal(t, 3, deliveryAttempt(amqp.Table{attemptHeader: int32(3)}))
	assert.Equal(t, 4, deliveryAttempt(amqp.Table{attemptHeader: int64(4)}))
	assert.Equal(t, 1, deliveryAttempt(amqp.Table{attemptHeader: "two"}))
}

func TestNextHopRetriesThenDeadLetters(t *testing.T) {
	queue, headers := nextHop("media.cleanup", amqp.Table{"reference": "thumbnails/a.png"})
	assert.Equal(t, "media.cleanup.retry", queue)
	assert.Equal(t, int32(2), headers[attemptHeader])
	assert.Equal(t, "thumbnails/a.png", headers["reference"])

	queue, _ = nextHop("media.cleanup", amqp.Table{attemptHeader: int32(MaxDeliveries - 1)})
	assert.Equal(t, "media.cleanup.retry", queue)

	queue, headers = nextHop("media.cleanup", amqp.Table{attemptHeader: int32(MaxDeliveries)})
	assert.Equal(t, "media.cleanup.dead", queue)
	assert.Equal(t, int32(MaxDeliveries+1), headers[attemptHeader])
}

func TestNextHopLeavesOriginalHeaders(t *testing.T) {
	original := amqp.Table{attemptHeader: int32(2)}
	_, _ = nextHop("media.cleanup", original)
	assert.Equal(t, int32(2), original[attemptHeader])
}

func TestRetryQueueDeadLettersBackToWorkQueue(t *testing.T) {
	args := retryQueueArgs("media.cleanup")
	assert.Equal(t, RetryDelay.Milliseconds(), args["x-message-ttl"])
	assert.Equal(t, "", args["x-dead-letter-exchange"])
	assert.Equal(t, "media.cleanup", args["x-dead-letter-routing-key"])
}
