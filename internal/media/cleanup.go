package media

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/weblog/api/internal/metrics"
	"github.com/weblog/api/internal/mq"
)

// Cleanup reports the outcome of a best-effort media deletion.
type Cleanup struct {
	Reference string
	Attempted bool
	Err       error
}

// Failed reports whether a deletion was attempted and left an orphan behind.
func (c Cleanup) Failed() bool {
	return c.Attempted && c.Err != nil
}

// Publisher is the subset of the message queue used to schedule retries.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// CleanupJob is the message published when a deletion fails.
type CleanupJob struct {
	Reference string    `json:"reference"`
	FailedAt  time.Time `json:"failed_at"`
	Error     string    `json:"error,omitempty"`
}

// Cleaner removes media that is no longer referenced.
type Cleaner struct {
	store     Store
	logger    *slog.Logger
	publisher Publisher
	topic     string
}

func NewCleaner(store Store, logger *slog.Logger) *Cleaner {
	return &Cleaner{store: store, logger: logger}
}

// WithRetryQueue publishes failed deletions to topic.
func (c *Cleaner) WithRetryQueue(publisher Publisher, topic string) *Cleaner {
	c.publisher = publisher
	c.topic = topic
	return c
}

// Remove deletes ref. It never fails the caller: errors are logged, counted
// and queued for retry when a queue is configured.
func (c *Cleaner) Remove(ctx context.Context, ref string) Cleanup {
	if strings.TrimSpace(ref) == "" {
		return Cleanup{}
	}
	result := Cleanup{Reference: ref, Attempted: true}
	if err := c.store.Delete(ctx, ref); err != nil {
		result.Err = err
		metrics.MediaCleanupFailures.Inc()
		c.logger.WarnContext(ctx, "media cleanup failed", "reference", ref, "error", err)
		c.enqueue(ctx, ref, err)
	}
	return result
}

func (c *Cleaner) enqueue(ctx context.Context, ref string, cause error) {
	if c.publisher == nil || errors.Is(cause, ErrForeignReference) {
		return
	}
	data, err := json.Marshal(CleanupJob{Reference: ref, FailedAt: time.Now().UTC(), Error: cause.Error()})
	if err != nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if _, err := c.publisher.Publish(ctx, c.topic, data, map[string]string{"reference": ref}); err != nil {
		c.logger.ErrorContext(ctx, "queue media cleanup", "reference", ref, "error", err)
	}
}

// Retry handles a CleanupJob delivered by the queue. Returning an error
// hands the message back to the broker, which redelivers it after a delay
// until mq.MaxDeliveries is reached.
func (c *Cleaner) Retry(ctx context.Context, msg mq.Message) error {
	var job CleanupJob
	if err := json.Unmarshal(msg.Data, &job); err != nil || strings.TrimSpace(job.Reference) == "" {
		c.logger.ErrorContext(ctx, "drop malformed cleanup job", "message_id", msg.ID, "error", err)
		return nil
	}
	err := c.store.Delete(ctx, job.Reference)
	switch {
	case err == nil:
		c.logger.InfoContext(ctx, "media cleanup retried", "reference", job.Reference)
		return nil
	case errors.Is(err, ErrForeignReference):
		c.logger.WarnContext(ctx, "drop cleanup job for foreign reference", "reference", job.Reference)
		return nil
	default:
		c.logger.WarnContext(ctx, "media cleanup retry failed",
			"reference", job.Reference, "attempt", msg.Attempt, "max_attempts", mq.MaxDeliveries, "error", err)
		return err
	}
}
