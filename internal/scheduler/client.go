package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"fleet_service_backend/internal/servicerequests/bulk"
	"fleet_service_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	bulkRetryDelay    = 30 * time.Second
	bulkRetryMaxRetry = 5
)

type Client struct {
	client *asynq.Client
	queue  string
}

var _ bulk.RetryQueue = (*Client)(nil)

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueBulkRetry queues a failed bulk-schedule item for another forced attempt.
func (c *Client) EnqueueBulkRetry(ctx context.Context, item bulk.RetryItem) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewBulkScheduleRetryTask(item)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.ProcessIn(bulkRetryDelay),
		asynq.MaxRetry(bulkRetryMaxRetry),
		asynq.Queue(c.queue),
	)
	return err
}

// ScheduleVisitReminder queues one reminder per request and slot. A repeat
// for the same slot is a no-op.
func (c *Client) ScheduleVisitReminder(ctx context.Context, requestID uuid.UUID, scheduledAt, runAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewVisitReminderTask(requestID, scheduledAt)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(runAt),
		asynq.TaskID(visitReminderTaskID(requestID, scheduledAt)),
		asynq.Retention(24*time.Hour),
		asynq.Queue(c.queue),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
