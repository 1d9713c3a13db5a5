package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jobintel/notify-api/internal/model"
)

// RedisQueue backs the notification queue with a Redis list: enqueue is an
// LPUSH, the worker consumes with a blocking BRPOP.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(url string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	// Blocking commands must honor the caller's context, not just the
	// server-side BRPOP timeout, or worker shutdown stalls.
	opts.ContextTimeoutEnabled = true

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisQueue{client: client, key: QueueKey}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, n *model.IndividualNotification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// Dequeue blocks until a notification is available or ctx is cancelled.
func (q *RedisQueue) Dequeue(ctx context.Context) (*model.IndividualNotification, error) {
	result, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue notification: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}

	var n model.IndividualNotification
	if err := json.Unmarshal([]byte(result[1]), &n); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
	}

	return &n, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
