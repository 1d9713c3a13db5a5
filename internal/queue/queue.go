package queue

import (
	"context"

	"github.com/jobintel/notify-api/internal/model"
)

// QueueKey is the Redis list the delivery worker consumes from.
const QueueKey = "notifications:queue"

// Queue is the enqueue collaborator the fan-out dispatcher submits
// individual notifications to. Implementations only acknowledge acceptance;
// delivery is the worker's job.
type Queue interface {
	Enqueue(ctx context.Context, n *model.IndividualNotification) error
	Close() error
}

// Consumer is the worker-side view of the queue.
type Consumer interface {
	Dequeue(ctx context.Context) (*model.IndividualNotification, error)
	Close() error
}
