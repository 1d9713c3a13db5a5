package queue

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/jobintel/notify-api/internal/model"
)

// NoopQueue accepts every notification and drops it. It is wired in when no
// Redis URL is configured so the send path keeps its contract in local dev;
// acceptance counts, delivery does not happen.
type NoopQueue struct{}

func NewNoopQueue() *NoopQueue {
	return &NoopQueue{}
}

func (q *NoopQueue) Enqueue(_ context.Context, n *model.IndividualNotification) error {
	log.Debug().Str("to_user_id", n.ToUserID).Str("channel", n.Channel).Msg("queue not configured, dropping notification")
	return nil
}

func (q *NoopQueue) Close() error {
	return nil
}
