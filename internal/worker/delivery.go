package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jobintel/notify-api/internal/email"
	"github.com/jobintel/notify-api/internal/model"
	"github.com/jobintel/notify-api/internal/queue"
	"github.com/jobintel/notify-api/internal/repository"
	"github.com/jobintel/notify-api/pkg/logger"
	"github.com/jobintel/notify-api/pkg/messaging"
	"github.com/jobintel/notify-api/pkg/metrics"
)

const realtimeChannel = "realtime:notifications"

// DeliveryWorker drains the notification queue and hands each individual
// notification to its channel adapter. It is the downstream side of the
// fan-out: the dispatcher's contract ends at the queue, everything here is
// best-effort delivery with an audit trail.
type DeliveryWorker struct {
	consumer queue.Consumer
	users    repository.UserRepository
	logs     repository.NotificationLogRepository
	emailSvc email.Service
	broker   messaging.Broker
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewDeliveryWorker(
	consumer queue.Consumer,
	users repository.UserRepository,
	logs repository.NotificationLogRepository,
	emailSvc email.Service,
	broker messaging.Broker,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *DeliveryWorker {
	return &DeliveryWorker{
		consumer: consumer,
		users:    users,
		logs:     logs,
		emailSvc: emailSvc,
		broker:   broker,
		logger:   logger,
		metrics:  metrics,
	}
}

func (w *DeliveryWorker) Start(ctx context.Context) {
	w.logger.Info("Starting delivery worker")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down delivery worker")
			return
		default:
		}

		n, err := w.consumer.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error(err, "failed to dequeue notification")
			time.Sleep(time.Second)
			continue
		}
		if n == nil {
			continue
		}

		w.deliver(ctx, n)
	}
}

func (w *DeliveryWorker) deliver(ctx context.Context, n *model.IndividualNotification) {
	timer := prometheus.NewTimer(w.metrics.DeliveryLatency)
	defer timer.ObserveDuration()

	channel := n.Channel
	if channel == "" {
		channel = model.ChannelEmail
	}

	entry := &model.NotificationLog{
		Channel: channel,
		Subject: n.Title,
		Status:  model.NotificationStatusSent,
	}

	err := w.deliverToChannel(ctx, n, channel, entry)
	if err != nil {
		msg := err.Error()
		entry.Status = model.NotificationStatusFailed
		entry.Error = &msg
		w.metrics.DeliveriesFailed.WithLabelValues(channel).Inc()
		w.logger.Error(err, "delivery failed", "to_user_id", n.ToUserID, "channel", channel)
	} else {
		w.metrics.DeliveriesSent.WithLabelValues(channel).Inc()
	}

	if logErr := w.logs.Create(ctx, entry); logErr != nil {
		w.logger.Error(logErr, "failed to record delivery log")
	}

	w.publishRealtime(ctx, n, entry.Status)
}

func (w *DeliveryWorker) deliverToChannel(ctx context.Context, n *model.IndividualNotification, channel string, entry *model.NotificationLog) error {
	uid, err := uuid.Parse(n.ToUserID)
	if err != nil {
		return fmt.Errorf("invalid recipient id %q: %w", n.ToUserID, err)
	}
	entry.UserID = uid

	user, err := w.users.Get(ctx, uid)
	if err != nil {
		return fmt.Errorf("recipient lookup failed: %w", err)
	}

	switch channel {
	case model.ChannelEmail:
		return w.emailSvc.SendCustom(ctx, user.Email, n.Title, n.Message)
	case model.ChannelWhatsApp, model.ChannelTelegram:
		return fmt.Errorf("%s delivery not implemented", channel)
	default:
		return fmt.Errorf("unsupported channel: %s", channel)
	}
}

func (w *DeliveryWorker) publishRealtime(ctx context.Context, n *model.IndividualNotification, status model.NotificationStatus) {
	if w.broker == nil {
		return
	}

	event := map[string]interface{}{
		"type":     "notification",
		"toUserId": n.ToUserID,
		"title":    n.Title,
		"status":   status,
	}
	if err := w.broker.Publish(ctx, realtimeChannel, event); err != nil {
		w.logger.Error(err, "failed to publish realtime event")
	}
}
