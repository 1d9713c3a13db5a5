package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jobintel/notify-api/internal/model"
	"github.com/jobintel/notify-api/internal/repository"
)

type notificationLogRepository struct {
	db *sqlx.DB
}

func NewNotificationLogRepository(db *sqlx.DB) repository.NotificationLogRepository {
	return &notificationLogRepository{db: db}
}

func (r *notificationLogRepository) Create(ctx context.Context, log *model.NotificationLog) error {
	query := `
		INSERT INTO notification_logs (
			id, user_id, channel, subject, status, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.UserID,
		log.Channel,
		log.Subject,
		log.Status,
		log.Error,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification log: %w", err)
	}

	return nil
}

func (r *notificationLogRepository) ListRecent(ctx context.Context, limit int) ([]*model.NotificationLog, error) {
	query := `
		SELECT id, user_id, channel, subject, status, error, created_at
		FROM notification_logs
		ORDER BY created_at DESC
		LIMIT $1
	`

	var logs []*model.NotificationLog
	if err := r.db.SelectContext(ctx, &logs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list notification logs: %w", err)
	}

	return logs, nil
}
