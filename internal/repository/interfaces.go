package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/jobintel/notify-api/internal/model"
)

// All repository interfaces in one file. These are the narrow collaborator
// contracts the resolver depends on; the Postgres implementations live in
// the postgres subpackage and the tests use in-memory fakes.
type (
	// ApplicationRepository is read-only from the notifier's perspective.
	ApplicationRepository interface {
		ListByJobIDs(ctx context.Context, jobIDs []uuid.UUID) ([]*model.Application, error)
	}

	// UserRepository exposes the tier and identity lookups audience
	// addressing and preview need.
	UserRepository interface {
		ListIDsByTier(ctx context.Context, tier string) ([]uuid.UUID, error)
		ListAllIDs(ctx context.Context) ([]uuid.UUID, error)
		GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.User, error)
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	}

	// NotificationLogRepository persists delivery outcomes for the admin
	// listing.
	NotificationLogRepository interface {
		Create(ctx context.Context, log *model.NotificationLog) error
		ListRecent(ctx context.Context, limit int) ([]*model.NotificationLog, error)
	}
)
