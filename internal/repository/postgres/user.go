package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jobintel/notify-api/internal/model"
	"github.com/jobintel/notify-api/internal/repository"
)

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) ListIDsByTier(ctx context.Context, tier string) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM users
		WHERE tier = $1 AND deleted_at IS NULL
	`

	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, query, tier); err != nil {
		return nil, fmt.Errorf("failed to list user ids by tier: %w", err)
	}

	return ids, nil
}

func (r *userRepository) ListAllIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM users
		WHERE deleted_at IS NULL
	`

	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}

	return ids, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, email, name, tier, created_at, updated_at
		FROM users
		WHERE id = ANY($1) AND deleted_at IS NULL
		ORDER BY id
	`

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, pq.Array(raw)); err != nil {
		return nil, fmt.Errorf("failed to get users by ids: %w", err)
	}

	return users, nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, email, name, tier, created_at, updated_at
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}
