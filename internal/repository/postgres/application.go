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

type applicationRepository struct {
	db *sqlx.DB
}

func NewApplicationRepository(db *sqlx.DB) repository.ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) ListByJobIDs(ctx context.Context, jobIDs []uuid.UUID) ([]*model.Application, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, job_id, user_id, status, created_at
		FROM applications
		WHERE job_id = ANY($1)
	`

	ids := make([]string, len(jobIDs))
	for i, id := range jobIDs {
		ids[i] = id.String()
	}

	var apps []*model.Application
	if err := r.db.SelectContext(ctx, &apps, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to list applications by job ids: %w", err)
	}

	return apps, nil
}
