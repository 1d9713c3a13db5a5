package model

import (
	"time"

	"github.com/google/uuid"
)

// Application links a user to a job they applied for. The resolver only ever
// reads UserID and JobID; the rest is kept for the delivery log and admin
// listing.
type Application struct {
	ID        uuid.UUID `json:"id" db:"id"`
	JobID     uuid.UUID `json:"job_id" db:"job_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
