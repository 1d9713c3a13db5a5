package model

import (
	"time"

	"github.com/google/uuid"
)

// User tier constants used for audience targeting.
const (
	TierFree    = "free"
	TierPremium = "premium"
	TierUltra   = "ultra"
)

// User is the subscriber record the resolver targets. Only the fields the
// notification component reads are modeled here; profile data lives with the
// job-board service that owns the users table.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Tier      string    `json:"tier" db:"tier"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
