package models

import (
	"time"

	"github.com/google/uuid"
)

// Resignation is an append-only record of a tester opting out of the beta
// program. Client code never deletes these.
type Resignation struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	BetaCode  string    `json:"beta_code"`
	Project   string    `json:"project"`
	CreatedAt time.Time `json:"created_at"`
}
