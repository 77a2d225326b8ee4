package models

import (
	"time"

	"github.com/google/uuid"
)

// BetaCode is a single-use-per-email access token gating tester login.
// An unclaimed code (Email nil) is pinned to the first email that
// successfully logs in with it; after that only the claiming email can
// authenticate with the code.
type BetaCode struct {
	ID        uuid.UUID  `json:"id"`
	Code      string     `json:"code"`
	Email     *string    `json:"email,omitempty"`
	Project   string     `json:"project"`
	Approved  bool       `json:"approved"`
	TesterID  *uuid.UUID `json:"tester_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Claimed reports whether the code is already pinned to an email.
func (b *BetaCode) Claimed() bool {
	return b.Email != nil && *b.Email != ""
}
