package models

import (
	"time"

	"github.com/google/uuid"
)

// Admin is an administrator account. Admin authority is answered by the
// presence of a row here, both at login and at every privileged action.
type Admin struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Tester is an applicant identity created when the beta signup form is
// submitted. The temporary password exists only so the account can be
// issued a verification email; testers authenticate with beta codes.
type Tester struct {
	ID         uuid.UUID  `json:"id"`
	Email      string     `json:"email"`
	Password   string     `json:"-"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Verified reports whether the tester confirmed their email address.
func (t *Tester) Verified() bool { return t.VerifiedAt != nil }
