package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/teenagetech/beta/internal/models"
)

// AdminLookup answers whether an admin account exists for an email.
type AdminLookup interface {
	GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error)
}

// Policy is the single source of truth for admin authority. The same
// check backs the login-time isAdmin flag and every privileged action.
// Matching is exact and case-sensitive.
type Policy struct {
	admins AdminLookup
	logger *zap.Logger
}

// NewPolicy creates the admin policy.
func NewPolicy(admins AdminLookup, logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{admins: admins, logger: logger}
}

// IsAdmin reports whether the email belongs to an administrator. Lookup
// failures deny rather than error.
func (p *Policy) IsAdmin(ctx context.Context, email string) bool {
	if email == "" {
		return false
	}
	admin, err := p.admins.GetAdminByEmail(ctx, email)
	if err != nil || admin == nil {
		return false
	}
	return admin.Email == email
}
