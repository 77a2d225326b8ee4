package models

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus is the review state of a beta application.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationDenied   ApplicationStatus = "denied"
)

// DefaultProject is stamped onto applications submitted through the public
// signup form.
const DefaultProject = "8ball"

// Application is a public beta-access request. Status is mutated only by
// admin approve/deny; approval also mints a BetaCode and stamps it back
// onto the application.
type Application struct {
	ID            uuid.UUID         `json:"id"`
	Name          string            `json:"name"`
	Email         string            `json:"email"`
	PlaydateOwner string            `json:"playdate_owner"`
	Experience    string            `json:"experience,omitempty"`
	Status        ApplicationStatus `json:"status"`
	Project       string            `json:"project"`
	BetaCode      *string           `json:"beta_code,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
