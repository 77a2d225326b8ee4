package models

import (
	"time"

	"github.com/google/uuid"
)

// NotifyProject is the default project for notify-me requests submitted
// from a coming-soon card.
const NotifyProject = "mystery-macos"

// Notification is a notify-me request for a project that has not opened
// its beta yet.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Project   string    `json:"project"`
	CreatedAt time.Time `json:"created_at"`
}
