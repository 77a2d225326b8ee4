package models

import (
	"time"

	"github.com/google/uuid"
)

// Bug report statuses.
const (
	BugStatusNew      = "new"
	BugStatusResolved = "resolved"
)

// Feature request statuses.
const (
	FeatureStatusUnderReview = "under-review"
	FeatureStatusImplemented = "implemented"
)

// BugSeverity is the reporter-selected severity of a bug.
type BugSeverity string

const (
	SeverityLow      BugSeverity = "low"
	SeverityMedium   BugSeverity = "medium"
	SeverityHigh     BugSeverity = "high"
	SeverityCritical BugSeverity = "critical"
)

// BugReport is a tester-submitted bug. Write-once from the tester's side;
// admins may resolve or delete.
type BugReport struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Details     string      `json:"details"`
	Severity    BugSeverity `json:"severity"`
	Status      string      `json:"status"`
	SubmittedBy string      `json:"submitted_by"`
	Project     string      `json:"project"`
	CreatedAt   time.Time   `json:"created_at"`
}

// FeatureRequest is a tester-submitted feature suggestion.
type FeatureRequest struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Details     string    `json:"details"`
	Status      string    `json:"status"`
	SubmittedBy string    `json:"submitted_by"`
	Project     string    `json:"project"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExperienceRating is a tester-submitted overall rating (1-5 stars).
type ExperienceRating struct {
	ID          uuid.UUID `json:"id"`
	Details     string    `json:"details"`
	Rating      int       `json:"rating"`
	SubmittedBy string    `json:"submitted_by"`
	Project     string    `json:"project"`
	CreatedAt   time.Time `json:"created_at"`
}
