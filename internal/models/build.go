package models

import (
	"time"

	"github.com/google/uuid"
)

// Build is a distributable test build stored in S3. Download URLs are
// presigned and handed out only to logged-in testers.
type Build struct {
	ID        uuid.UUID `json:"id"`
	Project   string    `json:"project"`
	Version   string    `json:"version"`
	Filename  string    `json:"filename"`
	S3Key     string    `json:"s3_key"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}
