// Package builds manages test build artifacts distributed through S3.
package builds

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teenagetech/beta/internal/models"
)

// ErrDuplicateVersion is returned when a build already exists for the
// project/version pair.
var ErrDuplicateVersion = errors.New("version already registered for project")

// Repository handles build metadata persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a builds repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create registers an uploaded build.
func (r *Repository) Create(ctx context.Context, b *models.Build) error {
	const q = `INSERT INTO builds (project, version, filename, s3_key, size_bytes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project, version) DO NOTHING
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, b.Project, b.Version, b.Filename, b.S3Key, b.SizeBytes).
		Scan(&b.ID, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicateVersion
	}
	if err != nil {
		return fmt.Errorf("create build: %w", err)
	}
	return nil
}

// GetByID returns a build by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Build, error) {
	const q = `SELECT id, project, version, filename, s3_key, size_bytes, created_at
		FROM builds WHERE id = $1`
	var b models.Build
	err := r.pool.QueryRow(ctx, q, id).Scan(&b.ID, &b.Project, &b.Version, &b.Filename, &b.S3Key, &b.SizeBytes, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Delete removes a build row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM builds WHERE id = $1`, id)
	return err
}

// ListByProject returns builds for a project, newest first. An empty
// project returns all builds.
func (r *Repository) ListByProject(ctx context.Context, project string) ([]models.Build, error) {
	const q = `SELECT id, project, version, filename, s3_key, size_bytes, created_at
		FROM builds WHERE ($1 = '' OR project = $1) ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Build
	for rows.Next() {
		var b models.Build
		if err := rows.Scan(&b.ID, &b.Project, &b.Version, &b.Filename, &b.S3Key, &b.SizeBytes, &b.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}
