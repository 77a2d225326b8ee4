// Package feedback persists tester-submitted bugs, feature requests, and
// experience ratings.
package feedback

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teenagetech/beta/internal/models"
)

// Repository handles feedback persistence across all three variants.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a feedback repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateBug inserts a bug report with status "new".
func (r *Repository) CreateBug(ctx context.Context, b *models.BugReport) error {
	const q = `INSERT INTO bug_reports (title, details, severity, status, submitted_by, project)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, b.Title, b.Details, string(b.Severity), b.Status, b.SubmittedBy, b.Project).
		Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return fmt.Errorf("create bug report: %w", err)
	}
	return nil
}

// ListBugs returns all bug reports, newest first.
func (r *Repository) ListBugs(ctx context.Context) ([]models.BugReport, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, title, details, severity, status, submitted_by, project, created_at
		FROM bug_reports ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.BugReport
	for rows.Next() {
		var b models.BugReport
		if err := rows.Scan(&b.ID, &b.Title, &b.Details, &b.Severity, &b.Status, &b.SubmittedBy, &b.Project, &b.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// ResolveBug marks a bug resolved.
func (r *Repository) ResolveBug(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE bug_reports SET status = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, models.BugStatusResolved)
	return err
}

// DeleteBug removes a bug report.
func (r *Repository) DeleteBug(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM bug_reports WHERE id = $1`, id)
	return err
}

// CreateFeature inserts a feature request with status "under-review".
func (r *Repository) CreateFeature(ctx context.Context, f *models.FeatureRequest) error {
	const q = `INSERT INTO feature_requests (title, details, status, submitted_by, project)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, f.Title, f.Details, f.Status, f.SubmittedBy, f.Project).
		Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return fmt.Errorf("create feature request: %w", err)
	}
	return nil
}

// ListFeatures returns all feature requests, newest first.
func (r *Repository) ListFeatures(ctx context.Context) ([]models.FeatureRequest, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, title, details, status, submitted_by, project, created_at
		FROM feature_requests ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.FeatureRequest
	for rows.Next() {
		var f models.FeatureRequest
		if err := rows.Scan(&f.ID, &f.Title, &f.Details, &f.Status, &f.SubmittedBy, &f.Project, &f.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, f)
	}
	return list, rows.Err()
}

// ImplementFeature marks a feature request implemented.
func (r *Repository) ImplementFeature(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE feature_requests SET status = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, models.FeatureStatusImplemented)
	return err
}

// DeleteFeature removes a feature request.
func (r *Repository) DeleteFeature(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM feature_requests WHERE id = $1`, id)
	return err
}

// CreateRating inserts an experience rating.
func (r *Repository) CreateRating(ctx context.Context, e *models.ExperienceRating) error {
	const q = `INSERT INTO experience_ratings (details, rating, submitted_by, project)
		VALUES (NULLIF($1, ''), $2, $3, $4)
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, e.Details, e.Rating, e.SubmittedBy, e.Project).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("create experience rating: %w", err)
	}
	return nil
}

// ListRatings returns all experience ratings, newest first.
func (r *Repository) ListRatings(ctx context.Context) ([]models.ExperienceRating, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, COALESCE(details, ''), rating, submitted_by, project, created_at
		FROM experience_ratings ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.ExperienceRating
	for rows.Next() {
		var e models.ExperienceRating
		if err := rows.Scan(&e.ID, &e.Details, &e.Rating, &e.SubmittedBy, &e.Project, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// DeleteRating removes an experience rating.
func (r *Repository) DeleteRating(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM experience_ratings WHERE id = $1`, id)
	return err
}
