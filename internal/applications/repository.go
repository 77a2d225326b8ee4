// Package applications manages beta-access applications and their review.
package applications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teenagetech/beta/internal/models"
)

// ErrDuplicateEmail is returned when an application already exists for
// the email.
var ErrDuplicateEmail = errors.New("email already applied")

const applicationColumns = `id, name, email, playdate_owner, experience, status, project, beta_code, created_at, updated_at`

// Repository handles application persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an applications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanApplication(row pgx.Row) (*models.Application, error) {
	var a models.Application
	var experience *string
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PlaydateOwner, &experience, &a.Status, &a.Project, &a.BetaCode, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if experience != nil {
		a.Experience = *experience
	}
	return &a, nil
}

// Create inserts a pending application. One application per email.
func (r *Repository) Create(ctx context.Context, name, email, playdateOwner, experience, project string) (*models.Application, error) {
	const q = `INSERT INTO applications (name, email, playdate_owner, experience, status, project)
		VALUES ($1, $2, $3, NULLIF($4, ''), 'pending', $5)
		ON CONFLICT (email) DO NOTHING
		RETURNING ` + applicationColumns
	app, err := scanApplication(r.pool.QueryRow(ctx, q, name, email, playdateOwner, experience, project))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}
	return app, nil
}

// GetByID returns an application by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	const q = `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	app, err := scanApplication(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, err
	}
	return app, nil
}

// List returns all applications, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Application, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+applicationColumns+` FROM applications ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Application
	for rows.Next() {
		var a models.Application
		var experience *string
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.PlaydateOwner, &experience, &a.Status, &a.Project, &a.BetaCode, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if experience != nil {
			a.Experience = *experience
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// Approve marks the application approved and stamps the minted beta code
// onto it.
func (r *Repository) Approve(ctx context.Context, id uuid.UUID, betaCode string) (*models.Application, error) {
	const q = `UPDATE applications SET status = 'approved', beta_code = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + applicationColumns
	app, err := scanApplication(r.pool.QueryRow(ctx, q, id, betaCode))
	if err != nil {
		return nil, fmt.Errorf("approve application: %w", err)
	}
	return app, nil
}

// Deny marks the application denied.
func (r *Repository) Deny(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	const q = `UPDATE applications SET status = 'denied', updated_at = NOW()
		WHERE id = $1
		RETURNING ` + applicationColumns
	app, err := scanApplication(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, fmt.Errorf("deny application: %w", err)
	}
	return app, nil
}
