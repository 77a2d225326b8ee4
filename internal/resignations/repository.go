// Package resignations records testers opting out of the beta program.
package resignations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teenagetech/beta/internal/models"
)

// Repository handles the append-only resignation log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a resignations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append records a resignation. Nothing ever updates or deletes these rows.
func (r *Repository) Append(ctx context.Context, res *models.Resignation) error {
	const q = `INSERT INTO resignations (email, beta_code, project)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, res.Email, res.BetaCode, res.Project).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		return fmt.Errorf("append resignation: %w", err)
	}
	return nil
}

// List returns all resignations, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Resignation, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email, beta_code, project, created_at
		FROM resignations ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Resignation
	for rows.Next() {
		var res models.Resignation
		if err := rows.Scan(&res.ID, &res.Email, &res.BetaCode, &res.Project, &res.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, res)
	}
	return list, rows.Err()
}
