// Package notifications stores notify-me requests for unreleased betas.
package notifications

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teenagetech/beta/internal/models"
)

// Repository handles notification request persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a notify-me request.
func (r *Repository) Create(ctx context.Context, n *models.Notification) error {
	const q = `INSERT INTO notifications (email, project)
		VALUES ($1, $2)
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, n.Email, n.Project).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// List returns all notify-me requests, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email, project, created_at
		FROM notifications ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.Email, &n.Project, &n.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}
