// Package betacodes persists beta access codes.
package betacodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teenagetech/beta/internal/models"
	"github.com/teenagetech/beta/pkg/utils"
)

// ErrNoMatch is returned when no beta code authenticates the given pair.
var ErrNoMatch = errors.New("no matching beta code")

const betaCodeColumns = `id, code, email, project, approved, tester_id, created_at, updated_at`

// Repository handles beta code persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a beta code repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanBetaCode(row pgx.Row) (*models.BetaCode, error) {
	var bc models.BetaCode
	err := row.Scan(&bc.ID, &bc.Code, &bc.Email, &bc.Project, &bc.Approved, &bc.TesterID, &bc.CreatedAt, &bc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &bc, nil
}

// ValidateAndClaim authenticates a code/email pair. An unclaimed code is
// pinned to the email with a conditional update, so two first-time logins
// racing on the same code cannot both claim it.
func (r *Repository) ValidateAndClaim(ctx context.Context, code, email string) (*models.BetaCode, error) {
	claim := `UPDATE beta_codes SET email = $2, updated_at = NOW()
		WHERE code = $1 AND (email IS NULL OR email = '')
		RETURNING ` + betaCodeColumns
	bc, err := scanBetaCode(r.pool.QueryRow(ctx, claim, code, email))
	if err == nil {
		return bc, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("claim beta code: %w", err)
	}

	// Already claimed: only the pinned email authenticates.
	const q = `SELECT ` + betaCodeColumns + ` FROM beta_codes WHERE code = $1 AND email = $2`
	bc, err = scanBetaCode(r.pool.QueryRow(ctx, q, code, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoMatch
	}
	if err != nil {
		return nil, fmt.Errorf("lookup beta code: %w", err)
	}
	return bc, nil
}

// Create mints a fresh random code for an approved applicant. Retries on
// the unlikely event of a code collision.
func (r *Repository) Create(ctx context.Context, project, email string) (*models.BetaCode, error) {
	const q = `INSERT INTO beta_codes (code, email, project, approved)
		VALUES ($1, NULLIF($2, ''), $3, TRUE)
		ON CONFLICT (code) DO NOTHING
		RETURNING ` + betaCodeColumns
	for attempt := 0; attempt < 3; attempt++ {
		code, err := utils.GenerateBetaCode()
		if err != nil {
			return nil, err
		}
		bc, err := scanBetaCode(r.pool.QueryRow(ctx, q, code, email, project))
		if errors.Is(err, pgx.ErrNoRows) {
			continue // collision, try another code
		}
		if err != nil {
			return nil, fmt.Errorf("create beta code: %w", err)
		}
		return bc, nil
	}
	return nil, errors.New("could not generate a unique beta code")
}

// GetByEmail returns the code pinned to an email, if any.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.BetaCode, error) {
	const q = `SELECT ` + betaCodeColumns + ` FROM beta_codes WHERE email = $1`
	bc, err := scanBetaCode(r.pool.QueryRow(ctx, q, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoMatch
	}
	if err != nil {
		return nil, fmt.Errorf("lookup beta code by email: %w", err)
	}
	return bc, nil
}

// AttachTester stamps the tester account onto a code after approval.
func (r *Repository) AttachTester(ctx context.Context, id, testerID uuid.UUID) error {
	const q = `UPDATE beta_codes SET tester_id = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, testerID)
	return err
}

// List returns all codes, newest first.
func (r *Repository) List(ctx context.Context) ([]models.BetaCode, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+betaCodeColumns+` FROM beta_codes ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.BetaCode
	for rows.Next() {
		var bc models.BetaCode
		if err := rows.Scan(&bc.ID, &bc.Code, &bc.Email, &bc.Project, &bc.Approved, &bc.TesterID, &bc.CreatedAt, &bc.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, bc)
	}
	return list, rows.Err()
}
