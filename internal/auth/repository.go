package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teenagetech/beta/internal/models"
)

// ErrDuplicateEmail is returned when a verified tester account already
// exists for the email.
var ErrDuplicateEmail = errors.New("email already registered")

// Repository handles admin and tester account persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetAdminByEmail returns an admin account by exact email match.
func (r *Repository) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	const q = `SELECT id, email, password_hash, created_at FROM admins WHERE email = $1`
	var a models.Admin
	err := r.pool.QueryRow(ctx, q, email).Scan(&a.ID, &a.Email, &a.Password, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SeedAdmin inserts the configured admin account if it does not exist.
// An existing account keeps its password.
func (r *Repository) SeedAdmin(ctx context.Context, email, passwordHash string) error {
	const q = `INSERT INTO admins (email, password_hash) VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING`
	if _, err := r.pool.Exec(ctx, q, email, passwordHash); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}

// CreateTester inserts a tester account with an unverified email. An
// unverified row left over from an earlier signup attempt is refreshed
// with the new token; only a verified account reports ErrDuplicateEmail.
func (r *Repository) CreateTester(ctx context.Context, email, passwordHash, verificationToken string) (*models.Tester, error) {
	const q = `INSERT INTO testers (email, password_hash, verification_token)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
			SET password_hash = EXCLUDED.password_hash,
			    verification_token = EXCLUDED.verification_token
			WHERE testers.verified_at IS NULL
		RETURNING id, email, password_hash, verified_at, created_at`
	var t models.Tester
	err := r.pool.QueryRow(ctx, q, email, passwordHash, verificationToken).
		Scan(&t.ID, &t.Email, &t.Password, &t.VerifiedAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, fmt.Errorf("create tester: %w", err)
	}
	return &t, nil
}

// GetTesterByEmail returns a tester account by email.
func (r *Repository) GetTesterByEmail(ctx context.Context, email string) (*models.Tester, error) {
	const q = `SELECT id, email, password_hash, verified_at, created_at FROM testers WHERE email = $1`
	var t models.Tester
	err := r.pool.QueryRow(ctx, q, email).Scan(&t.ID, &t.Email, &t.Password, &t.VerifiedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// VerifyTester marks the tester holding the token as verified.
func (r *Repository) VerifyTester(ctx context.Context, token string) (*models.Tester, error) {
	const q = `UPDATE testers SET verified_at = COALESCE(verified_at, NOW())
		WHERE verification_token = $1
		RETURNING id, email, password_hash, verified_at, created_at`
	var t models.Tester
	err := r.pool.QueryRow(ctx, q, token).Scan(&t.ID, &t.Email, &t.Password, &t.VerifiedAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New("unknown verification token")
	}
	if err != nil {
		return nil, fmt.Errorf("verify tester: %w", err)
	}
	return &t, nil
}
