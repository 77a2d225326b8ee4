// Package session implements the portal's session gate: the single
// authority for who is logged in, which project they belong to, and
// whether they are the administrator.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/teenagetech/beta/internal/models"
)

// ErrInvalidCode is returned when a beta code/email pair does not validate.
var ErrInvalidCode = errors.New("invalid beta code or email")

// CurrentUser is the in-memory authenticated identity for one request.
// It is derived at sign-in and never persisted directly; only the
// email/beta-code pair survives in the session store.
type CurrentUser struct {
	Email    string `json:"email"`
	BetaCode string `json:"beta_code,omitempty"`
	Project  string `json:"project"`
	IsAdmin  bool   `json:"is_admin"`
}

// Session is the persisted tester session. Expiry is stored alongside the
// Redis TTL so a session restored from a stale replica is still checked.
type Session struct {
	Email    string    `json:"email"`
	BetaCode string    `json:"beta_code"`
	Expiry   time.Time `json:"expiry"`
}

// CodeStore validates a beta code/email pair, claiming unclaimed codes
// atomically. Implementations return betacodes.ErrNoMatch (or any error)
// when the pair does not authenticate.
type CodeStore interface {
	ValidateAndClaim(ctx context.Context, code, email string) (*models.BetaCode, error)
}

// AdminPolicy is the single source of truth for admin authority.
type AdminPolicy interface {
	IsAdmin(ctx context.Context, email string) bool
}

// SessionStore persists tester sessions keyed by opaque token.
type SessionStore interface {
	Save(ctx context.Context, token string, s Session, ttl time.Duration) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}

// Gate decides beta-code vs. admin-credential authentication and exposes
// the resulting authorization state.
type Gate struct {
	codes    CodeStore
	admins   AdminPolicy
	sessions SessionStore
	ttl      time.Duration
	logger   *zap.Logger

	now      func() time.Time
	newToken func() (string, error)
}

// NewGate creates a session gate. Tester sessions persist for ttl.
func NewGate(codes CodeStore, admins AdminPolicy, sessions SessionStore, ttl time.Duration, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		codes:    codes,
		admins:   admins,
		sessions: sessions,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		newToken: randomToken,
	}
}

// ValidateBetaCode reports whether the code/email pair authenticates.
// A matching unclaimed code is pinned to the supplied email as a side
// effect. Backend failures validate as false, never as errors.
func (g *Gate) ValidateBetaCode(ctx context.Context, code, email string) (*models.BetaCode, bool) {
	bc, err := g.codes.ValidateAndClaim(ctx, code, email)
	if err != nil {
		g.logger.Debug("beta code validation failed", zap.String("email", email), zap.Error(err))
		return nil, false
	}
	return bc, true
}

// SignIn derives the CurrentUser for an already-validated login. The beta
// code may be nil for admin-path logins; their project is unknown.
func (g *Gate) SignIn(ctx context.Context, email string, code *models.BetaCode) *CurrentUser {
	user := &CurrentUser{
		Email:   email,
		Project: "unknown",
		IsAdmin: g.admins.IsAdmin(ctx, email),
	}
	if code != nil {
		user.BetaCode = code.Code
		user.Project = code.Project
	}
	return user
}

// BetaLogin runs the beta authentication path: validate the code, sign in,
// and persist a session under a fresh opaque token.
func (g *Gate) BetaLogin(ctx context.Context, email, code string) (string, *CurrentUser, error) {
	bc, ok := g.ValidateBetaCode(ctx, code, email)
	if !ok {
		return "", nil, ErrInvalidCode
	}
	user := g.SignIn(ctx, email, bc)

	token, err := g.newToken()
	if err != nil {
		return "", nil, err
	}
	sess := Session{
		Email:    email,
		BetaCode: code,
		Expiry:   g.now().Add(g.ttl),
	}
	if err := g.sessions.Save(ctx, token, sess, g.ttl); err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// RestoreSession re-establishes a CurrentUser from a persisted session.
// Absent, malformed, or expired sessions are purged silently; a session
// whose beta code no longer validates is purged too. All failure modes
// degrade to "not logged in" (nil) rather than surfacing an error.
func (g *Gate) RestoreSession(ctx context.Context, token string) *CurrentUser {
	if token == "" {
		return nil
	}
	sess, err := g.sessions.Get(ctx, token)
	if err != nil || sess == nil {
		return nil
	}
	if sess.Email == "" || sess.BetaCode == "" || !sess.Expiry.After(g.now()) {
		g.purge(ctx, token)
		return nil
	}
	bc, ok := g.ValidateBetaCode(ctx, sess.BetaCode, sess.Email)
	if !ok {
		g.purge(ctx, token)
		return nil
	}
	return g.SignIn(ctx, sess.Email, bc)
}

// SignOut purges the persisted session. It always succeeds from the
// caller's perspective; store failures are returned only so the handler
// can show a transient notice.
func (g *Gate) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := g.sessions.Delete(ctx, token); err != nil {
		g.logger.Warn("session purge failed", zap.Error(err))
		return err
	}
	return nil
}

func (g *Gate) purge(ctx context.Context, token string) {
	if err := g.sessions.Delete(ctx, token); err != nil {
		g.logger.Debug("stale session purge failed", zap.Error(err))
	}
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
