package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/teenagetech/beta/internal/auth"
	"github.com/teenagetech/beta/internal/models"
	"github.com/teenagetech/beta/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCodes struct {
	codes map[string]string // code -> email it validates for
}

func (s *stubCodes) ValidateAndClaim(_ context.Context, code, email string) (*models.BetaCode, error) {
	if s.codes[code] != email {
		return nil, errors.New("no matching code")
	}
	return &models.BetaCode{Code: code, Project: "8ball", Email: &email}, nil
}

type stubPolicy struct {
	admins map[string]bool
}

func (s *stubPolicy) IsAdmin(_ context.Context, email string) bool { return s.admins[email] }

type stubSessions struct {
	saved map[string]session.Session
}

func (s *stubSessions) Save(_ context.Context, token string, sess session.Session, _ time.Duration) error {
	s.saved[token] = sess
	return nil
}

func (s *stubSessions) Get(_ context.Context, token string) (*session.Session, error) {
	sess, ok := s.saved[token]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *stubSessions) Delete(_ context.Context, token string) error {
	delete(s.saved, token)
	return nil
}

func newEnv(t *testing.T) (*gin.Engine, *auth.JWTService, func() *session.CurrentUser) {
	t.Helper()
	codes := &stubCodes{codes: map[string]string{"FRIENDS1": "sam@example.com"}}
	policy := &stubPolicy{admins: map[string]bool{"owen@owen.uno": true}}
	sessions := &stubSessions{saved: map[string]session.Session{
		"tester-token": {
			Email:    "sam@example.com",
			BetaCode: "FRIENDS1",
			Expiry:   time.Now().Add(time.Hour),
		},
	}}
	gate := session.NewGate(codes, policy, sessions, time.Hour, nil)
	jwtService := auth.NewJWTService("test-secret", 1)

	var seen *session.CurrentUser
	router := gin.New()
	router.Use(CurrentUser(gate, jwtService, policy))
	router.GET("/open", func(c *gin.Context) {
		seen = User(c)
		c.Status(http.StatusOK)
	})
	router.GET("/tester", RequireTester(), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return router, jwtService, func() *session.CurrentUser { return seen }
}

func get(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestCurrentUserFromTesterSession(t *testing.T) {
	router, _, seen := newEnv(t)

	if w := get(router, "/open", "tester-token"); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	user := seen()
	if user == nil || user.Email != "sam@example.com" || user.IsAdmin {
		t.Fatalf("user = %+v", user)
	}
}

func TestCurrentUserFromAdminJWT(t *testing.T) {
	router, jwtService, seen := newEnv(t)

	token, err := jwtService.Generate("owen@owen.uno")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if w := get(router, "/open", token); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	user := seen()
	if user == nil || !user.IsAdmin || user.Email != "owen@owen.uno" {
		t.Fatalf("user = %+v", user)
	}
}

func TestJWTForNonAdminGrantsNothing(t *testing.T) {
	router, jwtService, seen := newEnv(t)

	// A validly signed token is worthless unless the email is still on
	// the admin store at request time.
	token, err := jwtService.Generate("sam@example.com")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if w := get(router, "/open", token); w.Code != http.StatusOK {
		t.Fatalf("open route must not abort, status = %d", w.Code)
	}
	if user := seen(); user != nil {
		t.Fatalf("expected no user, got %+v", user)
	}
	if w := get(router, "/admin", token); w.Code != http.StatusUnauthorized {
		t.Fatalf("admin route status = %d", w.Code)
	}
}

func TestRequireTester(t *testing.T) {
	router, _, _ := newEnv(t)

	if w := get(router, "/tester", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", w.Code)
	}
	if w := get(router, "/tester", "tester-token"); w.Code != http.StatusOK {
		t.Fatalf("tester status = %d", w.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	router, jwtService, _ := newEnv(t)

	if w := get(router, "/admin", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", w.Code)
	}
	if w := get(router, "/admin", "tester-token"); w.Code != http.StatusForbidden {
		t.Fatalf("tester status = %d", w.Code)
	}
	token, _ := jwtService.Generate("owen@owen.uno")
	if w := get(router, "/admin", token); w.Code != http.StatusOK {
		t.Fatalf("admin status = %d", w.Code)
	}
}
