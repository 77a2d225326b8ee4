package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/teenagetech/beta/internal/models"
	"github.com/teenagetech/beta/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCodes struct {
	codes map[string]*models.BetaCode
}

func (s *stubCodes) ValidateAndClaim(_ context.Context, code, email string) (*models.BetaCode, error) {
	bc, ok := s.codes[code]
	if !ok {
		return nil, errors.New("no matching code")
	}
	if bc.Email == nil || *bc.Email == "" {
		e := email
		bc.Email = &e
		return bc, nil
	}
	if *bc.Email != email {
		return nil, errors.New("no matching code")
	}
	return bc, nil
}

type stubPolicy struct {
	admins map[string]bool
}

func (s *stubPolicy) IsAdmin(_ context.Context, email string) bool { return s.admins[email] }

type stubSessions struct {
	saved   map[string]session.Session
	saveErr error
}

func (s *stubSessions) Save(_ context.Context, token string, sess session.Session, _ time.Duration) error {
	if s.saveErr != nil {
		return s.saveErr
	}
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

func newTestHandler() (*Handler, *stubSessions) {
	codes := &stubCodes{codes: map[string]*models.BetaCode{
		"FRIENDS1": {Code: "FRIENDS1", Project: "8ball"},
	}}
	sessions := &stubSessions{saved: make(map[string]session.Session)}
	gate := session.NewGate(codes, &stubPolicy{}, sessions, 30*24*time.Hour, nil)
	return NewHandler(gate, nil, NewJWTService("test-secret", 12), nil), sessions
}

func postLogin(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	h.Login(c)
	return w
}

func TestBetaLoginSuccess(t *testing.T) {
	h, sessions := newTestHandler()

	w := postLogin(t, h, `{"email":"sam@example.com","beta_code":"FRIENDS1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data LoginResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data.Token == "" {
		t.Fatal("missing session token")
	}
	if resp.Data.User.Email != "sam@example.com" || resp.Data.User.Project != "8ball" || resp.Data.User.IsAdmin {
		t.Fatalf("unexpected user: %+v", resp.Data.User)
	}
	if _, ok := sessions.saved[resp.Data.Token]; !ok {
		t.Fatal("session not persisted under the returned token")
	}
}

func TestBetaLoginInvalidCode(t *testing.T) {
	h, sessions := newTestHandler()

	w := postLogin(t, h, `{"email":"sam@example.com","beta_code":"WRONG"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	if len(sessions.saved) != 0 {
		t.Fatal("failed login must not persist a session")
	}
}

func TestBetaLoginStoreFailure(t *testing.T) {
	h, sessions := newTestHandler()
	sessions.saveErr = errors.New("redis down")

	// The handler is built with a nil logger; the error branch must not
	// panic and must report a server error.
	w := postLogin(t, h, `{"email":"sam@example.com","beta_code":"FRIENDS1"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestLoginRequiredFieldsByMode(t *testing.T) {
	h, _ := newTestHandler()

	// Beta path: beta code required, password not.
	if w := postLogin(t, h, `{"email":"sam@example.com"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("beta path without code: status = %d", w.Code)
	}
	// Admin path: password required, beta code not.
	if w := postLogin(t, h, `{"email":"owen@owen.uno","admin":true}`); w.Code != http.StatusBadRequest {
		t.Fatalf("admin path without password: status = %d", w.Code)
	}
	if w := postLogin(t, h, `{"email":"not-an-email","beta_code":"X"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed email: status = %d", w.Code)
	}
}

func sessionRequest(t *testing.T, h *Handler, token string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	if token != "" {
		c.Request.Header.Set("Authorization", "Bearer "+token)
	}
	h.Session(c)
	return w
}

func TestSessionRestore(t *testing.T) {
	h, _ := newTestHandler()

	w := postLogin(t, h, `{"email":"sam@example.com","beta_code":"FRIENDS1"}`)
	var login struct {
		Data LoginResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	w = sessionRequest(t, h, login.Data.Token)
	if w.Code != http.StatusOK {
		t.Fatalf("restore status = %d", w.Code)
	}

	if w := sessionRequest(t, h, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d", w.Code)
	}
	if w := sessionRequest(t, h, "bogus"); w.Code != http.StatusUnauthorized {
		t.Fatalf("bogus token status = %d", w.Code)
	}
}

func TestLogout(t *testing.T) {
	h, sessions := newTestHandler()

	w := postLogin(t, h, `{"email":"sam@example.com","beta_code":"FRIENDS1"}`)
	var login struct {
		Data LoginResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	w = httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	c.Request.Header.Set("Authorization", "Bearer "+login.Data.Token)
	h.Logout(c)

	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d", w.Code)
	}
	if len(sessions.saved) != 0 {
		t.Fatal("session not purged on logout")
	}
	if w := sessionRequest(t, h, login.Data.Token); w.Code != http.StatusUnauthorized {
		t.Fatal("purged session must not restore")
	}
}
