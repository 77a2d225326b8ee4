package resignations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/teenagetech/beta/internal/middleware"
	"github.com/teenagetech/beta/internal/models"
	"github.com/teenagetech/beta/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	records []*models.Resignation
	err     error
}

func (f *fakeStore) Append(_ context.Context, r *models.Resignation) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, r)
	return nil
}

func (f *fakeStore) List(_ context.Context) ([]models.Resignation, error) {
	out := make([]models.Resignation, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, *r)
	}
	return out, nil
}

type fakeGate struct {
	signedOut []string
	err       error
}

func (f *fakeGate) SignOut(_ context.Context, token string) error {
	f.signedOut = append(f.signedOut, token)
	return f.err
}

type fakeNotifier struct {
	events []string
}

func (f *fakeNotifier) Publish(_, event string, _ interface{}) {
	f.events = append(f.events, event)
}

func resign(t *testing.T, h *Handler, user *session.CurrentUser, token string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/resign", nil)
	if user != nil {
		c.Set(middleware.ContextUser, user)
	}
	if token != "" {
		c.Set(middleware.ContextSessionToken, token)
	}
	h.Resign(c)
	return w
}

func TestResignRequiresLogin(t *testing.T) {
	store := &fakeStore{}
	h := NewHandler(store, &fakeGate{}, &fakeNotifier{}, nil)

	if w := resign(t, h, nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if len(store.records) != 0 {
		t.Fatal("logged-out resign must write nothing")
	}
}

func TestResignAppendsAndSignsOut(t *testing.T) {
	store := &fakeStore{}
	gate := &fakeGate{}
	hub := &fakeNotifier{}
	h := NewHandler(store, gate, hub, nil)

	user := &session.CurrentUser{Email: "sam@example.com", BetaCode: "FRIENDS1", Project: "8ball"}
	w := resign(t, h, user, "tok-1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	if len(store.records) != 1 {
		t.Fatalf("records = %d", len(store.records))
	}
	rec := store.records[0]
	if rec.Email != "sam@example.com" || rec.BetaCode != "FRIENDS1" || rec.Project != "8ball" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(gate.signedOut) != 1 || gate.signedOut[0] != "tok-1" {
		t.Fatalf("signedOut = %v", gate.signedOut)
	}
	if len(hub.events) != 1 || hub.events[0] != "tester_resigned" {
		t.Fatalf("events = %v", hub.events)
	}

	var resp struct {
		Data ResignResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Data.Resigned || !resp.Data.SignedOut || resp.Data.Notice != "" {
		t.Fatalf("unexpected response: %+v", resp.Data)
	}
}

func TestResignSignOutFailureStillResigns(t *testing.T) {
	store := &fakeStore{}
	gate := &fakeGate{err: errors.New("redis down")}
	h := NewHandler(store, gate, &fakeNotifier{}, nil)

	user := &session.CurrentUser{Email: "sam@example.com", BetaCode: "FRIENDS1", Project: "8ball"}
	w := resign(t, h, user, "tok-1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; the opt-out stands even when purge fails", w.Code)
	}
	if len(store.records) != 1 {
		t.Fatalf("records = %d", len(store.records))
	}

	var resp struct {
		Data ResignResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Data.Resigned || resp.Data.Notice == "" {
		t.Fatalf("expected pending-cleanup notice, got %+v", resp.Data)
	}
}

func TestResignAppendFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	gate := &fakeGate{}
	h := NewHandler(store, gate, &fakeNotifier{}, nil)

	user := &session.CurrentUser{Email: "sam@example.com", Project: "8ball"}
	if w := resign(t, h, user, "tok-1"); w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if len(gate.signedOut) != 0 {
		t.Fatal("must not sign out when the record was not appended")
	}
}
