package applications

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
	"github.com/google/uuid"

	"github.com/teenagetech/beta/internal/auth"
	"github.com/teenagetech/beta/internal/models"
	"github.com/teenagetech/beta/pkg/queue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	apps      map[uuid.UUID]*models.Application
	byMail    map[string]bool
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{apps: make(map[uuid.UUID]*models.Application), byMail: make(map[string]bool)}
}

func (f *fakeStore) Create(_ context.Context, name, email, playdateOwner, experience, project string) (*models.Application, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.byMail[email] {
		return nil, ErrDuplicateEmail
	}
	app := &models.Application{
		ID:            uuid.New(),
		Name:          name,
		Email:         email,
		PlaydateOwner: playdateOwner,
		Experience:    experience,
		Status:        models.ApplicationPending,
		Project:       project,
	}
	f.apps[app.ID] = app
	f.byMail[email] = true
	return app, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Application, error) {
	app, ok := f.apps[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return app, nil
}

func (f *fakeStore) List(_ context.Context) ([]models.Application, error) {
	out := make([]models.Application, 0, len(f.apps))
	for _, a := range f.apps {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeStore) Approve(_ context.Context, id uuid.UUID, betaCode string) (*models.Application, error) {
	app, ok := f.apps[id]
	if !ok {
		return nil, errors.New("not found")
	}
	app.Status = models.ApplicationApproved
	app.BetaCode = &betaCode
	return app, nil
}

func (f *fakeStore) Deny(_ context.Context, id uuid.UUID) (*models.Application, error) {
	app, ok := f.apps[id]
	if !ok {
		return nil, errors.New("not found")
	}
	app.Status = models.ApplicationDenied
	return app, nil
}

type fakeAccounts struct {
	testers   map[string]*models.Tester
	createErr error
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{testers: make(map[string]*models.Tester)}
}

func (f *fakeAccounts) CreateTester(_ context.Context, email, _, _ string) (*models.Tester, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if t, ok := f.testers[email]; ok {
		if t.VerifiedAt != nil {
			return nil, auth.ErrDuplicateEmail
		}
		return t, nil
	}
	t := &models.Tester{ID: uuid.New(), Email: email}
	f.testers[email] = t
	return t, nil
}

func (f *fakeAccounts) GetTesterByEmail(_ context.Context, email string) (*models.Tester, error) {
	t, ok := f.testers[email]
	if !ok {
		return nil, errors.New("not found")
	}
	return t, nil
}

type fakeMinter struct {
	minted   []string
	attached []uuid.UUID
	err      error
}

func (f *fakeMinter) Create(_ context.Context, project, email string) (*models.BetaCode, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.minted = append(f.minted, email)
	return &models.BetaCode{ID: uuid.New(), Code: "MINTED01", Project: project, Email: &email}, nil
}

func (f *fakeMinter) AttachTester(_ context.Context, _, testerID uuid.UUID) error {
	f.attached = append(f.attached, testerID)
	return nil
}

type fakeNotifier struct {
	events []string
}

func (f *fakeNotifier) Publish(_, event string, _ interface{}) {
	f.events = append(f.events, event)
}

type fakeEmailQueue struct {
	jobs []queue.VerificationEmailPayload
	err  error
}

func (f *fakeEmailQueue) EnqueueVerificationEmail(_ context.Context, p queue.VerificationEmailPayload) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, p)
	return nil
}

type fixture struct {
	store    *fakeStore
	accounts *fakeAccounts
	minter   *fakeMinter
	hub      *fakeNotifier
	emails   *fakeEmailQueue
	handler  *Handler
}

func newFixture() *fixture {
	f := &fixture{
		store:    newFakeStore(),
		accounts: newFakeAccounts(),
		minter:   &fakeMinter{},
		hub:      &fakeNotifier{},
		emails:   &fakeEmailQueue{},
	}
	f.handler = NewHandler(f.store, f.accounts, f.minter, f.hub, f.emails, "http://localhost:8080", nil)
	return f
}

func submit(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/applications", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	h.Submit(c)
	return w
}

func TestSubmitCreatesPendingApplication(t *testing.T) {
	f := newFixture()

	w := submit(t, f.handler, `{"name":"Sam","email":"sam@example.com","playdate_owner":"yes","experience":"lots of crank"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool               `json:"success"`
		Data    models.Application `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data.Status != models.ApplicationPending {
		t.Fatalf("status = %q, want pending", resp.Data.Status)
	}
	if resp.Data.Project != models.DefaultProject {
		t.Fatalf("project = %q", resp.Data.Project)
	}
	if len(f.emails.jobs) != 1 {
		t.Fatalf("expected one verification email job, got %d", len(f.emails.jobs))
	}
	if f.emails.jobs[0].Recipient != "sam@example.com" {
		t.Fatalf("verification recipient = %q", f.emails.jobs[0].Recipient)
	}
	if len(f.hub.events) != 1 || f.hub.events[0] != "application_submitted" {
		t.Fatalf("events = %v", f.hub.events)
	}
}

func TestSubmitDuplicateEmail(t *testing.T) {
	f := newFixture()

	if w := submit(t, f.handler, `{"name":"Sam","email":"sam@example.com","playdate_owner":"no"}`); w.Code != http.StatusCreated {
		t.Fatalf("first submit: %d", w.Code)
	}
	w := submit(t, f.handler, `{"name":"Sam Again","email":"sam@example.com","playdate_owner":"no"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate submit status = %d", w.Code)
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture()

	cases := []string{
		`{"email":"sam@example.com","playdate_owner":"yes"}`,
		`{"name":"Sam","email":"not-an-email","playdate_owner":"yes"}`,
		`{"name":"Sam","email":"sam@example.com","playdate_owner":"maybe"}`,
	}
	for _, body := range cases {
		if w := submit(t, f.handler, body); w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
	}
	if len(f.store.apps) != 0 {
		t.Fatal("invalid submissions must not persist")
	}
}

func TestSubmitBackendFailureIsNotConflict(t *testing.T) {
	f := newFixture()
	f.store.createErr = errors.New("connection refused")

	w := submit(t, f.handler, `{"name":"Sam","email":"sam@example.com","playdate_owner":"yes"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 for a backend failure", w.Code)
	}
	if len(f.accounts.testers) != 0 {
		t.Fatal("no tester row may be created when the application is not recorded")
	}
}

func TestSubmitTesterFailureKeepsApplication(t *testing.T) {
	f := newFixture()
	f.accounts.createErr = errors.New("connection refused")

	w := submit(t, f.handler, `{"name":"Sam","email":"sam@example.com","playdate_owner":"yes"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if len(f.store.apps) != 1 {
		t.Fatalf("application must be recorded before the tester identity, got %d", len(f.store.apps))
	}
	if len(f.emails.jobs) != 0 {
		t.Fatal("no verification email without a tester row")
	}
}

func TestSubmitWithVerifiedAccount(t *testing.T) {
	f := newFixture()
	now := time.Now()
	f.accounts.testers["sam@example.com"] = &models.Tester{ID: uuid.New(), Email: "sam@example.com", VerifiedAt: &now}

	w := submit(t, f.handler, `{"name":"Sam","email":"sam@example.com","playdate_owner":"yes"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(f.emails.jobs) != 0 {
		t.Fatal("a verified address needs no verification email")
	}
	if len(f.hub.events) != 1 || f.hub.events[0] != "application_submitted" {
		t.Fatalf("events = %v", f.hub.events)
	}
}

func TestSubmitEmailFailureDoesNotBlock(t *testing.T) {
	f := newFixture()
	f.emails.err = errors.New("queue down")

	w := submit(t, f.handler, `{"name":"Sam","email":"sam@example.com","playdate_owner":"yes"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; the application stands even when mail fails", w.Code)
	}
}

func approveRequest(t *testing.T, h *Handler, id string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/applications/"+id+"/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: id}}
	h.Approve(c)
	return w
}

func TestApproveMintsCode(t *testing.T) {
	f := newFixture()
	submit(t, f.handler, `{"name":"Sam","email":"sam@example.com","playdate_owner":"yes"}`)

	var app *models.Application
	for _, a := range f.store.apps {
		app = a
	}

	w := approveRequest(t, f.handler, app.ID.String())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if app.Status != models.ApplicationApproved {
		t.Fatalf("status = %q", app.Status)
	}
	if app.BetaCode == nil || *app.BetaCode != "MINTED01" {
		t.Fatalf("beta code not stamped: %v", app.BetaCode)
	}
	if len(f.minter.minted) != 1 || f.minter.minted[0] != "sam@example.com" {
		t.Fatalf("minted = %v", f.minter.minted)
	}
	if len(f.minter.attached) != 1 {
		t.Fatalf("tester not attached to code: %v", f.minter.attached)
	}
	if f.hub.events[len(f.hub.events)-1] != "application_approved" {
		t.Fatalf("events = %v", f.hub.events)
	}
}

func TestApproveIdempotent(t *testing.T) {
	f := newFixture()
	submit(t, f.handler, `{"name":"Sam","email":"sam@example.com","playdate_owner":"yes"}`)

	var id uuid.UUID
	for _, a := range f.store.apps {
		id = a.ID
	}

	approveRequest(t, f.handler, id.String())
	w := approveRequest(t, f.handler, id.String())
	if w.Code != http.StatusOK {
		t.Fatalf("second approve status = %d", w.Code)
	}
	if len(f.minter.minted) != 1 {
		t.Fatalf("re-approval must not mint another code, minted %d", len(f.minter.minted))
	}
}

func TestApproveUnknownID(t *testing.T) {
	f := newFixture()

	if w := approveRequest(t, f.handler, uuid.New().String()); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if w := approveRequest(t, f.handler, "not-a-uuid"); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestDeny(t *testing.T) {
	f := newFixture()
	submit(t, f.handler, `{"name":"Sam","email":"sam@example.com","playdate_owner":"no"}`)

	var app *models.Application
	for _, a := range f.store.apps {
		app = a
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/applications/"+app.ID.String()+"/deny", nil)
	c.Params = gin.Params{{Key: "id", Value: app.ID.String()}}
	f.handler.Deny(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if app.Status != models.ApplicationDenied {
		t.Fatalf("status = %q", app.Status)
	}
	if f.hub.events[len(f.hub.events)-1] != "application_denied" {
		t.Fatalf("events = %v", f.hub.events)
	}
}
