package applications

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teenagetech/beta/internal/auth"
	"github.com/teenagetech/beta/internal/models"
	"github.com/teenagetech/beta/internal/realtime"
	"github.com/teenagetech/beta/pkg/queue"
	"github.com/teenagetech/beta/pkg/response"
	"github.com/teenagetech/beta/pkg/utils"
)

// Store is the application persistence contract the handler depends on.
type Store interface {
	Create(ctx context.Context, name, email, playdateOwner, experience, project string) (*models.Application, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	List(ctx context.Context) ([]models.Application, error)
	Approve(ctx context.Context, id uuid.UUID, betaCode string) (*models.Application, error)
	Deny(ctx context.Context, id uuid.UUID) (*models.Application, error)
}

// AccountStore creates tester identities for applicants.
type AccountStore interface {
	CreateTester(ctx context.Context, email, passwordHash, verificationToken string) (*models.Tester, error)
	GetTesterByEmail(ctx context.Context, email string) (*models.Tester, error)
}

// CodeMinter mints beta codes for approved applicants.
type CodeMinter interface {
	Create(ctx context.Context, project, email string) (*models.BetaCode, error)
	AttachTester(ctx context.Context, id, testerID uuid.UUID) error
}

// Notifier pushes dashboard change events.
type Notifier interface {
	Publish(topic, event string, payload interface{})
}

// EmailQueue enqueues verification email jobs.
type EmailQueue interface {
	EnqueueVerificationEmail(ctx context.Context, payload queue.VerificationEmailPayload) error
}

// SubmitRequest is the body for POST /applications (the public signup form).
type SubmitRequest struct {
	Name          string `json:"name" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
	PlaydateOwner string `json:"playdate_owner" binding:"required,oneof=yes no"`
	Experience    string `json:"experience"`
}

// Handler handles application HTTP endpoints.
type Handler struct {
	repo     Store
	accounts AccountStore
	codes    CodeMinter
	hub      Notifier
	emails   EmailQueue
	baseURL  string
	logger   *zap.Logger
}

// NewHandler creates an applications handler.
func NewHandler(repo Store, accounts AccountStore, codes CodeMinter, hub Notifier, emails EmailQueue, baseURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, accounts: accounts, codes: codes, hub: hub, emails: emails, baseURL: baseURL, logger: logger}
}

// Submit handles POST /applications: the public beta signup form. A tester
// identity is created alongside the application so the address can be
// verified by email.
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ctx := c.Request.Context()

	tempPassword, err := utils.GenerateTempPassword()
	if err != nil {
		response.Internal(c, "error submitting application, please try again later")
		return
	}
	hash, err := utils.HashPassword(tempPassword)
	if err != nil {
		response.Internal(c, "error submitting application, please try again later")
		return
	}
	verifyToken := uuid.New().String()

	// The application is the source of truth, so it goes in first. The
	// tester identity follows; an unverified leftover from an earlier
	// partial submission is refreshed rather than rejected.
	app, err := h.repo.Create(ctx, req.Name, req.Email, req.PlaydateOwner, req.Experience, models.DefaultProject)
	if errors.Is(err, ErrDuplicateEmail) {
		// Mirrors the duplicate-signup message shown on the form.
		response.Conflict(c, "this email is already registered; if you've already applied, your application is being reviewed")
		return
	}
	if err != nil {
		h.logger.Error("create application failed", zap.Error(err))
		response.Internal(c, "error submitting application, please try again later")
		return
	}

	tester, err := h.accounts.CreateTester(ctx, req.Email, hash, verifyToken)
	if errors.Is(err, auth.ErrDuplicateEmail) {
		// A verified account already exists for the address; nothing
		// left to verify.
		h.hub.Publish(realtime.TopicApplications, "application_submitted", app)
		response.Created(c, app)
		return
	}
	if err != nil {
		h.logger.Error("create tester failed", zap.Error(err), zap.String("email", req.Email))
		response.Internal(c, "error submitting application, please try again later")
		return
	}

	payload := queue.VerificationEmailPayload{
		TesterID:  tester.ID,
		Recipient: tester.Email,
		Token:     verifyToken,
		VerifyURL: fmt.Sprintf("%s/auth/verify/%s", h.baseURL, verifyToken),
	}
	if err := h.emails.EnqueueVerificationEmail(ctx, payload); err != nil {
		// The application stands either way; the admin can resend later.
		h.logger.Warn("enqueue verification email failed", zap.Error(err), zap.String("email", tester.Email))
	}

	h.hub.Publish(realtime.TopicApplications, "application_submitted", app)
	response.Created(c, app)
}

// List handles GET /applications (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list applications failed", zap.Error(err))
		response.Internal(c, "failed to load applications")
		return
	}
	response.OK(c, list)
}

// Approve handles POST /applications/:id/approve (admin only). A fresh
// beta code is minted for the applicant and stamped onto the application.
func (h *Handler) Approve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid application id")
		return
	}
	ctx := c.Request.Context()

	app, err := h.repo.GetByID(ctx, id)
	if err != nil {
		response.NotFound(c, "application not found")
		return
	}
	if app.Status == models.ApplicationApproved {
		response.OK(c, app)
		return
	}

	code, err := h.codes.Create(ctx, app.Project, app.Email)
	if err != nil {
		h.logger.Error("mint beta code failed", zap.Error(err), zap.String("application_id", id.String()))
		response.Internal(c, "error approving application")
		return
	}
	if tester, err := h.accounts.GetTesterByEmail(ctx, app.Email); err == nil && tester != nil {
		if err := h.codes.AttachTester(ctx, code.ID, tester.ID); err != nil {
			h.logger.Warn("attach tester to beta code failed", zap.Error(err))
		}
	}

	approved, err := h.repo.Approve(ctx, id, code.Code)
	if err != nil {
		h.logger.Error("approve application failed", zap.Error(err), zap.String("application_id", id.String()))
		response.Internal(c, "error approving application")
		return
	}

	h.hub.Publish(realtime.TopicApplications, "application_approved", approved)
	response.OK(c, approved)
}

// Deny handles POST /applications/:id/deny (admin only).
func (h *Handler) Deny(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid application id")
		return
	}

	denied, err := h.repo.Deny(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("deny application failed", zap.Error(err), zap.String("application_id", id.String()))
		response.Internal(c, "error denying application")
		return
	}

	h.hub.Publish(realtime.TopicApplications, "application_denied", denied)
	response.OK(c, denied)
}
