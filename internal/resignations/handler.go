package resignations

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teenagetech/beta/internal/middleware"
	"github.com/teenagetech/beta/internal/models"
	"github.com/teenagetech/beta/internal/realtime"
	"github.com/teenagetech/beta/pkg/response"
)

// Store is the resignation persistence contract the handler depends on.
type Store interface {
	Append(ctx context.Context, res *models.Resignation) error
	List(ctx context.Context) ([]models.Resignation, error)
}

// SessionEnder purges the caller's persisted session after resigning.
type SessionEnder interface {
	SignOut(ctx context.Context, token string) error
}

// Notifier pushes dashboard change events.
type Notifier interface {
	Publish(topic, event string, payload interface{})
}

// ResignResponse confirms the opt-out and the sign-out that follows it.
type ResignResponse struct {
	Resigned  bool   `json:"resigned"`
	SignedOut bool   `json:"signed_out"`
	Notice    string `json:"notice,omitempty"`
}

// Handler handles resignation HTTP endpoints.
type Handler struct {
	repo   Store
	gate   SessionEnder
	hub    Notifier
	logger *zap.Logger
}

// NewHandler creates a resignations handler.
func NewHandler(repo Store, gate SessionEnder, hub Notifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, gate: gate, hub: hub, logger: logger}
}

// Resign handles POST /auth/resign: append the opt-out record, then sign
// the tester out and purge their session.
func (h *Handler) Resign(c *gin.Context) {
	user := middleware.User(c)
	if user == nil {
		response.Unauthorized(c, "login required")
		return
	}
	ctx := c.Request.Context()

	res := &models.Resignation{
		Email:    user.Email,
		BetaCode: user.BetaCode,
		Project:  user.Project,
	}
	if err := h.repo.Append(ctx, res); err != nil {
		h.logger.Error("append resignation failed", zap.Error(err), zap.String("email", user.Email))
		response.Internal(c, "could not process your resignation, please try again")
		return
	}

	out := ResignResponse{Resigned: true, SignedOut: true}
	if err := h.gate.SignOut(ctx, middleware.Token(c)); err != nil {
		out.Notice = "resigned; session cleanup is still pending"
	}

	h.hub.Publish(realtime.TopicResignations, "tester_resigned", res)
	response.OK(c, out)
}

// List handles GET /resignations (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to load resignations")
		return
	}
	response.OK(c, list)
}
