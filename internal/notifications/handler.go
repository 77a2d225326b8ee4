package notifications

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teenagetech/beta/internal/models"
	"github.com/teenagetech/beta/internal/realtime"
	"github.com/teenagetech/beta/pkg/queue"
	"github.com/teenagetech/beta/pkg/response"
)

// Store is the notification persistence contract the handler depends on.
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context) ([]models.Notification, error)
}

// Notifier pushes dashboard change events.
type Notifier interface {
	Publish(topic, event string, payload interface{})
}

// EmailQueue enqueues notify-me confirmation email jobs.
type EmailQueue interface {
	EnqueueNotifyEmail(ctx context.Context, payload queue.NotifyEmailPayload) error
}

// NotifyRequest is the body for POST /notifications.
type NotifyRequest struct {
	Email   string `json:"email" binding:"required,email"`
	Project string `json:"project"`
}

// Handler handles notify-me HTTP endpoints.
type Handler struct {
	repo   Store
	hub    Notifier
	emails EmailQueue
	logger *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(repo Store, hub Notifier, emails EmailQueue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, hub: hub, emails: emails, logger: logger}
}

// Notify handles POST /notifications (public).
func (h *Handler) Notify(c *gin.Context) {
	var req NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Project == "" {
		req.Project = models.NotifyProject
	}

	n := &models.Notification{Email: req.Email, Project: req.Project}
	if err := h.repo.Create(c.Request.Context(), n); err != nil {
		h.logger.Error("create notification failed", zap.Error(err))
		response.Internal(c, "there was an error submitting your notification request, please try again")
		return
	}

	payload := queue.NotifyEmailPayload{Recipient: n.Email, Project: n.Project}
	if err := h.emails.EnqueueNotifyEmail(c.Request.Context(), payload); err != nil {
		h.logger.Warn("enqueue notify email failed", zap.Error(err), zap.String("email", n.Email))
	}

	h.hub.Publish(realtime.TopicNotifications, "notify_requested", n)
	response.Created(c, n)
}

// List handles GET /notifications (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to load notification requests")
		return
	}
	response.OK(c, list)
}
