package feedback

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teenagetech/beta/internal/middleware"
	"github.com/teenagetech/beta/internal/models"
	"github.com/teenagetech/beta/internal/realtime"
	"github.com/teenagetech/beta/pkg/response"
)

// Store is the feedback persistence contract the handler depends on.
type Store interface {
	CreateBug(ctx context.Context, b *models.BugReport) error
	ListBugs(ctx context.Context) ([]models.BugReport, error)
	ResolveBug(ctx context.Context, id uuid.UUID) error
	DeleteBug(ctx context.Context, id uuid.UUID) error

	CreateFeature(ctx context.Context, f *models.FeatureRequest) error
	ListFeatures(ctx context.Context) ([]models.FeatureRequest, error)
	ImplementFeature(ctx context.Context, id uuid.UUID) error
	DeleteFeature(ctx context.Context, id uuid.UUID) error

	CreateRating(ctx context.Context, e *models.ExperienceRating) error
	ListRatings(ctx context.Context) ([]models.ExperienceRating, error)
	DeleteRating(ctx context.Context, id uuid.UUID) error
}

// Notifier pushes dashboard change events.
type Notifier interface {
	Publish(topic, event string, payload interface{})
}

// BugRequest is the body for POST /feedback/bugs.
type BugRequest struct {
	Title    string `json:"title" binding:"required"`
	Details  string `json:"details" binding:"required"`
	Severity string `json:"severity" binding:"required,oneof=low medium high critical"`
}

// FeatureRequest is the body for POST /feedback/features.
type FeatureRequest struct {
	Title   string `json:"title" binding:"required"`
	Details string `json:"details" binding:"required"`
}

// RatingRequest is the body for POST /feedback/experiences.
type RatingRequest struct {
	Details string `json:"details"`
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
}

// Handler handles feedback HTTP endpoints. Submissions are gated on a
// logged-in tester: without a CurrentUser the handler writes nothing.
type Handler struct {
	repo   Store
	hub    Notifier
	logger *zap.Logger
}

// NewHandler creates a feedback handler.
func NewHandler(repo Store, hub Notifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, hub: hub, logger: logger}
}

// SubmitBug handles POST /feedback/bugs.
func (h *Handler) SubmitBug(c *gin.Context) {
	user := middleware.User(c)
	if user == nil {
		response.Unauthorized(c, "login required")
		return
	}
	var req BugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	bug := &models.BugReport{
		Title:       req.Title,
		Details:     req.Details,
		Severity:    models.BugSeverity(req.Severity),
		Status:      models.BugStatusNew,
		SubmittedBy: user.Email,
		Project:     user.Project,
	}
	if err := h.repo.CreateBug(c.Request.Context(), bug); err != nil {
		h.logger.Error("create bug report failed", zap.Error(err))
		response.Internal(c, "there was an error submitting your feedback, please try again")
		return
	}
	h.hub.Publish(realtime.TopicBugs, "bug_submitted", bug)
	response.Created(c, bug)
}

// SubmitFeature handles POST /feedback/features.
func (h *Handler) SubmitFeature(c *gin.Context) {
	user := middleware.User(c)
	if user == nil {
		response.Unauthorized(c, "login required")
		return
	}
	var req FeatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	feature := &models.FeatureRequest{
		Title:       req.Title,
		Details:     req.Details,
		Status:      models.FeatureStatusUnderReview,
		SubmittedBy: user.Email,
		Project:     user.Project,
	}
	if err := h.repo.CreateFeature(c.Request.Context(), feature); err != nil {
		h.logger.Error("create feature request failed", zap.Error(err))
		response.Internal(c, "there was an error submitting your feedback, please try again")
		return
	}
	h.hub.Publish(realtime.TopicFeatures, "feature_submitted", feature)
	response.Created(c, feature)
}

// SubmitRating handles POST /feedback/experiences.
func (h *Handler) SubmitRating(c *gin.Context) {
	user := middleware.User(c)
	if user == nil {
		response.Unauthorized(c, "login required")
		return
	}
	var req RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	rating := &models.ExperienceRating{
		Details:     req.Details,
		Rating:      req.Rating,
		SubmittedBy: user.Email,
		Project:     user.Project,
	}
	if err := h.repo.CreateRating(c.Request.Context(), rating); err != nil {
		h.logger.Error("create experience rating failed", zap.Error(err))
		response.Internal(c, "there was an error submitting your feedback, please try again")
		return
	}
	h.hub.Publish(realtime.TopicRatings, "rating_submitted", rating)
	response.Created(c, rating)
}

// ListBugs handles GET /feedback/bugs (admin only).
func (h *Handler) ListBugs(c *gin.Context) {
	list, err := h.repo.ListBugs(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to load bug reports")
		return
	}
	response.OK(c, list)
}

// ListFeatures handles GET /feedback/features (admin only).
func (h *Handler) ListFeatures(c *gin.Context) {
	list, err := h.repo.ListFeatures(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to load feature requests")
		return
	}
	response.OK(c, list)
}

// ListRatings handles GET /feedback/experiences (admin only).
func (h *Handler) ListRatings(c *gin.Context) {
	list, err := h.repo.ListRatings(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to load ratings")
		return
	}
	response.OK(c, list)
}

// ResolveBug handles PATCH /feedback/bugs/:id/resolve (admin only).
func (h *Handler) ResolveBug(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	if err := h.repo.ResolveBug(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to resolve bug")
		return
	}
	h.hub.Publish(realtime.TopicBugs, "bug_resolved", gin.H{"id": id})
	response.OK(c, gin.H{"id": id, "status": models.BugStatusResolved})
}

// ImplementFeature handles PATCH /feedback/features/:id/implement (admin only).
func (h *Handler) ImplementFeature(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	if err := h.repo.ImplementFeature(c.Request.Context(), id); err != nil {
		response.Internal(c, "failed to mark feature implemented")
		return
	}
	h.hub.Publish(realtime.TopicFeatures, "feature_implemented", gin.H{"id": id})
	response.OK(c, gin.H{"id": id, "status": models.FeatureStatusImplemented})
}

// Delete handles DELETE /feedback/:kind/:id (admin only).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	ctx := c.Request.Context()

	var topic, event string
	switch c.Param("kind") {
	case "bugs":
		err = h.repo.DeleteBug(ctx, id)
		topic, event = realtime.TopicBugs, "bug_deleted"
	case "features":
		err = h.repo.DeleteFeature(ctx, id)
		topic, event = realtime.TopicFeatures, "feature_deleted"
	case "experiences":
		err = h.repo.DeleteRating(ctx, id)
		topic, event = realtime.TopicRatings, "rating_deleted"
	default:
		response.BadRequest(c, "unknown feedback kind")
		return
	}
	if err != nil {
		response.Internal(c, "failed to delete feedback")
		return
	}
	h.hub.Publish(topic, event, gin.H{"id": id})
	response.NoContent(c)
}
