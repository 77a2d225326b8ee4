package betacodes

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teenagetech/beta/internal/models"
	"github.com/teenagetech/beta/pkg/response"
)

// Store is the code listing contract the handler depends on.
type Store interface {
	List(ctx context.Context) ([]models.BetaCode, error)
	GetByEmail(ctx context.Context, email string) (*models.BetaCode, error)
}

// Handler handles the admin beta code endpoints.
type Handler struct {
	repo   Store
	logger *zap.Logger
}

// NewHandler creates a beta codes handler.
func NewHandler(repo Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /betacodes (admin only). With ?email= it returns the
// single code pinned to that address.
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()

	if email := c.Query("email"); email != "" {
		bc, err := h.repo.GetByEmail(ctx, email)
		if errors.Is(err, ErrNoMatch) {
			response.NotFound(c, "no beta code for that email")
			return
		}
		if err != nil {
			h.logger.Error("beta code lookup failed", zap.Error(err))
			response.Internal(c, "failed to load beta code")
			return
		}
		response.OK(c, []models.BetaCode{*bc})
		return
	}

	list, err := h.repo.List(ctx)
	if err != nil {
		h.logger.Error("list beta codes failed", zap.Error(err))
		response.Internal(c, "failed to load beta codes")
		return
	}
	response.OK(c, list)
}
