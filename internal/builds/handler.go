package builds

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teenagetech/beta/internal/models"
	"github.com/teenagetech/beta/pkg/response"
	"github.com/teenagetech/beta/pkg/storage"
)

// Store is the build metadata contract the handler depends on.
type Store interface {
	Create(ctx context.Context, b *models.Build) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Build, error)
	ListByProject(ctx context.Context, project string) ([]models.Build, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ObjectStore moves build artifacts in and out of S3.
type ObjectStore interface {
	GeneratePresignedUploadURL(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
	GeneratePresignedDownloadURL(ctx context.Context, key string, expires time.Duration) (string, error)
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
	DeleteObject(ctx context.Context, key string) error
	PresignExpire() time.Duration
}

// UploadURLRequest is the body for POST /builds/upload-url (admin only).
type UploadURLRequest struct {
	Project     string `json:"project" binding:"required"`
	Version     string `json:"version" binding:"required"`
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type"`
}

// RegisterRequest is the body for POST /builds (admin only), called after
// the artifact has been uploaded with the presigned URL.
type RegisterRequest struct {
	Project   string `json:"project" binding:"required"`
	Version   string `json:"version" binding:"required"`
	Filename  string `json:"filename" binding:"required"`
	SizeBytes int64  `json:"size_bytes"`
}

// Handler handles build distribution HTTP endpoints.
type Handler struct {
	repo   Store
	s3     ObjectStore
	logger *zap.Logger
}

// NewHandler creates a builds handler. The S3 store may be nil when AWS
// is not configured; build endpoints then report service unavailable.
func NewHandler(repo Store, s3 ObjectStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, s3: s3, logger: logger}
}

// UploadURL handles POST /builds/upload-url (admin only).
func (h *Handler) UploadURL(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "build storage not configured")
		return
	}
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := storage.BuildKey(req.Project, req.Version, req.Filename)
	url, err := h.s3.GeneratePresignedUploadURL(c.Request.Context(), key, contentType, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign upload failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to generate upload URL")
		return
	}
	response.OK(c, gin.H{"upload_url": url, "s3_key": key})
}

// Register handles POST /builds (admin only).
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	build := &models.Build{
		Project:   req.Project,
		Version:   req.Version,
		Filename:  req.Filename,
		S3Key:     storage.BuildKey(req.Project, req.Version, req.Filename),
		SizeBytes: req.SizeBytes,
	}
	if err := h.repo.Create(c.Request.Context(), build); err != nil {
		if errors.Is(err, ErrDuplicateVersion) {
			response.Conflict(c, "this version is already registered")
			return
		}
		h.logger.Error("register build failed", zap.Error(err))
		response.Internal(c, "failed to register build")
		return
	}
	response.Created(c, build)
}

// Upload handles POST /builds/upload (admin only): a server-side multipart
// upload for small artifacts where the presigned flow is overkill.
func (h *Handler) Upload(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "build storage not configured")
		return
	}
	project := c.PostForm("project")
	version := c.PostForm("version")
	if project == "" || version == "" {
		response.BadRequest(c, "project and version are required")
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, "could not read file")
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := storage.BuildKey(project, version, fileHeader.Filename)
	if _, err := h.s3.Upload(c.Request.Context(), key, contentType, file, fileHeader.Size); err != nil {
		h.logger.Error("build upload failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to upload build")
		return
	}

	build := &models.Build{
		Project:   project,
		Version:   version,
		Filename:  fileHeader.Filename,
		S3Key:     key,
		SizeBytes: fileHeader.Size,
	}
	if err := h.repo.Create(c.Request.Context(), build); err != nil {
		if errors.Is(err, ErrDuplicateVersion) {
			response.Conflict(c, "this version is already registered")
			return
		}
		h.logger.Error("register build failed", zap.Error(err))
		response.Internal(c, "failed to register build")
		return
	}
	response.Created(c, build)
}

// List handles GET /builds?project= (logged-in testers).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.ListByProject(c.Request.Context(), c.Query("project"))
	if err != nil {
		response.Internal(c, "failed to load builds")
		return
	}
	response.OK(c, list)
}

// DownloadURL handles GET /builds/:id/download-url (logged-in testers).
func (h *Handler) DownloadURL(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "build storage not configured")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid build id")
		return
	}

	build, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "build not found")
		return
	}
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), build.S3Key, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign download failed", zap.Error(err), zap.String("key", build.S3Key))
		response.Internal(c, "failed to generate download URL")
		return
	}
	response.OK(c, gin.H{"download_url": url, "filename": build.Filename, "size_bytes": build.SizeBytes})
}

// Delete handles DELETE /builds/:id (admin only). The S3 object goes
// first; the row survives an object-store failure so the build stays
// discoverable for a retry.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid build id")
		return
	}
	ctx := c.Request.Context()

	build, err := h.repo.GetByID(ctx, id)
	if err != nil {
		response.NotFound(c, "build not found")
		return
	}
	if h.s3 != nil {
		if err := h.s3.DeleteObject(ctx, build.S3Key); err != nil {
			h.logger.Error("delete build object failed", zap.Error(err), zap.String("key", build.S3Key))
			response.Internal(c, "failed to delete build artifact")
			return
		}
	}
	if err := h.repo.Delete(ctx, id); err != nil {
		h.logger.Error("delete build row failed", zap.Error(err))
		response.Internal(c, "failed to delete build")
		return
	}
	response.NoContent(c)
}
