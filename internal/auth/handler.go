package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/teenagetech/beta/internal/session"
	"github.com/teenagetech/beta/pkg/response"
	"github.com/teenagetech/beta/pkg/utils"
)

// LoginRequest is the body for POST /auth/login. Admin selects the
// admin-credential path; the default is the beta-code path.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	BetaCode string `json:"beta_code"`
	Password string `json:"password"`
	Admin    bool   `json:"admin"`
}

// LoginResponse carries the session token and the derived user.
type LoginResponse struct {
	Token string               `json:"token"`
	User  *session.CurrentUser `json:"user"`
}

// LogoutResponse reports sign-out, with a transient notice when the
// remote purge did not go through.
type LogoutResponse struct {
	SignedOut bool   `json:"signed_out"`
	Notice    string `json:"notice,omitempty"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	gate   *session.Gate
	repo   *Repository
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(gate *session.Gate, repo *Repository, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{gate: gate, repo: repo, jwt: jwt, logger: logger}
}

// Login handles POST /auth/login for both authentication paths.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	var mode session.LoginMode
	if req.Admin {
		mode.Toggle()
	}
	creds := session.Credentials{
		Email:    strings.TrimSpace(req.Email),
		BetaCode: strings.TrimSpace(req.BetaCode),
		Password: req.Password,
	}
	if err := mode.Check(creds); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if mode.Admin() {
		h.adminLogin(c, creds)
		return
	}

	token, user, err := h.gate.BetaLogin(c.Request.Context(), creds.Email, creds.BetaCode)
	if errors.Is(err, session.ErrInvalidCode) {
		response.Unauthorized(c, "invalid beta code or email, please try again or apply for access")
		return
	}
	if err != nil {
		h.logger.Error("beta login failed", zap.Error(err))
		response.Internal(c, "an error occurred, please try again later")
		return
	}
	response.OK(c, LoginResponse{Token: token, User: user})
}

// adminLogin delegates the credential check to the admin account store.
// Admin sessions are never persisted; the short-lived JWT forces
// re-authentication each visit.
func (h *Handler) adminLogin(c *gin.Context, creds session.Credentials) {
	admin, err := h.repo.GetAdminByEmail(c.Request.Context(), creds.Email)
	if err != nil {
		response.Unauthorized(c, "invalid admin credentials")
		return
	}
	if !utils.CheckPassword(creds.Password, admin.Password) {
		response.Unauthorized(c, "invalid admin credentials")
		return
	}

	token, err := h.jwt.Generate(admin.Email)
	if err != nil {
		h.logger.Error("admin token generation failed", zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}
	user := h.gate.SignIn(c.Request.Context(), admin.Email, nil)
	response.OK(c, LoginResponse{Token: token, User: user})
}

// Session handles GET /auth/session: restore a persisted tester session.
func (h *Handler) Session(c *gin.Context) {
	token := bearerToken(c)
	user := h.gate.RestoreSession(c.Request.Context(), token)
	if user == nil {
		response.Unauthorized(c, "no active session")
		return
	}
	response.OK(c, LoginResponse{Token: token, User: user})
}

// Logout handles POST /auth/logout. Sign-out always succeeds for the
// caller; a failed remote purge surfaces only as a notice.
func (h *Handler) Logout(c *gin.Context) {
	res := LogoutResponse{SignedOut: true}
	if err := h.gate.SignOut(c.Request.Context(), bearerToken(c)); err != nil {
		res.Notice = "signed out locally; session cleanup is still pending"
	}
	response.OK(c, res)
}

// Verify handles GET /auth/verify/:token, confirming a tester's email.
func (h *Handler) Verify(c *gin.Context) {
	tester, err := h.repo.VerifyTester(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.BadRequest(c, "invalid or expired verification link")
		return
	}
	response.OK(c, gin.H{"email": tester.Email, "verified": tester.Verified()})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
