package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/teenagetech/beta/internal/auth"
	"github.com/teenagetech/beta/internal/session"
	"github.com/teenagetech/beta/pkg/response"
)

const (
	// ContextUser is the key for the derived CurrentUser in gin context.
	ContextUser = "current_user"
	// ContextSessionToken is the key for the raw bearer token.
	ContextSessionToken = "session_token"
)

// CurrentUser resolves the bearer token into a CurrentUser, trying the
// persisted tester session first and falling back to an admin JWT. It
// never aborts; routes that need a user pair it with RequireTester or
// RequireAdmin.
func CurrentUser(gate *session.Gate, jwtService *auth.JWTService, policy session.AdminPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}
		c.Set(ContextSessionToken, token)

		if user := gate.RestoreSession(c.Request.Context(), token); user != nil {
			c.Set(ContextUser, user)
			c.Next()
			return
		}

		// Admin tokens carry no server-side session; authority is
		// re-checked against the admin store on every request.
		if claims, err := jwtService.Validate(token); err == nil {
			if policy.IsAdmin(c.Request.Context(), claims.Email) {
				c.Set(ContextUser, &session.CurrentUser{
					Email:   claims.Email,
					Project: "unknown",
					IsAdmin: true,
				})
			}
		}
		c.Next()
	}
}

// User returns the CurrentUser set by the CurrentUser middleware, or nil.
func User(c *gin.Context) *session.CurrentUser {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	user, _ := v.(*session.CurrentUser)
	return user
}

// Token returns the raw bearer token, or "".
func Token(c *gin.Context) string {
	v, ok := c.Get(ContextSessionToken)
	if !ok {
		return ""
	}
	token, _ := v.(string)
	return token
}

// RequireTester aborts with 401 unless a user is logged in.
func RequireTester() gin.HandlerFunc {
	return func(c *gin.Context) {
		if User(c) == nil {
			response.Unauthorized(c, "login required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin aborts unless the logged-in user is the administrator.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := User(c)
		if user == nil {
			response.Unauthorized(c, "login required")
			c.Abort()
			return
		}
		if !user.IsAdmin {
			response.Forbidden(c, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
