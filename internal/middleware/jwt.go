package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/connect-hub/backend/internal/auth"
	"github.com/connect-hub/backend/internal/models"
	"github.com/connect-hub/backend/pkg/response"
)

const (
	// ContextUserID is the key for the caller's user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for the caller's models.Role in gin context.
	ContextUserRole = "user_role"
)

// JWT returns a middleware that validates the bearer token and sets the caller in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		SetCaller(c, claims.UserID, claims.Role)
		c.Next()
	}
}

// SetCaller stores the authenticated caller in c.
func SetCaller(c *gin.Context, userID uuid.UUID, role models.Role) {
	c.Set(ContextUserID, userID)
	c.Set(ContextUserRole, role)
}

// UserID returns the authenticated caller's id. It panics if JWT did not run.
func UserID(c *gin.Context) uuid.UUID {
	return c.MustGet(ContextUserID).(uuid.UUID)
}

// Role returns the authenticated caller's role, or "" when unset.
func Role(c *gin.Context) models.Role {
	role, _ := c.Get(ContextUserRole)
	r, _ := role.(models.Role)
	return r
}
