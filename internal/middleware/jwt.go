package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-interview/backend/internal/auth"
	"github.com/aura-interview/backend/pkg/response"
)

const (
	// ContextSessionID is the key for the token's session ID in gin context.
	ContextSessionID = "session_id"
	// ContextUserRole is the key for the token role in gin context.
	ContextUserRole = "user_role"
	// ContextAuthDisabled is set when no token secret is configured.
	ContextAuthDisabled = "auth_disabled"
)

// InterviewToken validates the bearer token (or ?token= for websocket upgrades) and checks it
// grants access to the :id session. A nil service disables the check.
func InterviewToken(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtService == nil {
			c.Set(ContextAuthDisabled, true)
			c.Next()
			return
		}
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			response.Unauthorized(c, "missing token")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		if idStr := c.Param("id"); idStr != "" {
			id, err := uuid.Parse(idStr)
			if err != nil {
				response.BadRequest(c, "invalid interview id")
				c.Abort()
				return
			}
			if !claims.Allows(id) {
				response.Forbidden(c, "token not valid for this interview")
				c.Abort()
				return
			}
		}
		c.Set(ContextSessionID, claims.SessionID)
		c.Set(ContextUserRole, claims.Role)
		c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
