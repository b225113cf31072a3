package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-interview/backend/pkg/response"
)

// RequireRole allows only tokens carrying one of roles. It must run after InterviewToken;
// when token checks are disabled every request passes.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		if c.GetBool(ContextAuthDisabled) {
			c.Next()
			return
		}
		role := c.GetString(ContextUserRole)
		if role == "" {
			response.Unauthorized(c, "missing token role")
			c.Abort()
			return
		}
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
