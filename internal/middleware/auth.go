package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"quickcart/internal/service/auth"
	"quickcart/pkg/utils"
)

// Context keys set by Auth.
const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
	CtxRole   = "role"
)

// Auth validates the bearer access token and stashes the identity on
// the request context.
func Auth(authService auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			utils.AppErrorResponse(c, utils.ErrUnauthorized)
			c.Abort()
			return
		}
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			utils.AppErrorResponse(c, utils.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := authService.ValidateAccess(c.Request.Context(), token)
		if err != nil {
			utils.AppErrorResponse(c, err)
			c.Abort()
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxEmail, claims.Email)
		c.Set(CtxRole, claims.Role)
		c.Next()
	}
}

// RequireRole gates a route group on the caller's role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxRole) != role {
			utils.AppErrorResponse(c, utils.NewError(utils.CodeForbidden, "insufficient permissions"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID pulls the authenticated user's ID off the context.
func UserID(c *gin.Context) uint64 {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return 0
	}
	id, _ := v.(uint64)
	return id
}
