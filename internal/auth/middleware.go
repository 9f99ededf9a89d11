package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	appErr "nanoj/pkg/errors"
	"nanoj/pkg/utils/response"
)

// Context keys set by the middleware for downstream handlers.
const (
	ContextUsername = "auth_username"
	ContextRole     = "auth_role"
)

// RequireAuth rejects requests without a valid Bearer session token and
// stores the caller identity on the gin context.
func RequireAuth(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			response.AbortWithError(c, appErr.New(appErr.Unauthorized))
			return
		}
		identity, err := svc.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		c.Set(ContextUsername, identity.Username)
		c.Set(ContextRole, string(identity.Role))
		c.Next()
	}
}

// RequireAdmin runs after RequireAuth and rejects non-admin callers.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerFrom(c).IsAdmin() {
			c.Next()
			return
		}
		response.AbortWithError(c, appErr.New(appErr.Forbidden))
	}
}

// CallerFrom reads the identity RequireAuth stored on the context. The
// zero Identity means the request was not authenticated.
func CallerFrom(c *gin.Context) Identity {
	username := c.GetString(ContextUsername)
	role := c.GetString(ContextRole)
	return Identity{Username: username, Role: Role(role)}
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
