package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dance-studio-api/internal/models"
	appErrors "github.com/noah-isme/dance-studio-api/pkg/errors"
	"github.com/noah-isme/dance-studio-api/pkg/response"
)

// Self admits the caller when the route's :id is their own user id.
const Self = "SELF"

// RBAC enforces role-based access control for routes. Entries are role
// names or Self.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	allowedRoles := make(map[models.UserRole]struct{}, len(allowed))
	for _, a := range allowed {
		if a == Self {
			allowSelf = true
			continue
		}
		allowedRoles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		if allowSelf {
			if targetID := c.Param("id"); targetID != "" && targetID == claims.UserID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions"))
	}
}

// RequireRoles allow-lists roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return RBAC(roleNames(roles)...)
}

// RequireRolesOrSelf allow-lists roles and the owner of the :id parameter.
func RequireRolesOrSelf(roles ...models.UserRole) gin.HandlerFunc {
	return RBAC(append(roleNames(roles), Self)...)
}

func roleNames(roles []models.UserRole) []string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return names
}
