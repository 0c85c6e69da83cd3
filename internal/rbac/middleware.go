package rbac

import (
	"net/http"

	"call-analytics/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireTenant rejects client-role callers that carry no client binding.
// Scope checks against request parameters happen later in tenancy.Resolver.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.PrincipalFrom(c.Request.Context())
		if p == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "principal required"})
			return
		}
		if IsClientRole(p.Role) && p.ClientID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "client binding required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// super_admin bypasses all checks.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}

		if IsSuperAdmin(role) {
			c.Next()
			return
		}

		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
