package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/opsboard/uatreview/internal/services"
	"github.com/opsboard/uatreview/pkg/response"
)

const principalKey = "principal"

// PortalAccess resolves the capability token from the route path into a
// principal and stores it on the context. Every failure maps to the same
// generic access-denied response regardless of cause.
func PortalAccess(access *services.AccessService, tokenParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := access.Resolve(c.Param(tokenParam))
		if err != nil {
			response.Error(c, services.ErrAccessDenied)
			c.Abort()
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequirePM rejects guests: the PM portal accepts invite and collaborator
// tokens only. Viewer-role collaborators pass through and are limited to
// reads by the individual handlers.
func RequirePM() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := GetPrincipal(c)
		if principal == nil || principal.Role == services.RoleGuest {
			response.Error(c, services.ErrAccessDenied)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireGuest rejects non-guest tokens on the reviewer portal.
func RequireGuest() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := GetPrincipal(c)
		if principal == nil || principal.Role != services.RoleGuest {
			response.Error(c, services.ErrAccessDenied)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetPrincipal returns the resolved principal for the request, or nil when
// resolution has not run.
func GetPrincipal(c *gin.Context) *services.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	principal, ok := v.(*services.Principal)
	if !ok {
		return nil
	}
	return principal
}
