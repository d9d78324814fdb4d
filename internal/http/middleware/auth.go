// README: Firebase ID-token auth; stores caller uid and role on the gin context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"haulr/internal/infra"
)

const (
	RoleCustomer = "customer"
	RoleDriver   = "driver"
	RoleAdmin    = "admin"
)

const (
	uidKey  = "auth.uid"
	roleKey = "auth.role"
)

// Auth rejects requests without a valid bearer token. A token without a role
// claim is treated as a customer.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil || token == nil || token.UID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(uidKey, token.UID)
		c.Set(roleKey, roleOf(token))
		c.Next()
	}
}

func roleOf(token *infra.FirebaseToken) string {
	role, _ := token.Claims["role"].(string)
	switch role {
	case RoleDriver, RoleAdmin:
		return role
	default:
		return RoleCustomer
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(uidKey)
}

func CallerRole(c *gin.Context) string {
	return c.GetString(roleKey)
}

// RequireRole aborts with 403 unless the caller holds one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := CallerRole(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}
