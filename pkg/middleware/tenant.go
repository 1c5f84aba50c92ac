package middleware

import (
	"net/http"

	"github.com/deskhub/deskhub/internal/models"
	"github.com/gin-gonic/gin"
)

const (
	tenantKey = "tenant"
	userKey   = "userId"
)

// TenantMiddleware derives the caller's workspace from the verified claims.
// It must run after AuthMiddleware.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		sub, _ := claims["sub"].(string)
		if sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token has no subject"})
			return
		}
		c.Set(userKey, sub)
		c.Set(tenantKey, models.TenantFromClaims(claims))
		c.Next()
	}
}

// Claims returns the verified token claims, or nil when the request is anonymous.
func Claims(c *gin.Context) map[string]interface{} {
	v, ok := c.Get("claims")
	if !ok {
		return nil
	}
	cm, _ := v.(map[string]interface{})
	return cm
}

// Identity returns the tenant and user set by TenantMiddleware.
func Identity(c *gin.Context) (tenant, user string) {
	return c.GetString(tenantKey), c.GetString(userKey)
}

// SetIdentity places an identity on the context. Used by tests and internal callers.
func SetIdentity(c *gin.Context, tenant, user string) {
	c.Set(tenantKey, tenant)
	c.Set(userKey, user)
}
