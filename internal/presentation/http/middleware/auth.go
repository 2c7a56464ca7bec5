package middleware

import (
	"net/http"
	"strings"

	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/security"
	"github.com/gin-gonic/gin"
)

// OpsAuthMiddleware guards the ops surface with the tenant's JWT secret.
func OpsAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantCtx, ok := GetTenantContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context required"})
			c.Abort()
			return
		}

		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "bearer token required"})
			c.Abort()
			return
		}

		claims, err := security.ValidateJWT(token, tenantCtx.Config.JWTSecret)
		if err != nil {
			tenantCtx.Logger.Auth().Warn("Ops token rejected", "tenantId", tenantCtx.TenantID, "error", err.Error())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		// Tokens are tenant-bound; a token minted for one tenant never opens
		// another.
		if claims["tenantId"] != tenantCtx.TenantID {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token tenant mismatch"})
			c.Abort()
			return
		}

		c.Next()
	}
}
