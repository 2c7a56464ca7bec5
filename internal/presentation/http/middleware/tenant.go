package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/tenant"
	"github.com/gin-gonic/gin"
)

// TenantMiddleware creates middleware that extracts tenant information and
// resolves a full tenant context for the request.
func TenantMiddleware(tenantManager *tenant.Manager, perfTracker *performance.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		marker := perfTracker.StartOperation("middleware_tenant_resolution", "unknown")
		defer marker.Complete()

		tenantID := c.GetHeader("X-Tenant-ID")
		if tenantID == "" {
			tenantID = c.Query("tenantId") // Fallback for websocket clients
		}

		marker.AddMetadata("path", c.Request.URL.Path)
		marker.AddMetadata("method", c.Request.Method)
		if tenantID != "" {
			marker.TenantID = tenantID
		}

		if tenantID == "" {
			marker.SetError(errors.New("missing tenant identifier"))
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Tenant-ID header or tenantId query param is required"})
			c.Abort()
			return
		}

		tenantCtx, err := tenantManager.NewContextFromID(tenantID)
		if err != nil {
			marker.SetError(err)
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			c.Abort()
			return
		}

		tenantCtx.Logger.Tenant().Debug("Tenant context resolved",
			"tenantId", tenantCtx.TenantID,
			"duration", time.Since(start),
		)
		marker.SetSuccess(true)

		c.Set("tenant", tenantCtx)
		c.Next()
	}
}

// GetTenantContext retrieves the tenant context from gin context.
func GetTenantContext(c *gin.Context) (*tenant.Context, bool) {
	value, exists := c.Get("tenant")
	if !exists {
		return nil, false
	}
	ctx, ok := value.(*tenant.Context)
	return ctx, ok
}
