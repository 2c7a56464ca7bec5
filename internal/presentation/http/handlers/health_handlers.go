package handlers

import (
	"net/http"
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/tenant"
	"github.com/gin-gonic/gin"
)

// HealthHandlers contains the liveness endpoint
type HealthHandlers struct {
	tenantManager *tenant.Manager
	started       time.Time
}

// NewHealthHandlers creates health handlers with injected dependencies
func NewHealthHandlers(tenantManager *tenant.Manager) *HealthHandlers {
	return &HealthHandlers{
		tenantManager: tenantManager,
		started:       time.Now().UTC(),
	}
}

// GetHealth reports process liveness and tenant readiness.
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"uptime":        time.Since(h.started).String(),
		"activeTenants": h.tenantManager.GetActiveTenantCount(),
	})
}
