package handlers

import (
	"errors"
	"net/http"

	"github.com/AtRiskMedia/signalstack-go/internal/application/services"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/signalstack-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// OpsLoginRequest is the ops login body.
type OpsLoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// OpsHandlers contains the authenticated operations handlers
type OpsHandlers struct {
	opsService  *services.OpsService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewOpsHandlers creates ops handlers with injected dependencies
func NewOpsHandlers(opsService *services.OpsService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *OpsHandlers {
	return &OpsHandlers{
		opsService:  opsService,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// PostLogin verifies the tenant's ops password and issues a JWT.
func (h *OpsHandlers) PostLogin(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	var req OpsLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	token, err := h.opsService.Login(tenantCtx, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// GetStats returns the tenant's runtime counters.
func (h *OpsHandlers) GetStats(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	c.JSON(http.StatusOK, h.opsService.Stats(tenantCtx))
}

// PostAggregate triggers one aggregation batch immediately.
func (h *OpsHandlers) PostAggregate(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	marker := h.perfTracker.StartOperation("ops_aggregate_request", tenantCtx.TenantID)
	defer marker.Complete()

	if err := h.opsService.TriggerAggregation(tenantCtx); err != nil {
		marker.SetError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

// GetWeights reports the weighting configuration new sessions will pin.
func (h *OpsHandlers) GetWeights(c *gin.Context) {
	c.JSON(http.StatusOK, h.opsService.Weights())
}
