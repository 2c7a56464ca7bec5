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

// InterventionHandlers contains the intervention read and outcome handlers
type InterventionHandlers struct {
	interventionService *services.InterventionService
	logger              *logging.ChanneledLogger
	perfTracker         *performance.Tracker
}

// NewInterventionHandlers creates intervention handlers with injected dependencies
func NewInterventionHandlers(interventionService *services.InterventionService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *InterventionHandlers {
	return &InterventionHandlers{
		interventionService: interventionService,
		logger:              logger,
		perfTracker:         perfTracker,
	}
}

// GetIntervention returns the session's standing recommendation.
func (h *InterventionHandlers) GetIntervention(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	marker := h.perfTracker.StartOperation("get_intervention_request", tenantCtx.TenantID)
	defer marker.Complete()

	current, err := h.interventionService.GetCurrent(tenantCtx, c.Param("sessionToken"))
	if err != nil {
		marker.SetError(err)
		if errors.Is(err, services.ErrUnknownSession) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no live score record for session"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, current)
}

// PostOutcome accepts a surface-layer delivery report.
func (h *InterventionHandlers) PostOutcome(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	marker := h.perfTracker.StartOperation("post_outcome_request", tenantCtx.TenantID)
	defer marker.Complete()

	var req services.OutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		marker.SetError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.SessionToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionToken is required"})
		return
	}

	if err := h.interventionService.ReportOutcome(tenantCtx, &req); err != nil {
		marker.SetError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}
