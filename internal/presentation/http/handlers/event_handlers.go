// Package handlers provides HTTP handlers for the scoring engine endpoints
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/application/services"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/events"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/signalstack-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// EventHandlers contains the event ingestion HTTP handlers
type EventHandlers struct {
	ingestService *services.IngestService
	logger        *logging.ChanneledLogger
	perfTracker   *performance.Tracker
}

// NewEventHandlers creates event handlers with injected dependencies
func NewEventHandlers(ingestService *services.IngestService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *EventHandlers {
	return &EventHandlers{
		ingestService: ingestService,
		logger:        logger,
		perfTracker:   perfTracker,
	}
}

// PostEvents accepts one client event batch for a session.
func (h *EventHandlers) PostEvents(c *gin.Context) {
	start := time.Now()
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	marker := h.perfTracker.StartOperation("post_events_request", tenantCtx.TenantID)
	defer marker.Complete()

	var req services.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		marker.SetError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.ingestService.ProcessBatch(c.Request.Context(), tenantCtx, &req)
	if err != nil {
		marker.SetError(err)
		if errors.Is(err, events.ErrOversizedBatch) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.Ingest().Info("Event batch processed",
		"tenantId", tenantCtx.TenantID,
		"sessionToken", req.SessionToken,
		"accepted", result.Accepted,
		"dropped", result.Dropped,
		"duration", time.Since(start),
	)
	marker.SetSuccess(true)
	c.JSON(http.StatusOK, result)
}
