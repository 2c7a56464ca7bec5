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

// ScoreHandlers contains the score read HTTP handlers
type ScoreHandlers struct {
	scoreService *services.ScoreService
	logger       *logging.ChanneledLogger
	perfTracker  *performance.Tracker
}

// NewScoreHandlers creates score handlers with injected dependencies
func NewScoreHandlers(scoreService *services.ScoreService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *ScoreHandlers {
	return &ScoreHandlers{
		scoreService: scoreService,
		logger:       logger,
		perfTracker:  perfTracker,
	}
}

// GetScore returns the live score record for a session.
func (h *ScoreHandlers) GetScore(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	marker := h.perfTracker.StartOperation("get_score_request", tenantCtx.TenantID)
	defer marker.Complete()

	sessionToken := c.Param("sessionToken")
	record, err := h.scoreService.Get(tenantCtx, sessionToken)
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
	c.JSON(http.StatusOK, record)
}
