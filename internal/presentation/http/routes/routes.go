// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/AtRiskMedia/signalstack-go/internal/application/container"
	"github.com/AtRiskMedia/signalstack-go/internal/presentation/http/handlers"
	"github.com/AtRiskMedia/signalstack-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	// Initialize handlers
	eventHandlers := handlers.NewEventHandlers(container.IngestService, container.Logger, container.PerfTracker)
	scoreHandlers := handlers.NewScoreHandlers(container.ScoreService, container.Logger, container.PerfTracker)
	interventionHandlers := handlers.NewInterventionHandlers(container.InterventionService, container.Logger, container.PerfTracker)
	streamHandlers := handlers.NewStreamHandlers(container.Broadcaster, container.Logger)
	opsHandlers := handlers.NewOpsHandlers(container.OpsService, container.Logger, container.PerfTracker)
	healthHandlers := handlers.NewHealthHandlers(container.TenantManager)

	r.GET("/api/v1/health", healthHandlers.GetHealth)

	// API routes with tenant middleware
	api := r.Group("/api/v1")
	api.Use(middleware.TenantMiddleware(container.TenantManager, container.PerfTracker))
	{
		api.POST("/events", eventHandlers.PostEvents)
		api.GET("/scores/:sessionToken", scoreHandlers.GetScore)

		api.GET("/interventions/:sessionToken", interventionHandlers.GetIntervention)
		api.POST("/interventions/outcome", interventionHandlers.PostOutcome)

		api.GET("/stream/:sessionToken", streamHandlers.GetStream)

		// Authenticated operations surface
		ops := api.Group("/ops")
		{
			ops.POST("/login", opsHandlers.PostLogin)

			authed := ops.Group("")
			authed.Use(middleware.OpsAuthMiddleware())
			{
				authed.GET("/stats", opsHandlers.GetStats)
				authed.POST("/aggregate", opsHandlers.PostAggregate)
				authed.GET("/weights", opsHandlers.GetWeights)
			}
		}
	}

	return r
}
