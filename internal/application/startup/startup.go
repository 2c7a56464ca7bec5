// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/application/container"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/caching/cleanup"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/signalstack-go/internal/presentation/http/server"
	"github.com/AtRiskMedia/signalstack-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// Initialize performs the complete multi-tenant startup sequence
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("\033[32m" + `

  ▄▄▄ ▄▄ ▄▄▄▄ ▄▄ ▄▄▄  ▄▄▄  ▄▄  ▄▄▄ ▄▄▄▄ ▄▄▄  ▄▄▄ ▄▄ ▄▄
  ▀▄▄ ██ ██ █ ██ ██ █ ██ █ ██  ▀▄▄  ██  ██ █ ██   ██▄▀
  ▄▄▀ ██ ▀▀▀█ ██ ██ █ ██▀█ ██▄ ▄▄▀  ██  ██▀█ ▀▀▄▄ ██ █
` + "\033[97m" + `
  made by At Risk Media
` + "\033[0m")

	// Step 1: Create observability singletons
	log.Println("Initializing...")
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	perfTracker := performance.NewTracker(performance.DefaultTrackerConfig())

	// Step 2: Load tenant registry to discover all tenants
	log.Println("Loading tenant registry...")
	registry, err := tenant.LoadTenantRegistry()
	if err != nil {
		return fmt.Errorf("failed to load tenant registry: %w", err)
	}

	if len(registry.Tenants) == 0 {
		log.Println("No tenants found in registry - creating default tenant")
		if err := tenant.RegisterTenant("default"); err != nil {
			return fmt.Errorf("failed to register default tenant: %w", err)
		}
	}

	// Step 3: Create dependency injection container
	log.Println("Initializing dependency injection container...")
	appContainer := container.NewContainer(logger, perfTracker)
	logger.Startup().Info("Container initialization complete - switching to channeled logging")

	// Step 4: Pre-activate registered tenants
	logger.Startup().Info("Starting tenant pre-activation...")
	if err := appContainer.TenantManager.PreActivateAllTenants(); err != nil {
		return fmt.Errorf("tenant pre-activation failed: %w", err)
	}
	activeCount := appContainer.TenantManager.GetActiveTenantCount()
	logger.Startup().Info("Tenant connections verified", "activeTenants", activeCount)

	// Step 5: Start background workers
	logger.Startup().Info("Starting background workers...")

	appContainer.ExportSink.Start(ctx)

	cleanupConfig := cleanup.NewConfig()
	cleanupWorker := cleanup.NewWorker(appContainer.CacheManager, cleanupConfig, logger, appContainer.ArchiveService)
	go cleanupWorker.Start(ctx)

	go appContainer.AggregationService.Start(ctx)

	logger.Startup().Info("Background workers started",
		"cleanupInterval", cleanupConfig.CleanupInterval,
		"aggregationInterval", config.AggregationInterval)

	// Step 6: Start HTTP server
	port := config.Port
	httpServer := server.New(port, appContainer)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"activeTenants", activeCount,
		"port", port)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	// Cancel background tasks and let the export sink drain
	cancelBackgroundTasks()
	appContainer.ExportSink.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Closing tenant manager...")
	if err := appContainer.TenantManager.Close(); err != nil {
		logger.Shutdown().Error("Error closing tenant manager", "error", err.Error())
	} else {
		logger.Shutdown().Info("Tenant manager closed successfully")
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
