// Package container provides dependency injection for all singleton services
package container

import (
	"log"
	"os"

	"github.com/AtRiskMedia/signalstack-go/internal/application/services"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/interventions"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/caching/manager"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/email"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/export"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/funnel"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/signalstack-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Application services
	IngestService       *services.IngestService
	ScoreService        *services.ScoreService
	InterventionService *services.InterventionService
	ProfileService      *services.ProfileService
	AggregationService  *services.AggregationService
	ArchiveService      *services.SessionArchiveService
	OpsService          *services.OpsService

	// Infrastructure dependencies
	TenantManager *tenant.Manager
	CacheManager  *manager.Manager
	Broadcaster   *messaging.InterventionBroadcaster
	ExportSink    *export.Sink
	FunnelClient  funnel.StateClient
	EmailService  email.Service
	Selector      *interventions.Selector
	Logger        *logging.ChanneledLogger
	PerfTracker   *performance.Tracker
}

// NewContainer creates and wires all singleton services
func NewContainer(logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *Container {
	cacheManager := manager.NewManager(logger)
	tenantManager := tenant.NewManager(cacheManager, logger, perfTracker)
	broadcaster := messaging.NewInterventionBroadcaster(logger)
	sink := export.NewSink(logger)
	selector := interventions.NewSelector(interventions.DefaultRules(), config.InterventionCooldown, config.TraitHistoryMinimum)
	funnelClient := funnel.StateClient(funnel.NewHTTPStateClient(os.Getenv("FUNNEL_STATE_URL"), logger))

	var emailService email.Service
	if config.RecoveryEmailEnabled {
		svc, err := email.NewService()
		if err != nil {
			log.Printf("Recovery email disabled: %v", err)
		} else {
			emailService = svc
		}
	}

	profileService := services.NewProfileService(logger)
	aggregationService := services.NewAggregationService(tenantManager, logger)
	archiveService := services.NewSessionArchiveService(tenantManager, emailService, logger)

	return &Container{
		IngestService:       services.NewIngestService(profileService, funnelClient, selector, sink, broadcaster, logger),
		ScoreService:        services.NewScoreService(logger),
		InterventionService: services.NewInterventionService(selector, sink, logger),
		ProfileService:      profileService,
		AggregationService:  aggregationService,
		ArchiveService:      archiveService,
		OpsService:          services.NewOpsService(aggregationService, sink, logger),

		TenantManager: tenantManager,
		CacheManager:  cacheManager,
		Broadcaster:   broadcaster,
		ExportSink:    sink,
		FunnelClient:  funnelClient,
		EmailService:  emailService,
		Selector:      selector,
		Logger:        logger,
		PerfTracker:   perfTracker,
	}
}
