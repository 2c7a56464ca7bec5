package services

import (
	"errors"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/scoring"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/export"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/visitor"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/security"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/tenant"
)

// ErrInvalidCredentials is returned on a failed ops login.
var ErrInvalidCredentials = errors.New("invalid credentials")

// OpsService backs the authenticated operations surface: login, runtime
// stats, and manual aggregation runs.
type OpsService struct {
	aggregation *AggregationService
	sink        *export.Sink
	logger      *logging.ChanneledLogger
}

func NewOpsService(aggregation *AggregationService, sink *export.Sink, logger *logging.ChanneledLogger) *OpsService {
	return &OpsService{
		aggregation: aggregation,
		sink:        sink,
		logger:      logger,
	}
}

// Login verifies the tenant's ops password and issues a JWT.
func (s *OpsService) Login(tenantCtx *tenant.Context, password string) (string, error) {
	cfg := tenantCtx.Config
	if cfg.OpsPasswordHash == "" || cfg.JWTSecret == "" {
		s.logger.Auth().Warn("Ops login rejected, tenant has no ops credentials", "tenantId", tenantCtx.TenantID)
		return "", ErrInvalidCredentials
	}
	if !security.VerifyPassword(password, cfg.OpsPasswordHash) {
		s.logger.Auth().Warn("Ops login failed", "tenantId", tenantCtx.TenantID)
		return "", ErrInvalidCredentials
	}

	token, err := security.GenerateOpsToken(tenantCtx.TenantID, cfg.JWTSecret)
	if err != nil {
		return "", err
	}
	s.logger.Auth().Info("Ops login succeeded", "tenantId", tenantCtx.TenantID)
	return token, nil
}

// Stats assembles the tenant's runtime counters.
func (s *OpsService) Stats(tenantCtx *tenant.Context) map[string]any {
	profileRepo := visitor.NewSQLProfileRepository(database.NewFromConn(tenantCtx.Database.Conn), tenantCtx.Logger)
	profileCount, err := profileRepo.Count()
	if err != nil {
		profileCount = -1
	}

	return map[string]any{
		"tenantId":      tenantCtx.TenantID,
		"liveRecords":   tenantCtx.CacheManager.Scores().Count(tenantCtx.TenantID),
		"traitProfiles": profileCount,
		"export":        s.sink.Stats(),
		"dbPool":        tenant.GetPoolStats(),
		"performance":   tenantCtx.PerfTracker.GetStats(),
	}
}

// TriggerAggregation runs one aggregation batch for the tenant immediately.
func (s *OpsService) TriggerAggregation(tenantCtx *tenant.Context) error {
	return s.aggregation.RunOnce(tenantCtx.TenantID)
}

// Weights reports the weighting configuration new sessions will pin.
func (s *OpsService) Weights() scoring.Weights {
	return configuredWeights()
}
