package services

import (
	"github.com/AtRiskMedia/signalstack-go/internal/domain/scoring"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/tenant"
)

// ScoreService is the read side of the score store.
type ScoreService struct {
	logger *logging.ChanneledLogger
}

func NewScoreService(logger *logging.ChanneledLogger) *ScoreService {
	return &ScoreService{logger: logger}
}

// Get returns the live score record for a session.
func (s *ScoreService) Get(tenantCtx *tenant.Context, sessionToken string) (*scoring.Record, error) {
	record, found := tenantCtx.CacheManager.Scores().Get(tenantCtx.TenantID, sessionToken)
	if !found {
		return nil, ErrUnknownSession
	}
	return record, nil
}

// Count returns the live record count for a tenant.
func (s *ScoreService) Count(tenantCtx *tenant.Context) int {
	return tenantCtx.CacheManager.Scores().Count(tenantCtx.TenantID)
}
