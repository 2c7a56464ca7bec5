// Package services provides the scoring, intervention, and aggregation
// orchestration on top of the domain layer.
package services

import (
	"context"
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/profiles"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/visitor"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/signalstack-go/pkg/config"
)

// ProfileService resolves trait profiles for live sessions. Lookups are
// time-bounded and fail open: a slow or missing profile degrades to nil and
// scoring proceeds trait-free.
type ProfileService struct {
	logger *logging.ChanneledLogger
}

func NewProfileService(logger *logging.ChanneledLogger) *ProfileService {
	return &ProfileService{logger: logger}
}

// ResolveForSession returns the session's trait profile, consulting the
// session-scoped cache first. Both hits and misses are cached so the durable
// lookup runs at most once per session.
func (s *ProfileService) ResolveForSession(ctx context.Context, tenantCtx *tenant.Context, sessionToken, fingerprint, customerID, email string) *profiles.TraitProfile {
	cache := tenantCtx.CacheManager.Profiles()
	if profile, cached := cache.Get(tenantCtx.TenantID, sessionToken); cached {
		return profile
	}

	identity, recognized := profiles.ResolveIdentity(fingerprint, customerID, email)
	if !recognized {
		cache.Set(tenantCtx.TenantID, sessionToken, nil)
		return nil
	}

	profile := s.lookup(ctx, tenantCtx, identity.VisitorID)
	cache.Set(tenantCtx.TenantID, sessionToken, profile)
	return profile
}

// lookup performs the durable read under the configured deadline. A timeout
// is logged and treated as anonymous rather than failing the batch.
func (s *ProfileService) lookup(ctx context.Context, tenantCtx *tenant.Context, visitorID string) *profiles.TraitProfile {
	ctx, cancel := context.WithTimeout(ctx, config.ProfileLookupTimeout)
	defer cancel()

	type result struct {
		profile *profiles.TraitProfile
		err     error
	}
	done := make(chan result, 1)

	go func() {
		repo := visitor.NewSQLProfileRepository(database.NewFromConn(tenantCtx.Database.Conn), tenantCtx.Logger)
		profile, err := repo.FindByVisitorID(visitorID)
		done <- result{profile, err}
	}()

	start := time.Now()
	select {
	case <-ctx.Done():
		s.logger.Scoring().Warn("Trait profile lookup timed out, proceeding anonymous",
			"tenantId", tenantCtx.TenantID, "visitorId", visitorID, "duration", time.Since(start))
		return nil
	case res := <-done:
		if res.err != nil {
			s.logger.Scoring().Warn("Trait profile lookup failed, proceeding anonymous",
				"tenantId", tenantCtx.TenantID, "visitorId", visitorID, "error", res.err.Error())
			return nil
		}
		return res.profile
	}
}
