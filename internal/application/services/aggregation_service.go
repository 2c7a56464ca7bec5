package services

import (
	"context"
	"math"
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/interventions"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/profiles"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/telemetry"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/visitor"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/signalstack-go/pkg/config"
)

// respondsFloor is the engagement rate above which a framing counts as
// working for a visitor.
const respondsFloor = 0.3

// AggregationService is the offline job that folds archived sessions and
// reported outcomes into durable trait profiles. Processed rows are marked,
// so a crashed or repeated run never double-counts.
type AggregationService struct {
	tenantManager *tenant.Manager
	logger        *logging.ChanneledLogger
}

func NewAggregationService(tenantManager *tenant.Manager, logger *logging.ChanneledLogger) *AggregationService {
	return &AggregationService{
		tenantManager: tenantManager,
		logger:        logger,
	}
}

// Start runs the aggregator on its configured interval until ctx is
// cancelled.
func (s *AggregationService) Start(ctx context.Context) {
	ticker := time.NewTicker(config.AggregationInterval)
	defer ticker.Stop()

	s.logger.Aggregation().Info("Profile aggregator started", "interval", config.AggregationInterval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Aggregation().Info("Profile aggregator stopping")
			return
		case <-ticker.C:
			for _, tenantID := range s.tenantManager.GetActiveTenantIDs() {
				if err := s.RunOnce(tenantID); err != nil {
					s.logger.Aggregation().Error("Aggregation run failed", "tenantId", tenantID, "error", err.Error())
				}
			}
		}
	}
}

// RunOnce folds one batch of unaggregated rows for a tenant. Returns nil when
// there was nothing to do.
func (s *AggregationService) RunOnce(tenantID string) error {
	tenantCtx, err := s.tenantManager.NewContextFromID(tenantID)
	if err != nil {
		return err
	}

	marker := tenantCtx.PerfTracker.StartOperation("profile_aggregation", tenantID)
	defer marker.Complete()

	db := database.NewFromConn(tenantCtx.Database.Conn)
	archiveRepo := telemetry.NewSQLArchiveRepository(db, tenantCtx.Logger)
	outcomeRepo := telemetry.NewSQLOutcomeRepository(db, tenantCtx.Logger)
	profileRepo := visitor.NewSQLProfileRepository(db, tenantCtx.Logger)

	sessionsFolded, err := s.foldSessions(archiveRepo, profileRepo)
	if err != nil {
		marker.SetError(err)
		return err
	}

	outcomesFolded, err := s.foldOutcomes(outcomeRepo, profileRepo)
	if err != nil {
		marker.SetError(err)
		return err
	}

	if sessionsFolded > 0 || outcomesFolded > 0 {
		s.logger.Aggregation().Info("Aggregation run complete",
			"tenantId", tenantID, "sessions", sessionsFolded, "outcomes", outcomesFolded)
	}
	marker.SetSuccess(true)
	return nil
}

func (s *AggregationService) foldSessions(archiveRepo *telemetry.SQLArchiveRepository, profileRepo *visitor.SQLProfileRepository) (int, error) {
	sessions, err := archiveRepo.FindUnaggregated(config.AggregationBatch)
	if err != nil {
		return 0, err
	}
	if len(sessions) == 0 {
		return 0, nil
	}

	byVisitor := make(map[string][]*telemetry.ArchivedSession)
	processed := make([]string, 0, len(sessions))
	for _, session := range sessions {
		processed = append(processed, session.ID)
		if session.VisitorID == "" {
			// Anonymous sessions carry no durable identity; nothing to fold.
			continue
		}
		byVisitor[session.VisitorID] = append(byVisitor[session.VisitorID], session)
	}

	now := time.Now().UTC()
	for visitorID, visitorSessions := range byVisitor {
		profile, err := profileRepo.FindByVisitorID(visitorID)
		if err != nil {
			return 0, err
		}
		if profile == nil {
			profile = &profiles.TraitProfile{
				VisitorID: visitorID,
				Source:    profiles.IdentitySource(visitorSessions[0].IdentitySource),
				FirstSeen: visitorSessions[0].SessionStart,
			}
		}

		foldVisitorSessions(profile, visitorSessions)
		profile.LastAggregated = now

		if err := profileRepo.Upsert(profile); err != nil {
			return 0, err
		}
	}

	if err := archiveRepo.MarkAggregated(processed); err != nil {
		return 0, err
	}
	return len(processed), nil
}

// foldVisitorSessions merges a visitor's newly archived sessions into their
// running trait summary.
func foldVisitorSessions(profile *profiles.TraitProfile, sessions []*telemetry.ArchivedSession) {
	abandonStageSum := profile.TypicalAbandonStage * profile.AbandonCount

	for _, session := range sessions {
		profile.SessionCount++
		if session.Completed {
			profile.PurchaseCount++
		} else {
			profile.AbandonCount++
			abandonStageSum += session.MaxStepIndex
		}

		if session.Device != "" {
			profile.PreferredDevice = session.Device
		}
		profile.PreferredHour = session.SessionStart.UTC().Hour()
		profile.PreferredDay = session.SessionStart.UTC().Weekday()

		if session.SessionStart.Before(profile.FirstSeen) || profile.FirstSeen.IsZero() {
			profile.FirstSeen = session.SessionStart
		}
	}

	if profile.SessionCount > 0 {
		profile.AbandonmentRate = float64(profile.AbandonCount) / float64(profile.SessionCount)
	}
	if profile.AbandonCount > 0 {
		profile.TypicalAbandonStage = int(math.Round(float64(abandonStageSum) / float64(profile.AbandonCount)))
	}
}

func (s *AggregationService) foldOutcomes(outcomeRepo *telemetry.SQLOutcomeRepository, profileRepo *visitor.SQLProfileRepository) (int, error) {
	outcomes, err := outcomeRepo.FindUnaggregated(config.AggregationBatch)
	if err != nil {
		return 0, err
	}
	if len(outcomes) == 0 {
		return 0, nil
	}

	byVisitor := make(map[string][]*telemetry.OutcomeRow)
	processed := make([]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		processed = append(processed, outcome.ID)
		if outcome.VisitorID == "" {
			continue
		}
		byVisitor[outcome.VisitorID] = append(byVisitor[outcome.VisitorID], outcome)
	}

	now := time.Now().UTC()
	for visitorID, visitorOutcomes := range byVisitor {
		profile, err := profileRepo.FindByVisitorID(visitorID)
		if err != nil {
			return 0, err
		}
		if profile == nil {
			// Outcomes can land before the session archives; seed a minimal
			// profile so the responsiveness history is not lost.
			profile = &profiles.TraitProfile{
				VisitorID: visitorID,
				Source:    profiles.SourceFingerprint,
				FirstSeen: visitorOutcomes[0].OccurredAt,
			}
		}

		foldVisitorOutcomes(profile, visitorOutcomes)
		profile.LastAggregated = now

		if err := profileRepo.Upsert(profile); err != nil {
			return 0, err
		}
	}

	if err := outcomeRepo.MarkAggregated(processed); err != nil {
		return 0, err
	}
	return len(processed), nil
}

// foldVisitorOutcomes updates per-framing shown/engaged counters and
// recomputes the responsiveness flags.
func foldVisitorOutcomes(profile *profiles.TraitProfile, outcomes []*telemetry.OutcomeRow) {
	for _, outcome := range outcomes {
		switch outcome.Framing {
		case interventions.FramingDiscount:
			switch outcome.Outcome {
			case interventions.OutcomeShown:
				profile.DiscountShown++
			case interventions.OutcomeEngaged:
				profile.DiscountEngaged++
			}
		case interventions.FramingUrgency:
			switch outcome.Outcome {
			case interventions.OutcomeShown:
				profile.UrgencyShown++
			case interventions.OutcomeEngaged:
				profile.UrgencyEngaged++
			}
		case interventions.FramingSocialProof:
			switch outcome.Outcome {
			case interventions.OutcomeShown:
				profile.SocialProofShown++
			case interventions.OutcomeEngaged:
				profile.SocialProofEngaged++
			}
		}
	}

	profile.RespondsToDiscount = respondsTo(profile.DiscountEngaged, profile.DiscountShown)
	profile.RespondsToUrgency = respondsTo(profile.UrgencyEngaged, profile.UrgencyShown)
	profile.RespondsToSocialProof = respondsTo(profile.SocialProofEngaged, profile.SocialProofShown)
}

func respondsTo(engaged, shown int) bool {
	if shown == 0 {
		return false
	}
	return float64(engaged)/float64(shown) >= respondsFloor
}
