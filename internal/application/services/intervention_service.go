package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/interventions"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/profiles"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/scoring"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/export"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/telemetry"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/tenant"
)

// ErrUnknownSession signals a lookup for a session with no live score record.
var ErrUnknownSession = errors.New("no live score record for session")

// OutcomeRequest is the surface layer's report on a delivered intervention.
type OutcomeRequest struct {
	SessionToken string `json:"sessionToken"`
	Class        string `json:"class"`
	Framing      string `json:"framing"`
	Outcome      string `json:"outcome"`
}

// CurrentIntervention is the read-side view of a session's standing
// recommendation.
type CurrentIntervention struct {
	SessionToken   string                  `json:"sessionToken"`
	Recommendation string                  `json:"recommendation,omitempty"`
	Priority       int                     `json:"priority"`
	Composites     scoring.CompositeScores `json:"composites"`
}

// InterventionService handles the read and outcome-report sides of the
// intervention loop; selection itself runs inline with ingestion.
type InterventionService struct {
	selector *interventions.Selector
	sink     *export.Sink
	logger   *logging.ChanneledLogger
}

func NewInterventionService(selector *interventions.Selector, sink *export.Sink, logger *logging.ChanneledLogger) *InterventionService {
	return &InterventionService{
		selector: selector,
		sink:     sink,
		logger:   logger,
	}
}

// GetCurrent returns the session's standing recommendation, if any.
func (s *InterventionService) GetCurrent(tenantCtx *tenant.Context, sessionToken string) (*CurrentIntervention, error) {
	record, found := tenantCtx.CacheManager.Scores().Get(tenantCtx.TenantID, sessionToken)
	if !found {
		return nil, ErrUnknownSession
	}
	return &CurrentIntervention{
		SessionToken:   sessionToken,
		Recommendation: record.CurrentRecommendation,
		Priority:       record.RecommendationPriority,
		Composites:     record.Composites,
	}, nil
}

// ReportOutcome folds a delivery report into the live record's bookkeeping
// and persists the outcome for offline responsiveness aggregation. An expired
// session still records the durable outcome; only the live bookkeeping is
// skipped.
func (s *InterventionService) ReportOutcome(tenantCtx *tenant.Context, req *OutcomeRequest) error {
	class := interventions.Class(req.Class)
	outcome := interventions.Outcome(req.Outcome)
	switch outcome {
	case interventions.OutcomeShown, interventions.OutcomeEngaged, interventions.OutcomeDismissed:
	default:
		return fmt.Errorf("unknown outcome %q", req.Outcome)
	}

	now := time.Now().UTC()
	store := tenantCtx.CacheManager.Scores()

	var visitorID string
	commitRecord(store, tenantCtx.TenantID, func() *scoring.Record {
		record, found := store.Get(tenantCtx.TenantID, req.SessionToken)
		if !found {
			return nil
		}
		if identity, ok := profiles.ResolveIdentity(record.Fingerprint, record.CustomerID, record.Email); ok {
			visitorID = identity.VisitorID
		}
		s.selector.RecordOutcome(record, class, outcome, now)
		return record
	})

	db := database.NewFromConn(tenantCtx.Database.Conn)
	outcomeRepo := telemetry.NewSQLOutcomeRepository(db, tenantCtx.Logger)
	if err := outcomeRepo.Store(&telemetry.OutcomeRow{
		SessionToken: req.SessionToken,
		VisitorID:    visitorID,
		Class:        class,
		Framing:      interventions.Framing(req.Framing),
		Outcome:      outcome,
		OccurredAt:   now,
	}); err != nil {
		return err
	}

	s.logger.Intervention().Info("Intervention outcome reported",
		"tenantId", tenantCtx.TenantID,
		"sessionToken", req.SessionToken,
		"class", req.Class,
		"outcome", req.Outcome,
	)

	exportRepo := telemetry.NewSQLExportRepository(db, tenantCtx.Logger)
	s.sink.SubmitOutcome(tenantCtx.TenantID, exportRepo, req.SessionToken, class, interventions.Framing(req.Framing), outcome)
	return nil
}
