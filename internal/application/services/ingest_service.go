package services

import (
	"context"
	"errors"
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/events"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/interventions"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/scoring"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/caching/interfaces"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/caching/stores"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/export"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/funnel"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/telemetry"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/signalstack-go/pkg/config"
)

// casRetries bounds the optimistic write loop. Contention past this depth
// means two clients are hammering the same session token; commitRecord then
// degrades to an unconditional write and the last writer wins.
const casRetries = 3

// BatchRequest is one client-submitted event batch with its session envelope.
type BatchRequest struct {
	SessionToken string            `json:"sessionToken"`
	FunnelID     string            `json:"funnelId"`
	Fingerprint  string            `json:"fingerprint,omitempty"`
	CustomerID   string            `json:"customerId,omitempty"`
	Email        string            `json:"email,omitempty"`
	Device       string            `json:"device,omitempty"`
	Events       []events.RawEvent `json:"events"`
}

// BatchResult reports what happened to a processed batch.
type BatchResult struct {
	Accepted       int                           `json:"accepted"`
	Dropped        int                           `json:"dropped"`
	Reasons        []string                      `json:"reasons,omitempty"`
	Composites     scoring.CompositeScores       `json:"composites"`
	Recommendation *interventions.Recommendation `json:"recommendation,omitempty"`
}

// IngestService is the write path: validate, resolve collaborators, fold
// through the pure pipeline, and commit with optimistic concurrency.
type IngestService struct {
	profileService *ProfileService
	funnelClient   funnel.StateClient
	selector       *interventions.Selector
	sink           *export.Sink
	broadcaster    *messaging.InterventionBroadcaster
	logger         *logging.ChanneledLogger
}

func NewIngestService(
	profileService *ProfileService,
	funnelClient funnel.StateClient,
	selector *interventions.Selector,
	sink *export.Sink,
	broadcaster *messaging.InterventionBroadcaster,
	logger *logging.ChanneledLogger,
) *IngestService {
	return &IngestService{
		profileService: profileService,
		funnelClient:   funnelClient,
		selector:       selector,
		sink:           sink,
		broadcaster:    broadcaster,
		logger:         logger,
	}
}

// ProcessBatch handles one event batch end to end. Oversized batches are the
// only hard rejection; everything else degrades per entry.
func (s *IngestService) ProcessBatch(ctx context.Context, tenantCtx *tenant.Context, req *BatchRequest) (*BatchResult, error) {
	if req.SessionToken == "" {
		return nil, errors.New("session token is required")
	}

	marker := tenantCtx.PerfTracker.StartOperation("ingest_batch", tenantCtx.TenantID)
	defer marker.Complete()

	validation, err := events.ValidateBatch(req.Events, config.MaxEventsPerBatch)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	profile := s.profileService.ResolveForSession(ctx, tenantCtx, req.SessionToken, req.Fingerprint, req.CustomerID, req.Email)

	stateClient := s.funnelClient
	if tenantCtx.FunnelClient != nil {
		stateClient = tenantCtx.FunnelClient
	}
	funnelState, err := stateClient.GetState(ctx, req.SessionToken, req.FunnelID)
	if err != nil {
		// Documented fallback: score without business signals.
		s.logger.Ingest().Warn("Funnel state unavailable", "sessionToken", req.SessionToken, "error", err.Error())
		funnelState = scoring.FunnelState{}
	}

	now := time.Now().UTC()
	store := tenantCtx.CacheManager.Scores()

	var recommendation *interventions.Recommendation
	record := commitRecord(store, tenantCtx.TenantID, func() *scoring.Record {
		prior, found := store.Get(tenantCtx.TenantID, req.SessionToken)
		if !found {
			prior = scoring.NewRecord(req.SessionToken, req.FunnelID, configuredWeights(), now)
		}
		applyIdentityHints(prior, req)

		next := scoring.Apply(prior, validation.Events, profile, funnelState, now)
		recommendation = s.selector.Evaluate(next, profile, now)
		return next
	})

	s.logger.Ingest().Debug("Batch folded",
		"tenantId", tenantCtx.TenantID,
		"sessionToken", req.SessionToken,
		"accepted", len(validation.Events),
		"dropped", validation.Dropped,
		"engagement", record.Composites.Engagement,
		"risk", record.Composites.AbandonmentRisk,
		"intent", record.Composites.PurchaseIntent,
	)

	exportRepo := telemetry.NewSQLExportRepository(database.NewFromConn(tenantCtx.Database.Conn), tenantCtx.Logger)
	s.sink.SubmitScoreSnapshot(tenantCtx.TenantID, exportRepo, record)

	if recommendation != nil {
		s.logger.Intervention().Info("Intervention recommended",
			"tenantId", tenantCtx.TenantID,
			"sessionToken", req.SessionToken,
			"class", string(recommendation.Class),
			"framing", string(recommendation.Framing),
			"rule", recommendation.Rule,
		)
		s.broadcaster.BroadcastRecommendation(tenantCtx.TenantID, req.SessionToken, recommendation)
	}

	marker.SetSuccess(true)
	return &BatchResult{
		Accepted:       len(validation.Events),
		Dropped:        validation.Dropped,
		Reasons:        validation.Reasons,
		Composites:     record.Composites,
		Recommendation: recommendation,
	}, nil
}

// commitRecord persists fold's output with bounded optimistic retry. fold is
// re-run against the latest stored state after every lost race, and a nil
// fold result aborts the write. Contention that outlasts the retry budget
// commits unconditionally; a version conflict never reaches the caller.
func commitRecord(store interfaces.ScoreStore, tenantID string, fold func() *scoring.Record) *scoring.Record {
	for attempt := 0; ; attempt++ {
		record := fold()
		if record == nil {
			return nil
		}
		err := store.CompareAndSwap(tenantID, record)
		if err == nil {
			return record
		}
		if errors.Is(err, stores.ErrConflict) && attempt < casRetries {
			continue
		}
		store.Put(tenantID, record)
		return record
	}
}

// applyIdentityHints keeps the strongest identity hints seen so far on the
// record so late email capture still reaches the archive and recovery paths.
func applyIdentityHints(record *scoring.Record, req *BatchRequest) {
	if req.FunnelID != "" {
		record.FunnelID = req.FunnelID
	}
	if req.Fingerprint != "" {
		record.Fingerprint = req.Fingerprint
	}
	if req.CustomerID != "" {
		record.CustomerID = req.CustomerID
	}
	if req.Email != "" {
		record.Email = req.Email
	}
	if req.Device != "" {
		record.Device = req.Device
	}
}

// configuredWeights snapshots the environment-driven weighting so each new
// session pins whatever configuration was live at its first batch.
func configuredWeights() scoring.Weights {
	return scoring.Weights{
		Scroll:      config.WeightScroll,
		Time:        config.WeightTime,
		Interaction: config.WeightInteraction,
		Progress:    config.WeightProgress,
		Idle:        config.WeightIdle,
		ExitIntent:  config.WeightExitIntent,
		TabSwitch:   config.WeightTabSwitch,
		FormError:   config.WeightFormError,
		BackNav:     config.WeightBackNav,
	}
}
