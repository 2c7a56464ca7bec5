package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/events"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/interventions"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/profiles"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/scoring"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/caching/manager"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/export"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/funnel"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/signalstack-go/pkg/config"
)

func newTestLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToFile:    false,
		OutputToConsole: false,
		DefaultLevel:    slog.LevelError,
	})
	require.NoError(t, err)
	return logger
}

func newTestTenantContext(t *testing.T, logger *logging.ChanneledLogger) *tenant.Context {
	t.Helper()
	cacheManager := manager.NewManager(logger)
	cacheManager.InitializeTenant("t1")
	return &tenant.Context{
		TenantID:     "t1",
		Status:       "active",
		Config:       &tenant.Config{TenantID: "t1"},
		Database:     &tenant.Database{TenantID: "t1"},
		CacheManager: cacheManager,
		Logger:       logger,
		PerfTracker:  performance.NewTracker(nil),
	}
}

func newTestIngestService(t *testing.T, logger *logging.ChanneledLogger, funnelClient funnel.StateClient) *IngestService {
	t.Helper()
	return NewIngestService(
		NewProfileService(logger),
		funnelClient,
		interventions.NewSelector(interventions.DefaultRules(), config.InterventionCooldown, config.TraitHistoryMinimum),
		export.NewSink(logger),
		messaging.NewInterventionBroadcaster(logger),
		logger,
	)
}

type failingStateClient struct{}

func (failingStateClient) GetState(context.Context, string, string) (scoring.FunnelState, error) {
	return scoring.FunnelState{}, errors.New("funnel flow unreachable")
}

func rawEvent(kind events.Kind, value float64, detail string, ts int64) events.RawEvent {
	return events.RawEvent{Kind: string(kind), Value: value, Detail: detail, Timestamp: ts}
}

func TestProcessBatchRequiresSessionToken(t *testing.T) {
	logger := newTestLogger(t)
	service := newTestIngestService(t, logger, &funnel.StaticStateClient{})

	_, err := service.ProcessBatch(context.Background(), newTestTenantContext(t, logger), &BatchRequest{})
	assert.Error(t, err)
}

func TestProcessBatchRejectsOversized(t *testing.T) {
	logger := newTestLogger(t)
	service := newTestIngestService(t, logger, &funnel.StaticStateClient{})
	tenantCtx := newTestTenantContext(t, logger)

	raw := make([]events.RawEvent, config.MaxEventsPerBatch+1)
	for i := range raw {
		raw[i] = rawEvent(events.KindScrollDepth, 50, "", 1000)
	}

	_, err := service.ProcessBatch(context.Background(), tenantCtx, &BatchRequest{
		SessionToken: "sess-1",
		Events:       raw,
	})
	assert.ErrorIs(t, err, events.ErrOversizedBatch)
}

func TestProcessBatchFoldsAndStores(t *testing.T) {
	logger := newTestLogger(t)
	service := newTestIngestService(t, logger, &funnel.StaticStateClient{})
	tenantCtx := newTestTenantContext(t, logger)

	result, err := service.ProcessBatch(context.Background(), tenantCtx, &BatchRequest{
		SessionToken: "sess-1",
		FunnelID:     "funnel-1",
		Events: []events.RawEvent{
			rawEvent(events.KindScrollDepth, 60, "", 1000),
			rawEvent(events.KindTimeOnPage, 45, "", 2000),
			rawEvent(events.KindScrollDepth, 150, "", 3000), // dropped: out of range
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 1, result.Dropped)
	assert.Greater(t, result.Composites.Engagement, 0.0)
	assert.Nil(t, result.Recommendation)

	record, found := tenantCtx.CacheManager.Scores().Get("t1", "sess-1")
	require.True(t, found)
	assert.Equal(t, 60.0, record.MaxScrollDepth)
	assert.Equal(t, 45.0, record.ActiveSeconds)
	assert.Equal(t, "funnel-1", record.FunnelID)
	assert.Equal(t, uint64(1), record.Version)
}

func TestProcessBatchAccumulatesAcrossBatches(t *testing.T) {
	logger := newTestLogger(t)
	service := newTestIngestService(t, logger, &funnel.StaticStateClient{})
	tenantCtx := newTestTenantContext(t, logger)

	first := &BatchRequest{
		SessionToken: "sess-1",
		Events:       []events.RawEvent{rawEvent(events.KindTimeOnPage, 100, "", 1000)},
	}
	second := &BatchRequest{
		SessionToken: "sess-1",
		Events:       []events.RawEvent{rawEvent(events.KindTimeOnPage, 100, "", 2000)},
	}

	_, err := service.ProcessBatch(context.Background(), tenantCtx, first)
	require.NoError(t, err)
	_, err = service.ProcessBatch(context.Background(), tenantCtx, second)
	require.NoError(t, err)

	record, found := tenantCtx.CacheManager.Scores().Get("t1", "sess-1")
	require.True(t, found)
	assert.Equal(t, 200.0, record.ActiveSeconds)
	assert.Equal(t, uint64(2), record.Version)
}

// Repeated exit intents plus form errors with a cart item must produce an
// exit-rescue recommendation in the batch result.
func TestProcessBatchEmitsExitRescue(t *testing.T) {
	logger := newTestLogger(t)
	funnelClient := &funnel.StaticStateClient{
		States: map[string]scoring.FunnelState{
			"sess-1": {ItemCount: 1, StepIndex: 1, TotalSteps: 5},
		},
	}
	service := newTestIngestService(t, logger, funnelClient)
	tenantCtx := newTestTenantContext(t, logger)

	result, err := service.ProcessBatch(context.Background(), tenantCtx, &BatchRequest{
		SessionToken: "sess-1",
		Events: []events.RawEvent{
			rawEvent(events.KindExitIntent, 0, "", 1000),
			rawEvent(events.KindExitIntent, 0, "", 2000),
			rawEvent(events.KindExitIntent, 0, "", 3000),
			rawEvent(events.KindFormError, 0, "card-number", 4000),
			rawEvent(events.KindFormError, 0, "card-number", 5000),
		},
	})
	require.NoError(t, err)

	require.NotNil(t, result.Recommendation)
	assert.Equal(t, interventions.ClassExitIntent, result.Recommendation.Class)
	assert.Equal(t, interventions.FramingDiscount, result.Recommendation.Framing)
	assert.Greater(t, result.Composites.AbandonmentRisk, 0.7)
}

// A cached trait profile with enough discount history steers the exit-rescue
// framing to the neutral fallback.
func TestProcessBatchHonorsProfileSuppression(t *testing.T) {
	logger := newTestLogger(t)
	funnelClient := &funnel.StaticStateClient{
		States: map[string]scoring.FunnelState{
			"sess-1": {ItemCount: 1, StepIndex: 1, TotalSteps: 5},
		},
	}
	service := newTestIngestService(t, logger, funnelClient)
	tenantCtx := newTestTenantContext(t, logger)

	tenantCtx.CacheManager.Profiles().Set("t1", "sess-1", &profiles.TraitProfile{
		VisitorID:          "fp-1",
		RespondsToDiscount: false,
		DiscountShown:      5,
	})

	result, err := service.ProcessBatch(context.Background(), tenantCtx, &BatchRequest{
		SessionToken: "sess-1",
		Fingerprint:  "fp-1",
		Events: []events.RawEvent{
			rawEvent(events.KindExitIntent, 0, "", 1000),
			rawEvent(events.KindExitIntent, 0, "", 2000),
			rawEvent(events.KindExitIntent, 0, "", 3000),
			rawEvent(events.KindFormError, 0, "email", 4000),
			rawEvent(events.KindFormError, 0, "email", 5000),
		},
	})
	require.NoError(t, err)

	require.NotNil(t, result.Recommendation)
	assert.Equal(t, interventions.ClassExitIntent, result.Recommendation.Class)
	assert.Equal(t, interventions.FramingNeutral, result.Recommendation.Framing)
}

// A funnel lookup failure degrades to scoring without business signals
// instead of failing the batch.
func TestProcessBatchDegradesWithoutFunnelState(t *testing.T) {
	logger := newTestLogger(t)
	service := newTestIngestService(t, logger, failingStateClient{})
	tenantCtx := newTestTenantContext(t, logger)

	result, err := service.ProcessBatch(context.Background(), tenantCtx, &BatchRequest{
		SessionToken: "sess-1",
		Events:       []events.RawEvent{rawEvent(events.KindScrollDepth, 40, "", 1000)},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Accepted)
	record, found := tenantCtx.CacheManager.Scores().Get("t1", "sess-1")
	require.True(t, found)
	assert.Zero(t, record.CartItems)
	assert.Zero(t, record.TotalSteps)
}

// Resubmitting the same batch keeps every score inside [0,1]; the saturating
// accumulators absorb duplicated delivery.
func TestProcessBatchResubmissionStaysBounded(t *testing.T) {
	logger := newTestLogger(t)
	service := newTestIngestService(t, logger, &funnel.StaticStateClient{})
	tenantCtx := newTestTenantContext(t, logger)

	req := &BatchRequest{
		SessionToken: "sess-1",
		Events: []events.RawEvent{
			rawEvent(events.KindScrollDepth, 90, "", 1000),
			rawEvent(events.KindTimeOnPage, 200, "", 2000),
			rawEvent(events.KindExitIntent, 0, "", 3000),
			rawEvent(events.KindProductInteract, 0, "gallery", 4000),
		},
	}

	var last *BatchResult
	for i := 0; i < 5; i++ {
		result, err := service.ProcessBatch(context.Background(), tenantCtx, req)
		require.NoError(t, err)
		last = result
	}

	for name, v := range map[string]float64{
		"engagement": last.Composites.Engagement,
		"risk":       last.Composites.AbandonmentRisk,
		"intent":     last.Composites.PurchaseIntent,
	} {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 1.0, name)
	}
}

// Concurrent qualifying batches for one session yield exactly one surviving
// recommendation; CAS retries re-evaluate against the committed record, whose
// cooldown anchor blocks a second one.
func TestProcessBatchConcurrentSubmissionsRecommendOnce(t *testing.T) {
	logger := newTestLogger(t)
	funnelClient := &funnel.StaticStateClient{
		States: map[string]scoring.FunnelState{
			"sess-1": {ItemCount: 1, StepIndex: 1, TotalSteps: 5},
		},
	}
	service := newTestIngestService(t, logger, funnelClient)
	tenantCtx := newTestTenantContext(t, logger)

	const writers = 8
	results := make([]*BatchResult, writers)
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot], errs[slot] = service.ProcessBatch(context.Background(), tenantCtx, &BatchRequest{
				SessionToken: "sess-1",
				Events: []events.RawEvent{
					rawEvent(events.KindExitIntent, 0, "", 1000),
					rawEvent(events.KindExitIntent, 0, "", 2000),
					rawEvent(events.KindExitIntent, 0, "", 3000),
					rawEvent(events.KindFormError, 0, "email", 4000),
					rawEvent(events.KindFormError, 0, "email", 5000),
				},
			})
		}(i)
	}
	wg.Wait()

	// Lost version races resolve internally; no writer ever sees a conflict.
	recommended := 0
	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		if results[i].Recommendation != nil {
			recommended++
		}
	}
	assert.Equal(t, 1, recommended)
}

func TestProcessBatchKeepsStrongestIdentityHints(t *testing.T) {
	logger := newTestLogger(t)
	service := newTestIngestService(t, logger, &funnel.StaticStateClient{})
	tenantCtx := newTestTenantContext(t, logger)

	_, err := service.ProcessBatch(context.Background(), tenantCtx, &BatchRequest{
		SessionToken: "sess-1",
		Fingerprint:  "fp-1",
		Device:       "mobile",
		Events:       []events.RawEvent{rawEvent(events.KindScrollDepth, 20, "", 1000)},
	})
	require.NoError(t, err)

	// Late email capture lands on the same record.
	_, err = service.ProcessBatch(context.Background(), tenantCtx, &BatchRequest{
		SessionToken: "sess-1",
		Email:        "visitor@example.com",
		Events:       []events.RawEvent{rawEvent(events.KindScrollDepth, 30, "", 2000)},
	})
	require.NoError(t, err)

	record, found := tenantCtx.CacheManager.Scores().Get("t1", "sess-1")
	require.True(t, found)
	assert.Equal(t, "fp-1", record.Fingerprint)
	assert.Equal(t, "visitor@example.com", record.Email)
	assert.Equal(t, "mobile", record.Device)
}

func TestProcessBatchPrefersTenantFunnelClient(t *testing.T) {
	logger := newTestLogger(t)
	service := newTestIngestService(t, logger, failingStateClient{})
	tenantCtx := newTestTenantContext(t, logger)
	tenantCtx.FunnelClient = &funnel.StaticStateClient{
		States: map[string]scoring.FunnelState{
			"sess-1": {ItemCount: 2, StepIndex: 1, TotalSteps: 5},
		},
	}

	_, err := service.ProcessBatch(context.Background(), tenantCtx, &BatchRequest{
		SessionToken: "sess-1",
		Events:       []events.RawEvent{rawEvent(events.KindScrollDepth, 40, "", 1000)},
	})
	require.NoError(t, err)

	record, found := tenantCtx.CacheManager.Scores().Get("t1", "sess-1")
	require.True(t, found)
	assert.Equal(t, 2, record.CartItems)
	assert.Equal(t, 5, record.TotalSteps)
}

func TestCommitRecordFallsBackAfterRetryBudget(t *testing.T) {
	logger := newTestLogger(t)
	cacheManager := manager.NewManager(logger)
	cacheManager.InitializeTenant("t1")
	store := cacheManager.Scores()

	now := time.Now().UTC()
	store.Put("t1", scoring.NewRecord("sess-1", "funnel-1", scoring.DefaultWeights(), now))

	// Every fold produces a stale version, so each attempt loses the race.
	folds := 0
	record := commitRecord(store, "t1", func() *scoring.Record {
		folds++
		stale := scoring.NewRecord("sess-1", "funnel-1", scoring.DefaultWeights(), now)
		stale.ActiveSeconds = 42
		return stale
	})

	require.NotNil(t, record)
	assert.Equal(t, casRetries+1, folds)

	stored, found := store.Get("t1", "sess-1")
	require.True(t, found)
	assert.Equal(t, 42.0, stored.ActiveSeconds)
}

func TestCommitRecordNilFoldWritesNothing(t *testing.T) {
	logger := newTestLogger(t)
	cacheManager := manager.NewManager(logger)
	cacheManager.InitializeTenant("t1")
	store := cacheManager.Scores()

	record := commitRecord(store, "t1", func() *scoring.Record { return nil })

	assert.Nil(t, record)
	assert.Equal(t, 0, store.Count("t1"))
}
