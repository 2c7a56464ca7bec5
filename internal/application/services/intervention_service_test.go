package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/interventions"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/scoring"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/export"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/telemetry"
	"github.com/AtRiskMedia/signalstack-go/pkg/config"
)

func newTestInterventionService(t *testing.T) *InterventionService {
	t.Helper()
	logger := newTestLogger(t)
	return NewInterventionService(
		interventions.NewSelector(interventions.DefaultRules(), config.InterventionCooldown, config.TraitHistoryMinimum),
		export.NewSink(logger),
		logger,
	)
}

func TestGetCurrentUnknownSession(t *testing.T) {
	service := newTestInterventionService(t)
	tenantCtx := newTestTenantContext(t, newTestLogger(t))

	_, err := service.GetCurrent(tenantCtx, "missing")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestGetCurrentReturnsStandingRecommendation(t *testing.T) {
	service := newTestInterventionService(t)
	tenantCtx := newTestTenantContext(t, newTestLogger(t))

	record := scoring.NewRecord("sess-1", "funnel-1", scoring.DefaultWeights(), time.Now().UTC())
	record.CurrentRecommendation = string(interventions.ClassUpsell)
	record.RecommendationPriority = 3
	record.Composites = scoring.CompositeScores{Engagement: 0.7, PurchaseIntent: 0.9}
	tenantCtx.CacheManager.Scores().Put("t1", record)

	current, err := service.GetCurrent(tenantCtx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, string(interventions.ClassUpsell), current.Recommendation)
	assert.Equal(t, 3, current.Priority)
	assert.Equal(t, 0.9, current.Composites.PurchaseIntent)
}

func TestReportOutcomeRejectsUnknownOutcome(t *testing.T) {
	service := newTestInterventionService(t)
	tenantCtx := newTestTenantContext(t, newTestLogger(t))

	err := service.ReportOutcome(tenantCtx, &OutcomeRequest{
		SessionToken: "sess-1",
		Class:        string(interventions.ClassUpsell),
		Outcome:      "clicked",
	})
	assert.Error(t, err)
}

func TestReportOutcomeUpdatesLiveRecordAndPersists(t *testing.T) {
	logger := newTestLogger(t)
	service := newTestInterventionService(t)
	tenantCtx := newTestTenantContext(t, logger)

	db := newTestDB(t)
	tenantCtx.Database.Conn = db.DB

	record := scoring.NewRecord("sess-1", "funnel-1", scoring.DefaultWeights(), time.Now().UTC())
	record.Fingerprint = "fp-1"
	record.CurrentRecommendation = string(interventions.ClassExitIntent)
	record.RecommendationPriority = 1
	tenantCtx.CacheManager.Scores().Put("t1", record)

	err := service.ReportOutcome(tenantCtx, &OutcomeRequest{
		SessionToken: "sess-1",
		Class:        string(interventions.ClassExitIntent),
		Framing:      string(interventions.FramingDiscount),
		Outcome:      string(interventions.OutcomeEngaged),
	})
	require.NoError(t, err)

	updated, found := tenantCtx.CacheManager.Scores().Get("t1", "sess-1")
	require.True(t, found)
	assert.Empty(t, updated.CurrentRecommendation)
	assert.Zero(t, updated.RecommendationPriority)

	rows, err := telemetry.NewSQLOutcomeRepository(db, logger).FindUnaggregated(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "fp-1", rows[0].VisitorID)
	assert.Equal(t, interventions.OutcomeEngaged, rows[0].Outcome)
}

// An expired session still records the durable outcome row.
func TestReportOutcomeSurvivesExpiredSession(t *testing.T) {
	logger := newTestLogger(t)
	service := newTestInterventionService(t)
	tenantCtx := newTestTenantContext(t, logger)

	db := newTestDB(t)
	tenantCtx.Database.Conn = db.DB

	err := service.ReportOutcome(tenantCtx, &OutcomeRequest{
		SessionToken: "gone",
		Class:        string(interventions.ClassHelpNudge),
		Framing:      string(interventions.FramingNeutral),
		Outcome:      string(interventions.OutcomeDismissed),
	})
	require.NoError(t, err)

	rows, err := telemetry.NewSQLOutcomeRepository(db, logger).FindUnaggregated(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].VisitorID)
}
