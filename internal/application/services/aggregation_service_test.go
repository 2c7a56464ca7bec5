package services

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/interventions"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/profiles"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/telemetry"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/visitor"
)

var aggTime = time.Date(2026, 8, 1, 14, 30, 0, 0, time.UTC)

func archivedSession(visitorID string, completed bool, maxStep int) *telemetry.ArchivedSession {
	return &telemetry.ArchivedSession{
		SessionToken:   "sess-" + visitorID,
		FunnelID:       "funnel-1",
		VisitorID:      visitorID,
		IdentitySource: string(profiles.SourceFingerprint),
		Device:         "mobile",
		MaxStepIndex:   maxStep,
		TotalSteps:     5,
		Completed:      completed,
		SessionStart:   aggTime,
		ArchivedAt:     aggTime.Add(30 * time.Minute),
	}
}

func TestFoldVisitorSessions(t *testing.T) {
	profile := &profiles.TraitProfile{VisitorID: "v-1"}

	foldVisitorSessions(profile, []*telemetry.ArchivedSession{
		archivedSession("v-1", false, 2),
		archivedSession("v-1", false, 4),
		archivedSession("v-1", true, 4),
	})

	assert.Equal(t, 3, profile.SessionCount)
	assert.Equal(t, 1, profile.PurchaseCount)
	assert.Equal(t, 2, profile.AbandonCount)
	assert.InDelta(t, 2.0/3.0, profile.AbandonmentRate, 1e-9)
	assert.Equal(t, 3, profile.TypicalAbandonStage) // round((2+4)/2)
	assert.Equal(t, "mobile", profile.PreferredDevice)
	assert.Equal(t, 14, profile.PreferredHour)
	assert.Equal(t, aggTime.Weekday(), profile.PreferredDay)
	assert.Equal(t, aggTime, profile.FirstSeen)
}

// The running abandon-stage mean must survive incremental folds: folding one
// session at a time ends at the same stage as folding them together.
func TestFoldVisitorSessionsIncrementalMean(t *testing.T) {
	batched := &profiles.TraitProfile{VisitorID: "v-1"}
	foldVisitorSessions(batched, []*telemetry.ArchivedSession{
		archivedSession("v-1", false, 1),
		archivedSession("v-1", false, 3),
		archivedSession("v-1", false, 5),
	})

	incremental := &profiles.TraitProfile{VisitorID: "v-1"}
	for _, step := range []int{1, 3, 5} {
		foldVisitorSessions(incremental, []*telemetry.ArchivedSession{
			archivedSession("v-1", false, step),
		})
	}

	assert.Equal(t, batched.TypicalAbandonStage, incremental.TypicalAbandonStage)
	assert.Equal(t, batched.AbandonCount, incremental.AbandonCount)
	assert.InDelta(t, batched.AbandonmentRate, incremental.AbandonmentRate, 1e-9)
}

func TestFoldVisitorOutcomes(t *testing.T) {
	profile := &profiles.TraitProfile{VisitorID: "v-1"}

	rows := []*telemetry.OutcomeRow{
		{Framing: interventions.FramingDiscount, Outcome: interventions.OutcomeShown},
		{Framing: interventions.FramingDiscount, Outcome: interventions.OutcomeShown},
		{Framing: interventions.FramingDiscount, Outcome: interventions.OutcomeEngaged},
		{Framing: interventions.FramingUrgency, Outcome: interventions.OutcomeShown},
		{Framing: interventions.FramingUrgency, Outcome: interventions.OutcomeDismissed},
	}

	foldVisitorOutcomes(profile, rows)

	assert.Equal(t, 2, profile.DiscountShown)
	assert.Equal(t, 1, profile.DiscountEngaged)
	assert.True(t, profile.RespondsToDiscount) // 1 engaged over 2 shown
	assert.Equal(t, 1, profile.UrgencyShown)
	assert.Zero(t, profile.UrgencyEngaged)
	assert.False(t, profile.RespondsToUrgency)
	assert.False(t, profile.RespondsToSocialProof) // no history at all
}

func TestRespondsTo(t *testing.T) {
	assert.False(t, respondsTo(0, 0))
	assert.False(t, respondsTo(0, 5))
	assert.False(t, respondsTo(1, 5)) // 0.2 below the floor
	assert.True(t, respondsTo(2, 5))
	assert.True(t, respondsTo(5, 5))
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db := database.NewFromConn(conn)
	require.NoError(t, database.EnsureSchema(db, "t1", newTestLogger(t)))
	return db
}

// Aggregated rows are marked in place, so re-running the job over the same
// table never double-counts a session.
func TestFoldSessionsIsIdempotent(t *testing.T) {
	logger := newTestLogger(t)
	db := newTestDB(t)
	archiveRepo := telemetry.NewSQLArchiveRepository(db, logger)
	profileRepo := visitor.NewSQLProfileRepository(db, logger)
	service := &AggregationService{logger: logger}

	require.NoError(t, archiveRepo.Store(archivedSession("v-1", false, 2)))
	require.NoError(t, archiveRepo.Store(archivedSession("v-1", true, 4)))
	require.NoError(t, archiveRepo.Store(&telemetry.ArchivedSession{
		SessionToken: "sess-anon",
		FunnelID:     "funnel-1",
		SessionStart: aggTime,
		ArchivedAt:   aggTime,
	}))

	folded, err := service.foldSessions(archiveRepo, profileRepo)
	require.NoError(t, err)
	assert.Equal(t, 3, folded) // anonymous rows are marked but not folded

	profile, err := profileRepo.FindByVisitorID("v-1")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, 2, profile.SessionCount)
	assert.Equal(t, 1, profile.AbandonCount)

	folded, err = service.foldSessions(archiveRepo, profileRepo)
	require.NoError(t, err)
	assert.Zero(t, folded)

	profile, err = profileRepo.FindByVisitorID("v-1")
	require.NoError(t, err)
	assert.Equal(t, 2, profile.SessionCount)
}

// Outcomes arriving before any archived session seed a minimal profile so the
// responsiveness history is not lost.
func TestFoldOutcomesSeedsProfile(t *testing.T) {
	logger := newTestLogger(t)
	db := newTestDB(t)
	outcomeRepo := telemetry.NewSQLOutcomeRepository(db, logger)
	profileRepo := visitor.NewSQLProfileRepository(db, logger)
	service := &AggregationService{logger: logger}

	for i := 0; i < 3; i++ {
		require.NoError(t, outcomeRepo.Store(&telemetry.OutcomeRow{
			SessionToken: "sess-1",
			VisitorID:    "v-9",
			Class:        interventions.ClassExitIntent,
			Framing:      interventions.FramingDiscount,
			Outcome:      interventions.OutcomeShown,
			OccurredAt:   aggTime,
		}))
	}
	require.NoError(t, outcomeRepo.Store(&telemetry.OutcomeRow{
		SessionToken: "sess-1",
		VisitorID:    "v-9",
		Class:        interventions.ClassExitIntent,
		Framing:      interventions.FramingDiscount,
		Outcome:      interventions.OutcomeEngaged,
		OccurredAt:   aggTime,
	}))

	folded, err := service.foldOutcomes(outcomeRepo, profileRepo)
	require.NoError(t, err)
	assert.Equal(t, 4, folded)

	profile, err := profileRepo.FindByVisitorID("v-9")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, 3, profile.DiscountShown)
	assert.Equal(t, 1, profile.DiscountEngaged)
	assert.True(t, profile.RespondsToDiscount)

	folded, err = service.foldOutcomes(outcomeRepo, profileRepo)
	require.NoError(t, err)
	assert.Zero(t, folded)
}
