package visitor

import (
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/profiles"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/database"
)

func newTestRepo(t *testing.T) *SQLProfileRepository {
	t.Helper()
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToFile:    false,
		OutputToConsole: false,
		DefaultLevel:    slog.LevelError,
	})
	require.NoError(t, err)

	conn, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db := database.NewFromConn(conn)
	require.NoError(t, database.EnsureSchema(db, "t1", logger))
	return NewSQLProfileRepository(db, logger)
}

func TestFindByVisitorIDMissingIsNotAnError(t *testing.T) {
	repo := newTestRepo(t)

	profile, err := repo.FindByVisitorID("nobody")
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestUpsertRoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	stored := &profiles.TraitProfile{
		VisitorID:             "fp-1",
		Source:                profiles.SourceFingerprint,
		SessionCount:          4,
		PurchaseCount:         1,
		AbandonCount:          3,
		PreferredDevice:       "mobile",
		PreferredHour:         21,
		PreferredDay:          time.Tuesday,
		AbandonmentRate:       0.75,
		TypicalAbandonStage:   2,
		RespondsToDiscount:    true,
		RespondsToSocialProof: false,
		DiscountShown:         5,
		DiscountEngaged:       2,
		SocialProofShown:      1,
		FirstSeen:             time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC),
		LastAggregated:        time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Upsert(stored))

	loaded, err := repo.FindByVisitorID("fp-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, stored, loaded)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpsertReplacesExistingRow(t *testing.T) {
	repo := newTestRepo(t)

	profile := &profiles.TraitProfile{
		VisitorID:      "fp-1",
		Source:         profiles.SourceFingerprint,
		SessionCount:   1,
		FirstSeen:      time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC),
		LastAggregated: time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Upsert(profile))

	profile.SessionCount = 2
	profile.AbandonCount = 1
	profile.AbandonmentRate = 0.5
	require.NoError(t, repo.Upsert(profile))

	loaded, err := repo.FindByVisitorID("fp-1")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.SessionCount)
	assert.Equal(t, 1, loaded.AbandonCount)
	assert.InDelta(t, 0.5, loaded.AbandonmentRate, 1e-9)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
