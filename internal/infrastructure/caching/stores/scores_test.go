package stores

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/scoring"
)

var storeTime = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newRecord(token string) *scoring.Record {
	return scoring.NewRecord(token, "funnel-1", scoring.DefaultWeights(), storeTime)
}

func TestScoresStoreGetReturnsClone(t *testing.T) {
	store := NewScoresStore(nil)
	store.InitializeTenant("t1")

	record := newRecord("sess-1")
	record.InteractionKinds["gallery"] = 1
	store.Put("t1", record)

	got, found := store.Get("t1", "sess-1")
	require.True(t, found)

	got.InteractionKinds["gallery"] = 99
	got.MaxScrollDepth = 80

	again, _ := store.Get("t1", "sess-1")
	assert.Equal(t, 1, again.InteractionKinds["gallery"])
	assert.Zero(t, again.MaxScrollDepth)
}

func TestScoresStoreGetMiss(t *testing.T) {
	store := NewScoresStore(nil)
	store.InitializeTenant("t1")

	_, found := store.Get("t1", "nope")
	assert.False(t, found)

	_, found = store.Get("unknown-tenant", "nope")
	assert.False(t, found)
}

func TestScoresStorePutBumpsVersion(t *testing.T) {
	store := NewScoresStore(nil)

	record := newRecord("sess-1")
	store.Put("t1", record)
	assert.Equal(t, uint64(1), record.Version)

	store.Put("t1", record)
	assert.Equal(t, uint64(2), record.Version)
}

func TestScoresStoreCompareAndSwapConflict(t *testing.T) {
	store := NewScoresStore(nil)

	first := newRecord("sess-1")
	require.NoError(t, store.CompareAndSwap("t1", first))
	assert.Equal(t, uint64(1), first.Version)

	// A second writer still holding the pre-write version loses the race.
	stale := newRecord("sess-1")
	err := store.CompareAndSwap("t1", stale)
	assert.ErrorIs(t, err, ErrConflict)

	// Reloading gives the current version and the retry succeeds.
	current, found := store.Get("t1", "sess-1")
	require.True(t, found)
	current.ExitIntentCount = 2
	require.NoError(t, store.CompareAndSwap("t1", current))
	assert.Equal(t, uint64(2), current.Version)
}

// A record evicted between read and write is recreated rather than failing;
// the write wins.
func TestScoresStoreCompareAndSwapRecreatesAfterEviction(t *testing.T) {
	store := NewScoresStore(nil)

	record := newRecord("sess-1")
	require.NoError(t, store.CompareAndSwap("t1", record))

	loaded, found := store.Get("t1", "sess-1")
	require.True(t, found)

	store.Remove("t1", "sess-1")

	require.NoError(t, store.CompareAndSwap("t1", loaded))

	recreated, found := store.Get("t1", "sess-1")
	require.True(t, found)
	assert.Equal(t, uint64(2), recreated.Version)
}

func TestScoresStoreSweepReturnsExpired(t *testing.T) {
	store := NewScoresStore(nil)

	fresh := newRecord("fresh")
	fresh.LastUpdated = storeTime
	store.Put("t1", fresh)

	stale := newRecord("stale")
	stale.LastUpdated = storeTime.Add(-time.Hour)
	store.Put("t1", stale)

	evicted := store.Sweep("t1", 30*time.Minute, storeTime)

	require.Len(t, evicted, 1)
	assert.Equal(t, "stale", evicted[0].SessionToken)
	assert.Equal(t, 1, store.Count("t1"))

	_, found := store.Get("t1", "stale")
	assert.False(t, found)
	_, found = store.Get("t1", "fresh")
	assert.True(t, found)
}

func TestScoresStoreSweepZeroTTLNeverExpires(t *testing.T) {
	store := NewScoresStore(nil)

	ancient := newRecord("ancient")
	ancient.LastUpdated = storeTime.Add(-24 * time.Hour)
	store.Put("t1", ancient)

	evicted := store.Sweep("t1", 0, storeTime)
	assert.Empty(t, evicted)
	assert.Equal(t, 1, store.Count("t1"))
}

func TestScoresStoreTenantIsolation(t *testing.T) {
	store := NewScoresStore(nil)

	store.Put("t1", newRecord("sess-1"))
	store.Put("t2", newRecord("sess-2"))

	_, found := store.Get("t1", "sess-2")
	assert.False(t, found)
	assert.Equal(t, 1, store.Count("t1"))
	assert.Equal(t, 1, store.Count("t2"))
	assert.ElementsMatch(t, []string{"t1", "t2"}, store.Tenants())
}
