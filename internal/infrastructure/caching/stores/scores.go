// Package stores provides concrete cache store implementations
package stores

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/scoring"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/pkg/config"
)

// ErrConflict signals a lost compare-and-swap race on a score record. It is
// retried internally by the ingest path and never surfaced to callers.
var ErrConflict = errors.New("score record version conflict")

// TenantScoreCache holds the live score records for one tenant.
type TenantScoreCache struct {
	Records    map[string]*scoring.Record // sessionToken -> record
	LastLoaded time.Time
	Mu         sync.RWMutex // Exported for access
}

// ScoresStore implements the session score store with tenant isolation.
// Versioned records give optimistic concurrency: two batches racing on the
// same session resolve through CAS retry, never a lost update.
type ScoresStore struct {
	tenantCaches map[string]*TenantScoreCache
	mu           sync.RWMutex
	logger       *logging.ChanneledLogger
}

// NewScoresStore creates a new score record store
func NewScoresStore(logger *logging.ChanneledLogger) *ScoresStore {
	if logger != nil {
		logger.Cache().Info("Initializing score record store")
	}
	return &ScoresStore{
		tenantCaches: make(map[string]*TenantScoreCache),
		logger:       logger,
	}
}

// InitializeTenant creates cache structures for a tenant
func (ss *ScoresStore) InitializeTenant(tenantID string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.tenantCaches[tenantID] == nil {
		ss.tenantCaches[tenantID] = &TenantScoreCache{
			Records:    make(map[string]*scoring.Record),
			LastLoaded: time.Now().UTC(),
		}
		if ss.logger != nil {
			ss.logger.Cache().Info("Tenant score cache initialized", "tenantId", tenantID)
		}
	}
}

// getTenantCache safely retrieves a tenant's score cache
func (ss *ScoresStore) getTenantCache(tenantID string) (*TenantScoreCache, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	cache, exists := ss.tenantCaches[tenantID]
	return cache, exists
}

func (ss *ScoresStore) ensureTenantCache(tenantID string) *TenantScoreCache {
	cache, exists := ss.getTenantCache(tenantID)
	if !exists {
		ss.InitializeTenant(tenantID)
		cache, _ = ss.getTenantCache(tenantID)
	}
	return cache
}

// Get returns a deep copy of the session's score record.
func (ss *ScoresStore) Get(tenantID, sessionToken string) (*scoring.Record, bool) {
	start := time.Now()
	cache, exists := ss.getTenantCache(tenantID)
	if !exists {
		return nil, false
	}

	cache.Mu.RLock()
	defer cache.Mu.RUnlock()

	record, found := cache.Records[sessionToken]
	if ss.logger != nil {
		ss.logger.Cache().Debug("Cache operation", "operation", "get", "type", "score_record", "tenantId", tenantID, "sessionToken", sessionToken, "hit", found, "duration", time.Since(start))
	}
	if !found {
		return nil, false
	}
	return record.Clone(), true
}

// Put stores a record unconditionally, assigning a fresh version.
func (ss *ScoresStore) Put(tenantID string, record *scoring.Record) {
	cache := ss.ensureTenantCache(tenantID)

	cache.Mu.Lock()
	defer cache.Mu.Unlock()

	if len(cache.Records) >= config.MaxRecordsPerTenant {
		ss.evictOldestLocked(cache, config.MaxRecordsPerTenant*8/10)
	}

	stored := record.Clone()
	stored.Version = record.Version + 1
	cache.Records[record.SessionToken] = stored
	record.Version = stored.Version

	if ss.logger != nil {
		ss.logger.Cache().Debug("Cache operation", "operation", "put", "type", "score_record", "tenantId", tenantID, "sessionToken", record.SessionToken, "version", stored.Version)
	}
}

// CompareAndSwap writes only if the stored version still matches
// record.Version. A record that expired mid-write is recreated fresh
// (write wins) rather than failing.
func (ss *ScoresStore) CompareAndSwap(tenantID string, record *scoring.Record) error {
	cache := ss.ensureTenantCache(tenantID)

	cache.Mu.Lock()
	defer cache.Mu.Unlock()

	stored, found := cache.Records[record.SessionToken]
	if found && stored.Version != record.Version {
		if ss.logger != nil {
			ss.logger.Cache().Debug("Cache operation", "operation", "cas", "type", "score_record", "tenantId", tenantID, "sessionToken", record.SessionToken, "hit", true, "conflict", true, "expected", record.Version, "actual", stored.Version)
		}
		return ErrConflict
	}

	next := record.Clone()
	next.Version = record.Version + 1
	cache.Records[record.SessionToken] = next
	record.Version = next.Version
	return nil
}

// Remove deletes the record for a session.
func (ss *ScoresStore) Remove(tenantID, sessionToken string) {
	cache, exists := ss.getTenantCache(tenantID)
	if !exists {
		return
	}

	cache.Mu.Lock()
	defer cache.Mu.Unlock()
	delete(cache.Records, sessionToken)
}

// Sweep evicts records idle past the TTL and returns them for terminal hooks.
func (ss *ScoresStore) Sweep(tenantID string, ttl time.Duration, now time.Time) []*scoring.Record {
	cache, exists := ss.getTenantCache(tenantID)
	if !exists {
		return nil
	}

	cache.Mu.Lock()
	defer cache.Mu.Unlock()

	var evicted []*scoring.Record
	for token, record := range cache.Records {
		if record.Expired(ttl, now) {
			evicted = append(evicted, record)
			delete(cache.Records, token)
		}
	}

	if ss.logger != nil && len(evicted) > 0 {
		ss.logger.Cache().Info("Score records expired", "tenantId", tenantID, "count", len(evicted), "remaining", len(cache.Records))
	}
	return evicted
}

// Tenants lists tenant IDs with initialized caches.
func (ss *ScoresStore) Tenants() []string {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	ids := make([]string, 0, len(ss.tenantCaches))
	for id := range ss.tenantCaches {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live records for a tenant.
func (ss *ScoresStore) Count(tenantID string) int {
	cache, exists := ss.getTenantCache(tenantID)
	if !exists {
		return 0
	}
	cache.Mu.RLock()
	defer cache.Mu.RUnlock()
	return len(cache.Records)
}

// evictOldestLocked keeps the newest keepCount records. Caller holds cache.Mu.
func (ss *ScoresStore) evictOldestLocked(cache *TenantScoreCache, keepCount int) {
	if len(cache.Records) <= keepCount {
		return
	}

	type aged struct {
		token   string
		updated time.Time
	}
	entries := make([]aged, 0, len(cache.Records))
	for token, record := range cache.Records {
		entries = append(entries, aged{token: token, updated: record.LastUpdated})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].updated.Before(entries[j].updated)
	})
	for _, entry := range entries[:len(entries)-keepCount] {
		delete(cache.Records, entry.token)
	}
}
