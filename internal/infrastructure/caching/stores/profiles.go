package stores

import (
	"sync"
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/profiles"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
)

// profileEntry caches one resolved trait profile. A nil profile is a cached
// negative result so anonymous sessions hit the durable store only once.
type profileEntry struct {
	profile  *profiles.TraitProfile
	cachedAt time.Time
}

// TenantProfileCache holds resolved trait profiles for one tenant's sessions.
type TenantProfileCache struct {
	Entries map[string]*profileEntry // sessionToken -> entry
	Mu      sync.RWMutex             // Exported for access
}

// ProfilesStore caches trait profiles resolved at session start for the
// session's lifetime. Profiles are refreshed only by the offline aggregator;
// the live path never writes them.
type ProfilesStore struct {
	tenantCaches map[string]*TenantProfileCache
	mu           sync.RWMutex
	logger       *logging.ChanneledLogger
}

// NewProfilesStore creates a new trait profile cache store
func NewProfilesStore(logger *logging.ChanneledLogger) *ProfilesStore {
	return &ProfilesStore{
		tenantCaches: make(map[string]*TenantProfileCache),
		logger:       logger,
	}
}

// InitializeTenant creates cache structures for a tenant
func (ps *ProfilesStore) InitializeTenant(tenantID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.tenantCaches[tenantID] == nil {
		ps.tenantCaches[tenantID] = &TenantProfileCache{
			Entries: make(map[string]*profileEntry),
		}
	}
}

func (ps *ProfilesStore) getTenantCache(tenantID string) (*TenantProfileCache, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	cache, exists := ps.tenantCaches[tenantID]
	return cache, exists
}

// Get returns the cached profile for a session. The second return reports a
// cache hit; the profile itself may be nil (cached anonymous/absent result).
func (ps *ProfilesStore) Get(tenantID, sessionToken string) (*profiles.TraitProfile, bool) {
	cache, exists := ps.getTenantCache(tenantID)
	if !exists {
		return nil, false
	}

	cache.Mu.RLock()
	defer cache.Mu.RUnlock()

	entry, found := cache.Entries[sessionToken]
	if !found {
		return nil, false
	}
	return entry.profile, true
}

// Set caches the resolved profile (or nil) for a session.
func (ps *ProfilesStore) Set(tenantID, sessionToken string, profile *profiles.TraitProfile) {
	cache, exists := ps.getTenantCache(tenantID)
	if !exists {
		ps.InitializeTenant(tenantID)
		cache, _ = ps.getTenantCache(tenantID)
	}

	cache.Mu.Lock()
	defer cache.Mu.Unlock()
	cache.Entries[sessionToken] = &profileEntry{profile: profile, cachedAt: time.Now().UTC()}

	if ps.logger != nil {
		ps.logger.Cache().Debug("Cache operation", "operation", "set", "type", "trait_profile", "tenantId", tenantID, "sessionToken", sessionToken, "resolved", profile != nil)
	}
}

// Remove drops the cached profile for a session.
func (ps *ProfilesStore) Remove(tenantID, sessionToken string) {
	cache, exists := ps.getTenantCache(tenantID)
	if !exists {
		return
	}

	cache.Mu.Lock()
	defer cache.Mu.Unlock()
	delete(cache.Entries, sessionToken)
}
