// Package manager provides centralized cache operations with proper tenant isolation
package manager

import (
	"sync"
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/caching/interfaces"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/caching/stores"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
)

// Interface assertions to ensure the stores satisfy the cache contracts.
var (
	_ interfaces.ScoreStore   = (*stores.ScoresStore)(nil)
	_ interfaces.ProfileCache = (*stores.ProfilesStore)(nil)
)

// Manager bundles the scoring caches behind one tenant-isolated facade.
type Manager struct {
	Mu           sync.RWMutex
	LastAccessed map[string]time.Time

	scoresStore   *stores.ScoresStore
	profilesStore *stores.ProfilesStore
	logger        *logging.ChanneledLogger
}

func NewManager(logger *logging.ChanneledLogger) *Manager {
	if logger != nil {
		logger.Cache().Info("Initializing cache manager", "stores", []string{"scores", "profiles"})
	}

	return &Manager{
		LastAccessed:  make(map[string]time.Time),
		scoresStore:   stores.NewScoresStore(logger),
		profilesStore: stores.NewProfilesStore(logger),
		logger:        logger,
	}
}

// InitializeTenant prepares all stores for a tenant.
func (m *Manager) InitializeTenant(tenantID string) {
	m.scoresStore.InitializeTenant(tenantID)
	m.profilesStore.InitializeTenant(tenantID)
	m.updateTenantAccessTime(tenantID)
}

// Scores returns the session score store.
func (m *Manager) Scores() interfaces.ScoreStore {
	return m.scoresStore
}

// Profiles returns the per-session trait profile cache.
func (m *Manager) Profiles() interfaces.ProfileCache {
	return m.profilesStore
}

func (m *Manager) updateTenantAccessTime(tenantID string) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.LastAccessed[tenantID] = time.Now().UTC()
}
