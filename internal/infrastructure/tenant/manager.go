package tenant

import (
	"fmt"
	"sync"

	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/caching/manager"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/funnel"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/signalstack-go/pkg/config"
)

// Manager owns the set of activated tenant contexts. Contexts are created
// lazily on first request and reused for the life of the process.
type Manager struct {
	contexts     map[string]*Context
	mu           sync.RWMutex
	tenantLocks  sync.Map // tenantID -> *sync.Mutex, serializes activation
	cacheManager *manager.Manager
	logger       *logging.ChanneledLogger
	perfTracker  *performance.Tracker
}

func NewManager(cacheManager *manager.Manager, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *Manager {
	return &Manager{
		contexts:     make(map[string]*Context),
		cacheManager: cacheManager,
		logger:       logger,
		perfTracker:  perfTracker,
	}
}

// NewContextFromID returns the activated context for a tenant, creating it
// on first use. Activation of the same tenant is serialized; different
// tenants activate concurrently.
func (m *Manager) NewContextFromID(tenantID string) (*Context, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant ID is required")
	}

	m.mu.RLock()
	ctx, exists := m.contexts[tenantID]
	m.mu.RUnlock()
	if exists {
		return ctx, nil
	}

	lockVal, _ := m.tenantLocks.LoadOrStore(tenantID, &sync.Mutex{})
	tenantLock := lockVal.(*sync.Mutex)
	tenantLock.Lock()
	defer tenantLock.Unlock()

	// Double-check after acquiring the tenant lock
	m.mu.RLock()
	ctx, exists = m.contexts[tenantID]
	m.mu.RUnlock()
	if exists {
		return ctx, nil
	}

	m.mu.RLock()
	atCapacity := len(m.contexts) >= config.MaxTenants
	m.mu.RUnlock()
	if atCapacity {
		return nil, fmt.Errorf("tenant capacity reached (%d)", config.MaxTenants)
	}

	ctx, err := m.createContext(tenantID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.contexts[tenantID] = ctx
	m.mu.Unlock()

	m.logger.Tenant().Info("Tenant activated", "tenantId", tenantID, "database", ctx.Database.GetConnectionInfo())
	return ctx, nil
}

func (m *Manager) createContext(tenantID string) (*Context, error) {
	cfg, err := LoadTenantConfig(tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load config for tenant %s: %w", tenantID, err)
	}

	db, err := NewDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database for tenant %s: %w", tenantID, err)
	}

	if err := database.EnsureSchema(database.NewFromConn(db.Conn), tenantID, m.logger); err != nil {
		return nil, fmt.Errorf("failed to verify schema for tenant %s: %w", tenantID, err)
	}

	m.cacheManager.InitializeTenant(tenantID)

	var funnelClient funnel.StateClient
	if cfg.FunnelStateURL != "" {
		funnelClient = funnel.NewHTTPStateClient(cfg.FunnelStateURL, m.logger)
	}

	return &Context{
		TenantID:     tenantID,
		Status:       "active",
		Config:       cfg,
		Database:     db,
		CacheManager: m.cacheManager,
		FunnelClient: funnelClient,
		Logger:       m.logger,
		PerfTracker:  m.perfTracker,
	}, nil
}

// PreActivateAllTenants activates every registered tenant at startup so the
// first request never pays activation latency.
func (m *Manager) PreActivateAllTenants() error {
	registry, err := LoadTenantRegistry()
	if err != nil {
		return fmt.Errorf("failed to load tenant registry: %w", err)
	}

	activated := 0
	for tenantID, info := range registry.Tenants {
		if info.Status == "inactive" {
			continue
		}
		if _, err := m.NewContextFromID(tenantID); err != nil {
			m.logger.Tenant().Error("Tenant pre-activation failed", "tenantId", tenantID, "error", err)
			continue
		}
		activated++
	}

	m.logger.Startup().Info("Tenant pre-activation complete", "registered", len(registry.Tenants), "activated", activated)
	return nil
}

func (m *Manager) GetActiveTenantIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.contexts))
	for id := range m.contexts {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) GetActiveTenantCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.contexts)
}

func (m *Manager) GetCacheManager() *manager.Manager {
	return m.cacheManager
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for tenantID, ctx := range m.contexts {
		if err := ctx.Close(); err != nil {
			m.logger.Shutdown().Error("Failed to close tenant context", "tenantId", tenantID, "error", err)
		}
	}
	m.contexts = make(map[string]*Context)
	return nil
}
