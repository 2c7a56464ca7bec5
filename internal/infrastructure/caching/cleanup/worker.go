package cleanup

import (
	"context"
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/scoring"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/caching/manager"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
)

// ExpiryHook receives records evicted by TTL so terminal processing
// (session archive, recovery email) can run out of band. Hooks must not
// block; slow work belongs on the hook's own goroutines.
type ExpiryHook interface {
	OnExpired(tenantID string, records []*scoring.Record)
}

// Worker handles background TTL eviction of idle score records.
type Worker struct {
	cache  *manager.Manager
	config *Config
	hooks  []ExpiryHook
	logger *logging.ChanneledLogger
}

// NewWorker creates a new cleanup worker with injected configuration
func NewWorker(cache *manager.Manager, config *Config, logger *logging.ChanneledLogger, hooks ...ExpiryHook) *Worker {
	return &Worker{
		cache:  cache,
		config: config,
		hooks:  hooks,
		logger: logger,
	}
}

// Start begins the cleanup worker routine, using the configured interval
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	w.logger.Cache().Info("Score cleanup worker started",
		"interval", w.config.CleanupInterval,
		"recordTTL", w.config.ScoreRecordTTL)

	for {
		select {
		case <-ctx.Done():
			w.logger.Cache().Info("Score cleanup worker stopping")
			return
		case <-ticker.C:
			w.performCleanup(ctx)
		}
	}
}

// performCleanup sweeps every tenant's score cache once.
func (w *Worker) performCleanup(ctx context.Context) {
	start := time.Now()
	now := time.Now().UTC()

	var totalEvicted int
	for _, tenantID := range w.cache.Scores().Tenants() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		evicted := w.cache.Scores().Sweep(tenantID, w.config.ScoreRecordTTL, now)
		if len(evicted) == 0 {
			continue
		}
		totalEvicted += len(evicted)

		for _, record := range evicted {
			w.cache.Profiles().Remove(tenantID, record.SessionToken)
		}
		for _, hook := range w.hooks {
			hook.OnExpired(tenantID, evicted)
		}
	}

	if totalEvicted > 0 {
		w.logger.Cache().Info("Score cleanup finished",
			"evicted", totalEvicted,
			"duration", time.Since(start))
	}
}
