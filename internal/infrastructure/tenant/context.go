package tenant

import (
	"fmt"

	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/caching/manager"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/funnel"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/performance"
)

// Context carries everything request handlers and services need for one
// tenant: its config, database handle, and the shared cache manager.
// FunnelClient is nil when the tenant config names no funnel-flow endpoint;
// callers fall back to the process-wide client.
type Context struct {
	TenantID     string
	Status       string
	Config       *Config
	Database     *Database
	CacheManager *manager.Manager
	FunnelClient funnel.StateClient
	Logger       *logging.ChanneledLogger
	PerfTracker  *performance.Tracker
}

func (c *Context) Close() error {
	if c.Database != nil {
		return c.Database.Close()
	}
	return nil
}

func (c *Context) String() string {
	return fmt.Sprintf("tenant:%s status:%s db:%s", c.TenantID, c.Status, c.Database.GetConnectionInfo())
}
