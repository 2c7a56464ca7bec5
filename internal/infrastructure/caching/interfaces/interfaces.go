// Package interfaces defines cache store contracts so the backing technology
// stays swappable without touching the scoring pipeline.
package interfaces

import (
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/profiles"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/scoring"
)

// ScoreStore is the expiring keyed store holding one score record per active
// session. Implementations must guarantee read-modify-write atomicity per key
// via optimistic compare-and-swap.
type ScoreStore interface {
	// Get returns a deep copy of the record, or false on miss/expiry.
	Get(tenantID, sessionToken string) (*scoring.Record, bool)

	// Put writes a record unconditionally, assigning a fresh version.
	Put(tenantID string, record *scoring.Record)

	// CompareAndSwap writes the record only if the stored version still
	// matches record.Version. A concurrently expired record resolves to
	// write-wins: the record is recreated fresh, never an error.
	CompareAndSwap(tenantID string, record *scoring.Record) error

	// Remove deletes the record for a session.
	Remove(tenantID, sessionToken string)

	// Sweep evicts records idle past the TTL and returns the evicted
	// records so terminal hooks (archive, recovery email) can run.
	Sweep(tenantID string, ttl time.Duration, now time.Time) []*scoring.Record

	// Tenants lists tenant IDs with initialized caches.
	Tenants() []string

	// Count returns the number of live records for a tenant.
	Count(tenantID string) int
}

// ProfileCache holds trait profiles resolved at session start, cached for the
// session's lifetime. Negative results are cached too, so an anonymous
// session performs the durable lookup only once.
type ProfileCache interface {
	Get(tenantID, sessionToken string) (*profiles.TraitProfile, bool)
	Set(tenantID, sessionToken string, profile *profiles.TraitProfile)
	Remove(tenantID, sessionToken string)
}
