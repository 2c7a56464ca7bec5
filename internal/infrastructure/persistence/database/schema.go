package database

import (
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS trait_profiles (
		visitor_id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		session_count INTEGER NOT NULL DEFAULT 0,
		purchase_count INTEGER NOT NULL DEFAULT 0,
		abandon_count INTEGER NOT NULL DEFAULT 0,
		preferred_device TEXT,
		preferred_hour INTEGER,
		preferred_day INTEGER,
		abandonment_rate REAL NOT NULL DEFAULT 0,
		typical_abandon_stage INTEGER NOT NULL DEFAULT 0,
		responds_to_discount INTEGER NOT NULL DEFAULT 0,
		responds_to_urgency INTEGER NOT NULL DEFAULT 0,
		responds_to_social_proof INTEGER NOT NULL DEFAULT 0,
		discount_shown INTEGER NOT NULL DEFAULT 0,
		urgency_shown INTEGER NOT NULL DEFAULT 0,
		social_proof_shown INTEGER NOT NULL DEFAULT 0,
		discount_engaged INTEGER NOT NULL DEFAULT 0,
		urgency_engaged INTEGER NOT NULL DEFAULT 0,
		social_proof_engaged INTEGER NOT NULL DEFAULT 0,
		first_seen TEXT NOT NULL,
		last_aggregated TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS session_archive (
		id TEXT PRIMARY KEY,
		session_token TEXT NOT NULL,
		funnel_id TEXT,
		visitor_id TEXT,
		identity_source TEXT,
		email TEXT,
		device TEXT,
		engagement REAL NOT NULL DEFAULT 0,
		abandonment_risk REAL NOT NULL DEFAULT 0,
		purchase_intent REAL NOT NULL DEFAULT 0,
		max_step_index INTEGER NOT NULL DEFAULT 0,
		total_steps INTEGER NOT NULL DEFAULT 0,
		cart_items INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		session_start TEXT NOT NULL,
		archived_at TEXT NOT NULL,
		aggregated INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_archive_aggregated
		ON session_archive(aggregated, archived_at)`,
	`CREATE INDEX IF NOT EXISTS idx_session_archive_visitor
		ON session_archive(visitor_id)`,
	`CREATE TABLE IF NOT EXISTS intervention_outcomes (
		id TEXT PRIMARY KEY,
		session_token TEXT NOT NULL,
		visitor_id TEXT,
		class TEXT NOT NULL,
		framing TEXT NOT NULL,
		outcome TEXT NOT NULL,
		occurred_at TEXT NOT NULL,
		aggregated INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_intervention_outcomes_aggregated
		ON intervention_outcomes(aggregated, occurred_at)`,
	`CREATE TABLE IF NOT EXISTS export_events (
		id TEXT PRIMARY KEY,
		session_token TEXT NOT NULL,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
}

// EnsureSchema creates the tenant's tables if they do not exist. Safe to run
// on every activation.
func EnsureSchema(db *DB, tenantID string, logger *logging.ChanneledLogger) error {
	start := time.Now()
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			logger.Database().Error("Schema statement failed", "error", err.Error(), "tenantId", tenantID)
			return err
		}
	}
	logger.Database().Debug("Schema verified", "tenantId", tenantID, "duration", time.Since(start))
	return nil
}
