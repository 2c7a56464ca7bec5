// Package telemetry provides the SQL-based implementations of the session
// archive, intervention outcome, and export event repositories.
package telemetry

import (
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/signalstack-go/pkg/config"
	"github.com/oklog/ulid/v2"
)

// ArchivedSession is one expired session's final state, written at TTL
// eviction and consumed by the offline aggregator.
type ArchivedSession struct {
	ID              string
	SessionToken    string
	FunnelID        string
	VisitorID       string
	IdentitySource  string
	Email           string
	Device          string
	Engagement      float64
	AbandonmentRisk float64
	PurchaseIntent  float64
	MaxStepIndex    int
	TotalSteps      int
	CartItems       int
	Completed       bool
	SessionStart    time.Time
	ArchivedAt      time.Time
}

// SQLArchiveRepository persists expired session snapshots.
type SQLArchiveRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

func NewSQLArchiveRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLArchiveRepository {
	return &SQLArchiveRepository{
		db:     db,
		logger: logger,
	}
}

// Store writes one archived session row.
func (r *SQLArchiveRepository) Store(session *ArchivedSession) error {
	const query = `
		INSERT INTO session_archive (id, session_token, funnel_id, visitor_id, identity_source, email, device,
		                             engagement, abandonment_risk, purchase_intent,
		                             max_step_index, total_steps, cart_items, completed,
		                             session_start, archived_at, aggregated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`

	start := time.Now()
	if session.ID == "" {
		session.ID = ulid.Make().String()
	}

	_, err := r.db.Exec(
		query,
		session.ID,
		session.SessionToken,
		session.FunnelID,
		session.VisitorID,
		session.IdentitySource,
		session.Email,
		session.Device,
		session.Engagement,
		session.AbandonmentRisk,
		session.PurchaseIntent,
		session.MaxStepIndex,
		session.TotalSteps,
		session.CartItems,
		boolToInt(session.Completed),
		session.SessionStart.UTC().Format(time.RFC3339),
		session.ArchivedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		r.logger.Database().Error("Session archive insert failed", "error", err.Error(), "sessionToken", session.SessionToken)
		return err
	}

	duration := time.Since(start)
	r.logger.Database().Debug("Session archived", "sessionToken", session.SessionToken, "visitorId", session.VisitorID, "duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration, "system")
	}
	return nil
}

// FindUnaggregated returns up to limit archived sessions not yet folded into
// trait profiles, oldest first.
func (r *SQLArchiveRepository) FindUnaggregated(limit int) ([]*ArchivedSession, error) {
	const query = `
		SELECT id, session_token, funnel_id, visitor_id, identity_source, email, device,
		       engagement, abandonment_risk, purchase_intent,
		       max_step_index, total_steps, cart_items, completed,
		       session_start, archived_at
		FROM session_archive
		WHERE aggregated = 0
		ORDER BY archived_at ASC
		LIMIT ?`

	start := time.Now()
	rows, err := r.db.Query(query, limit)
	if err != nil {
		r.logger.Database().Error("Failed to load unaggregated sessions", "error", err.Error())
		return nil, err
	}
	defer rows.Close()

	var sessions []*ArchivedSession
	for rows.Next() {
		var s ArchivedSession
		var completed int
		var sessionStartStr, archivedAtStr string

		if err := rows.Scan(
			&s.ID, &s.SessionToken, &s.FunnelID, &s.VisitorID, &s.IdentitySource, &s.Email, &s.Device,
			&s.Engagement, &s.AbandonmentRisk, &s.PurchaseIntent,
			&s.MaxStepIndex, &s.TotalSteps, &s.CartItems, &completed,
			&sessionStartStr, &archivedAtStr,
		); err != nil {
			return nil, err
		}
		s.Completed = completed != 0
		if s.SessionStart, err = time.Parse(time.RFC3339, sessionStartStr); err != nil {
			return nil, err
		}
		if s.ArchivedAt, err = time.Parse(time.RFC3339, archivedAtStr); err != nil {
			return nil, err
		}
		sessions = append(sessions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration, "system")
	}
	return sessions, nil
}

// MarkAggregated flags archived sessions as folded so a re-run of the
// aggregator never double-counts them.
func (r *SQLArchiveRepository) MarkAggregated(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE session_archive SET aggregated = 1 WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
