package telemetry

import (
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/interventions"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/signalstack-go/pkg/config"
	"github.com/oklog/ulid/v2"
)

// OutcomeRow is one reported intervention outcome.
type OutcomeRow struct {
	ID           string
	SessionToken string
	VisitorID    string
	Class        interventions.Class
	Framing      interventions.Framing
	Outcome      interventions.Outcome
	OccurredAt   time.Time
}

// SQLOutcomeRepository persists intervention outcomes for later aggregation
// into responsiveness traits.
type SQLOutcomeRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

func NewSQLOutcomeRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLOutcomeRepository {
	return &SQLOutcomeRepository{
		db:     db,
		logger: logger,
	}
}

// Store writes one outcome row.
func (r *SQLOutcomeRepository) Store(row *OutcomeRow) error {
	const query = `
		INSERT INTO intervention_outcomes (id, session_token, visitor_id, class, framing, outcome, occurred_at, aggregated)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)`

	start := time.Now()
	if row.ID == "" {
		row.ID = ulid.Make().String()
	}

	_, err := r.db.Exec(
		query,
		row.ID,
		row.SessionToken,
		row.VisitorID,
		string(row.Class),
		string(row.Framing),
		string(row.Outcome),
		row.OccurredAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		r.logger.Database().Error("Outcome insert failed", "error", err.Error(), "sessionToken", row.SessionToken)
		return err
	}

	duration := time.Since(start)
	r.logger.Database().Debug("Intervention outcome recorded", "sessionToken", row.SessionToken, "outcome", string(row.Outcome), "duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration, "system")
	}
	return nil
}

// FindUnaggregated returns up to limit outcomes not yet folded into trait
// profiles, oldest first.
func (r *SQLOutcomeRepository) FindUnaggregated(limit int) ([]*OutcomeRow, error) {
	const query = `
		SELECT id, session_token, visitor_id, class, framing, outcome, occurred_at
		FROM intervention_outcomes
		WHERE aggregated = 0
		ORDER BY occurred_at ASC
		LIMIT ?`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		r.logger.Database().Error("Failed to load unaggregated outcomes", "error", err.Error())
		return nil, err
	}
	defer rows.Close()

	var outcomes []*OutcomeRow
	for rows.Next() {
		var o OutcomeRow
		var class, framing, outcome, occurredAtStr string

		if err := rows.Scan(&o.ID, &o.SessionToken, &o.VisitorID, &class, &framing, &outcome, &occurredAtStr); err != nil {
			return nil, err
		}
		o.Class = interventions.Class(class)
		o.Framing = interventions.Framing(framing)
		o.Outcome = interventions.Outcome(outcome)
		if o.OccurredAt, err = time.Parse(time.RFC3339, occurredAtStr); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// MarkAggregated flags outcomes as folded.
func (r *SQLOutcomeRepository) MarkAggregated(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE intervention_outcomes SET aggregated = 1 WHERE id = ?`)
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
