package telemetry

import (
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/database"
	"github.com/oklog/ulid/v2"
)

// ExportRow is one downstream telemetry event (score snapshot or outcome),
// stored as an opaque JSON payload.
type ExportRow struct {
	ID           string
	SessionToken string
	Kind         string
	Payload      []byte
	CreatedAt    time.Time
}

// SQLExportRepository is the durable backend for the fire-and-forget export
// sink.
type SQLExportRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

func NewSQLExportRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLExportRepository {
	return &SQLExportRepository{
		db:     db,
		logger: logger,
	}
}

// Store writes one export row.
func (r *SQLExportRepository) Store(row *ExportRow) error {
	const query = `
		INSERT INTO export_events (id, session_token, kind, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`

	if row.ID == "" {
		row.ID = ulid.Make().String()
	}

	_, err := r.db.Exec(
		query,
		row.ID,
		row.SessionToken,
		row.Kind,
		string(row.Payload),
		row.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		r.logger.Database().Error("Export event insert failed", "error", err.Error(), "sessionToken", row.SessionToken, "kind", row.Kind)
		return err
	}
	return nil
}

// Count returns the number of stored export events.
func (r *SQLExportRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM export_events`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
