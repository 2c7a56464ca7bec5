// Package export implements the fire-and-forget telemetry sink. Submissions
// never block ingestion; when the buffer is full the snapshot is dropped and
// counted.
package export

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/interventions"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/scoring"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/telemetry"
	"github.com/AtRiskMedia/signalstack-go/pkg/config"
)

const (
	KindScoreSnapshot = "score_snapshot"
	KindOutcome       = "intervention_outcome"
)

// item is one queued export, bound to its tenant's repository so the worker
// never touches the tenant manager.
type item struct {
	tenantID string
	repo     *telemetry.SQLExportRepository
	row      *telemetry.ExportRow
}

// Sink drains a bounded buffer into the per-tenant export_events table.
type Sink struct {
	buffer  chan item
	logger  *logging.ChanneledLogger
	dropped atomic.Uint64
	written atomic.Uint64
	wg      sync.WaitGroup
}

func NewSink(logger *logging.ChanneledLogger) *Sink {
	return &Sink{
		buffer: make(chan item, config.ExportBufferSize),
		logger: logger,
	}
}

// Start launches the drain worker. It stops when ctx is cancelled, after
// draining whatever is already buffered.
func (s *Sink) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Export().Info("Export sink started", "bufferSize", config.ExportBufferSize)
		for {
			select {
			case <-ctx.Done():
				s.drain()
				s.logger.Export().Info("Export sink stopped", "written", s.written.Load(), "dropped", s.dropped.Load())
				return
			case it := <-s.buffer:
				s.write(it)
			}
		}
	}()
}

func (s *Sink) drain() {
	for {
		select {
		case it := <-s.buffer:
			s.write(it)
		default:
			return
		}
	}
}

func (s *Sink) write(it item) {
	if err := it.repo.Store(it.row); err != nil {
		s.logger.Export().Error("Export write failed", "error", err.Error(), "tenantId", it.tenantID, "kind", it.row.Kind)
		return
	}
	s.written.Add(1)
}

// SubmitScoreSnapshot queues a score record snapshot. Failure to queue is
// invisible to the caller beyond the dropped counter.
func (s *Sink) SubmitScoreSnapshot(tenantID string, repo *telemetry.SQLExportRepository, record *scoring.Record) {
	payload, err := json.Marshal(record)
	if err != nil {
		s.logger.Export().Error("Failed to encode score snapshot", "error", err.Error(), "sessionToken", record.SessionToken)
		return
	}
	s.submit(item{
		tenantID: tenantID,
		repo:     repo,
		row: &telemetry.ExportRow{
			SessionToken: record.SessionToken,
			Kind:         KindScoreSnapshot,
			Payload:      payload,
			CreatedAt:    time.Now().UTC(),
		},
	})
}

// SubmitOutcome queues an intervention outcome event.
func (s *Sink) SubmitOutcome(tenantID string, repo *telemetry.SQLExportRepository, sessionToken string, class interventions.Class, framing interventions.Framing, outcome interventions.Outcome) {
	payload, err := json.Marshal(map[string]string{
		"sessionToken": sessionToken,
		"class":        string(class),
		"framing":      string(framing),
		"outcome":      string(outcome),
	})
	if err != nil {
		return
	}
	s.submit(item{
		tenantID: tenantID,
		repo:     repo,
		row: &telemetry.ExportRow{
			SessionToken: sessionToken,
			Kind:         KindOutcome,
			Payload:      payload,
			CreatedAt:    time.Now().UTC(),
		},
	})
}

func (s *Sink) submit(it item) {
	select {
	case s.buffer <- it:
	default:
		dropped := s.dropped.Add(1)
		s.logger.Export().Warn("Export buffer full, snapshot dropped", "tenantId", it.tenantID, "totalDropped", dropped)
	}
}

// Stats reports sink counters for the ops surface.
func (s *Sink) Stats() map[string]uint64 {
	return map[string]uint64{
		"written": s.written.Load(),
		"dropped": s.dropped.Load(),
		"queued":  uint64(len(s.buffer)),
	}
}

// Wait blocks until the drain worker has exited.
func (s *Sink) Wait() {
	s.wg.Wait()
}
