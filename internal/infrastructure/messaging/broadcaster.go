// Package messaging provides the concrete implementation of the intervention
// push broadcaster.
package messaging

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/interventions"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/pkg/config"
)

// InterventionBroadcaster manages tenant-scoped, session-specific push
// channels. The websocket handler owns the transport; the broadcaster only
// fans messages out to the registered channels.
type InterventionBroadcaster struct {
	tenantSessions map[string]map[string][]chan string // tenantId -> sessionToken -> []channels
	mu             sync.Mutex
	logger         *logging.ChanneledLogger
}

var (
	globalBroadcaster *InterventionBroadcaster
	once              sync.Once
)

// NewInterventionBroadcaster creates the singleton broadcaster instance.
func NewInterventionBroadcaster(logger *logging.ChanneledLogger) *InterventionBroadcaster {
	once.Do(func() {
		globalBroadcaster = &InterventionBroadcaster{
			tenantSessions: make(map[string]map[string][]chan string),
			logger:         logger,
		}
	})
	return globalBroadcaster
}

// AddClient registers a push channel for a session. Returns an error when the
// session already holds the maximum number of stream connections.
func (b *InterventionBroadcaster) AddClient(tenantID, sessionToken string) (chan string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tenantSessions[tenantID] == nil {
		b.tenantSessions[tenantID] = make(map[string][]chan string)
	}
	if len(b.tenantSessions[tenantID][sessionToken]) >= config.MaxStreamConnections {
		return nil, fmt.Errorf("stream connection limit reached for session")
	}

	ch := make(chan string, 10)
	b.tenantSessions[tenantID][sessionToken] = append(b.tenantSessions[tenantID][sessionToken], ch)

	b.logger.Stream().Debug("Stream client registered", "tenantId", tenantID, "sessionToken", sessionToken)
	return ch, nil
}

// RemoveClient unregisters a push channel.
func (b *InterventionBroadcaster) RemoveClient(ch chan string, tenantID, sessionToken string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if tenantSessions, exists := b.tenantSessions[tenantID]; exists {
		if sessionClients, exists := tenantSessions[sessionToken]; exists {
			newClients := make([]chan string, 0, len(sessionClients))
			for _, client := range sessionClients {
				if client != ch {
					newClients = append(newClients, client)
				}
			}
			tenantSessions[sessionToken] = newClients

			if len(tenantSessions[sessionToken]) == 0 {
				delete(tenantSessions, sessionToken)
			}
		}
		if len(tenantSessions) == 0 {
			delete(b.tenantSessions, tenantID)
		}
	}
	b.logger.Stream().Debug("Stream client unregistered", "tenantId", tenantID, "sessionToken", sessionToken)
}

// GetSessionConnectionCount returns the connection count for one session.
func (b *InterventionBroadcaster) GetSessionConnectionCount(tenantID, sessionToken string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if tenantSessions, exists := b.tenantSessions[tenantID]; exists {
		return len(tenantSessions[sessionToken])
	}
	return 0
}

// BroadcastRecommendation pushes a freshly selected intervention to every
// connection of the session. Slow consumers lose messages rather than block
// ingestion.
func (b *InterventionBroadcaster) BroadcastRecommendation(tenantID, sessionToken string, rec *interventions.Recommendation) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Stream().Error("Panic recovered in BroadcastRecommendation", "error", r, "tenantId", tenantID, "sessionToken", sessionToken)
		}
	}()

	payload, err := json.Marshal(rec)
	if err != nil {
		b.logger.Stream().Error("Failed to encode recommendation", "error", err.Error(), "sessionToken", sessionToken)
		return
	}
	message := string(payload)

	b.mu.Lock()
	defer b.mu.Unlock()

	if tenantSessions, exists := b.tenantSessions[tenantID]; exists {
		for _, ch := range tenantSessions[sessionToken] {
			select {
			case ch <- message:
			default:
				b.logger.Stream().Warn("Stream channel full, message dropped", "tenantId", tenantID, "sessionToken", sessionToken)
			}
		}
	}
}
