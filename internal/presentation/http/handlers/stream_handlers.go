package handlers

import (
	"net/http"
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamWriteWait = 10 * time.Second
	streamPingEvery = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the CORS middleware in front of
	// the upgrade; the handshake itself accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandlers contains the websocket intervention push handler
type StreamHandlers struct {
	broadcaster *messaging.InterventionBroadcaster
	logger      *logging.ChanneledLogger
}

// NewStreamHandlers creates stream handlers with injected dependencies
func NewStreamHandlers(broadcaster *messaging.InterventionBroadcaster, logger *logging.ChanneledLogger) *StreamHandlers {
	return &StreamHandlers{
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// GetStream upgrades the connection and pushes intervention recommendations
// for one session until the client disconnects.
func (h *StreamHandlers) GetStream(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}
	sessionToken := c.Param("sessionToken")
	if sessionToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionToken is required"})
		return
	}

	ch, err := h.broadcaster.AddClient(tenantCtx.TenantID, sessionToken)
	if err != nil {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.broadcaster.RemoveClient(ch, tenantCtx.TenantID, sessionToken)
		h.logger.Stream().Error("Websocket upgrade failed", "tenantId", tenantCtx.TenantID, "error", err.Error())
		return
	}
	defer func() {
		h.broadcaster.RemoveClient(ch, tenantCtx.TenantID, sessionToken)
		conn.Close()
	}()

	h.logger.Stream().Info("Stream opened", "tenantId", tenantCtx.TenantID, "sessionToken", sessionToken)

	// Reader goroutine: we never expect client messages, but reading is how
	// close frames are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(streamPingEvery)
	defer pingTicker.Stop()

	for {
		select {
		case <-done:
			h.logger.Stream().Info("Stream closed by client", "tenantId", tenantCtx.TenantID, "sessionToken", sessionToken)
			return
		case message := <-ch:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
				h.logger.Stream().Warn("Stream write failed", "tenantId", tenantCtx.TenantID, "error", err.Error())
				return
			}
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
