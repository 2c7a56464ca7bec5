package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AtRiskMedia/signalstack-go/internal/application/services"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/events"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/interventions"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/caching/manager"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/export"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/funnel"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/signalstack-go/pkg/config"
)

// testRouter wires the scoring endpoints with an injected tenant context,
// bypassing the tenant resolution middleware.
func testRouter(t *testing.T) (*gin.Engine, *tenant.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToFile:    false,
		OutputToConsole: false,
		DefaultLevel:    slog.LevelError,
	})
	require.NoError(t, err)

	perfTracker := performance.NewTracker(nil)
	cacheManager := manager.NewManager(logger)
	cacheManager.InitializeTenant("t1")

	tenantCtx := &tenant.Context{
		TenantID:     "t1",
		Status:       "active",
		Config:       &tenant.Config{TenantID: "t1"},
		Database:     &tenant.Database{TenantID: "t1"},
		CacheManager: cacheManager,
		Logger:       logger,
		PerfTracker:  perfTracker,
	}

	selector := interventions.NewSelector(interventions.DefaultRules(), config.InterventionCooldown, config.TraitHistoryMinimum)
	ingestService := services.NewIngestService(
		services.NewProfileService(logger),
		&funnel.StaticStateClient{},
		selector,
		export.NewSink(logger),
		messaging.NewInterventionBroadcaster(logger),
		logger,
	)

	eventHandlers := NewEventHandlers(ingestService, logger, perfTracker)
	scoreHandlers := NewScoreHandlers(services.NewScoreService(logger), logger, perfTracker)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("tenant", tenantCtx)
		c.Next()
	})
	router.POST("/api/v1/events", eventHandlers.PostEvents)
	router.GET("/api/v1/scores/:sessionToken", scoreHandlers.GetScore)
	return router, tenantCtx
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestPostEventsAcceptsBatch(t *testing.T) {
	router, tenantCtx := testRouter(t)

	recorder := postJSON(t, router, "/api/v1/events", services.BatchRequest{
		SessionToken: "sess-1",
		FunnelID:     "funnel-1",
		Events: []events.RawEvent{
			{Kind: string(events.KindScrollDepth), Value: 50, Timestamp: 1000},
			{Kind: string(events.KindTimeOnPage), Value: 30, Timestamp: 2000},
		},
	})

	require.Equal(t, http.StatusOK, recorder.Code)

	var result services.BatchResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Accepted)
	assert.Zero(t, result.Dropped)

	_, found := tenantCtx.CacheManager.Scores().Get("t1", "sess-1")
	assert.True(t, found)
}

func TestPostEventsRejectsBadBody(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader([]byte("not json")))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestPostEventsOversizedBatchIs413(t *testing.T) {
	router, _ := testRouter(t)

	raw := make([]events.RawEvent, config.MaxEventsPerBatch+1)
	for i := range raw {
		raw[i] = events.RawEvent{Kind: string(events.KindScrollDepth), Value: 10, Timestamp: int64(i + 1)}
	}

	recorder := postJSON(t, router, "/api/v1/events", services.BatchRequest{
		SessionToken: "sess-1",
		Events:       raw,
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, recorder.Code)
}

func TestGetScoreLifecycle(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scores/sess-1", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	postJSON(t, router, "/api/v1/events", services.BatchRequest{
		SessionToken: "sess-1",
		Events: []events.RawEvent{
			{Kind: string(events.KindScrollDepth), Value: 75, Timestamp: 1000},
		},
	})

	req = httptest.NewRequest(http.MethodGet, "/api/v1/scores/sess-1", nil)
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusOK, recorder.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "sess-1", body["sessionToken"])
}
