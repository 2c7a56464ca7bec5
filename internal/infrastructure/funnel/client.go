// Package funnel provides read-only access to business funnel state (cart
// contents, step position) owned by the funnel-flow collaborator service.
package funnel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/scoring"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/pkg/config"
)

// StateClient reads per-session funnel state. Implementations must be safe
// to call concurrently.
type StateClient interface {
	GetState(ctx context.Context, sessionToken, funnelID string) (scoring.FunnelState, error)
}

// HTTPStateClient queries the funnel-flow service over HTTP with a strict
// timeout. Any failure degrades to the zero state so scoring keeps working
// without cart or progress signals.
type HTTPStateClient struct {
	baseURL string
	client  *http.Client
	logger  *logging.ChanneledLogger
}

func NewHTTPStateClient(baseURL string, logger *logging.ChanneledLogger) *HTTPStateClient {
	return &HTTPStateClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: config.FunnelLookupTimeout},
		logger:  logger,
	}
}

type stateResponse struct {
	ItemCount  int `json:"itemCount"`
	StepIndex  int `json:"stepIndex"`
	TotalSteps int `json:"totalSteps"`
}

// GetState fetches the session's funnel state. The zero value plus a nil
// error means the lookup degraded; ingestion treats that as "no business
// signals available".
func (c *HTTPStateClient) GetState(ctx context.Context, sessionToken, funnelID string) (scoring.FunnelState, error) {
	if c.baseURL == "" {
		return scoring.FunnelState{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, config.FunnelLookupTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/state?session=%s&funnel=%s",
		c.baseURL, url.QueryEscape(sessionToken), url.QueryEscape(funnelID))

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return scoring.FunnelState{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.System().Warn("Funnel state lookup degraded", "sessionToken", sessionToken, "error", err.Error(), "duration", time.Since(start))
		return scoring.FunnelState{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.System().Warn("Funnel state lookup degraded", "sessionToken", sessionToken, "status", resp.StatusCode)
		return scoring.FunnelState{}, nil
	}

	var body stateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.System().Warn("Funnel state decode failed", "sessionToken", sessionToken, "error", err.Error())
		return scoring.FunnelState{}, nil
	}

	return scoring.FunnelState{
		ItemCount:  body.ItemCount,
		StepIndex:  body.StepIndex,
		TotalSteps: body.TotalSteps,
	}, nil
}

// StaticStateClient serves fixed per-session states. Used in tests and in
// single-service deployments where no funnel-flow collaborator exists.
type StaticStateClient struct {
	States map[string]scoring.FunnelState
}

func (c *StaticStateClient) GetState(_ context.Context, sessionToken, _ string) (scoring.FunnelState, error) {
	if c.States == nil {
		return scoring.FunnelState{}, nil
	}
	return c.States[sessionToken], nil
}
