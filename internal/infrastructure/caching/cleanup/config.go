// Package cleanup provides the background score record eviction worker
package cleanup

import (
	"time"

	"github.com/AtRiskMedia/signalstack-go/pkg/config"
)

// Config holds cleanup worker tunables.
type Config struct {
	CleanupInterval time.Duration
	ScoreRecordTTL  time.Duration
}

// NewConfig builds a cleanup config from the environment-backed defaults.
func NewConfig() *Config {
	return &Config{
		CleanupInterval: config.CleanupInterval,
		ScoreRecordTTL:  config.ScoreRecordTTL,
	}
}
