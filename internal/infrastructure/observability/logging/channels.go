// Package logging provides structured logging channels for SignalStack
// operations with multi-tenant support.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Channel represents a logical logging channel for different system components
type Channel string

const (
	// System channels
	ChannelSystem   Channel = "system"   // General system operations
	ChannelStartup  Channel = "startup"  // Application startup and initialization
	ChannelShutdown Channel = "shutdown" // Application shutdown and cleanup

	// Business logic channels
	ChannelIngest       Channel = "ingest"       // Event batch ingestion
	ChannelScoring      Channel = "scoring"      // Score computation
	ChannelIntervention Channel = "intervention" // Intervention selection and outcomes
	ChannelAggregation  Channel = "aggregation"  // Offline profile aggregation
	ChannelAuth         Channel = "auth"         // Ops authentication

	// Infrastructure channels
	ChannelCache    Channel = "cache"    // Score store operations
	ChannelDatabase Channel = "database" // Database operations and queries
	ChannelTenant   Channel = "tenant"   // Multi-tenant operations
	ChannelExport   Channel = "export"   // Telemetry export sink
	ChannelStream   Channel = "stream"   // Websocket push stream

	// Performance and monitoring channels
	ChannelPerf Channel = "performance" // Performance monitoring and metrics
)

// ChanneledLogger provides structured logging with multiple channels
type ChanneledLogger struct {
	channels   map[Channel]*slog.Logger
	channelsMu sync.RWMutex // guards channels against runtime level changes
	config     *LoggerConfig
	configMu   sync.RWMutex
}

// LoggerConfig contains configuration options for the channeled logger
type LoggerConfig struct {
	OutputToFile    bool   `json:"outputToFile"`
	OutputToConsole bool   `json:"outputToConsole"`
	LogDirectory    string `json:"logDirectory"`

	JSONFormat      bool   `json:"jsonFormat"`
	IncludeSource   bool   `json:"includeSource"`
	TimestampFormat string `json:"timestampFormat"`

	DefaultLevel  slog.Level             `json:"defaultLevel"`
	ChannelLevels map[Channel]slog.Level `json:"channelLevels"`
}

// DefaultLoggerConfig returns a sensible default configuration
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		OutputToFile:    true,
		OutputToConsole: true,
		LogDirectory:    "logs",
		JSONFormat:      true,
		IncludeSource:   false,
		TimestampFormat: time.RFC3339,
		DefaultLevel:    slog.LevelInfo,
		ChannelLevels:   make(map[Channel]slog.Level),
	}
}

// NewChanneledLogger creates a new channeled logger with the given configuration
func NewChanneledLogger(config *LoggerConfig) (*ChanneledLogger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}

	logger := &ChanneledLogger{
		channels: make(map[Channel]*slog.Logger),
		config:   config,
	}

	if config.OutputToFile {
		if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	channels := []Channel{
		ChannelSystem, ChannelStartup, ChannelShutdown,
		ChannelIngest, ChannelScoring, ChannelIntervention, ChannelAggregation, ChannelAuth,
		ChannelCache, ChannelDatabase, ChannelTenant, ChannelExport, ChannelStream,
		ChannelPerf,
	}

	for _, channel := range channels {
		channelLogger, err := logger.createChannelLogger(channel)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger for channel %s: %w", channel, err)
		}
		logger.channels[channel] = channelLogger
	}

	return logger, nil
}

// createChannelLogger creates a slog.Logger for a specific channel
func (cl *ChanneledLogger) createChannelLogger(channel Channel) (*slog.Logger, error) {
	cl.configMu.RLock()
	defer cl.configMu.RUnlock()

	level := cl.config.DefaultLevel
	if channelLevel, exists := cl.config.ChannelLevels[channel]; exists {
		level = channelLevel
	}

	var writers []io.Writer

	if cl.config.OutputToConsole {
		writers = append(writers, os.Stdout)
	}

	if cl.config.OutputToFile {
		filename := fmt.Sprintf("%s.log", string(channel))
		path := filepath.Join(cl.config.LogDirectory, filename)

		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}

		writers = append(writers, file)
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stdout
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cl.config.IncludeSource,
	}

	var handler slog.Handler
	if cl.config.JSONFormat {
		handler = slog.NewJSONHandler(writer, handlerOpts)
	} else {
		handler = slog.NewTextHandler(writer, handlerOpts)
	}

	return slog.New(handler).With(slog.String("channel", string(channel))), nil
}

func (cl *ChanneledLogger) System() *slog.Logger       { return cl.channel(ChannelSystem) }
func (cl *ChanneledLogger) Startup() *slog.Logger      { return cl.channel(ChannelStartup) }
func (cl *ChanneledLogger) Shutdown() *slog.Logger     { return cl.channel(ChannelShutdown) }
func (cl *ChanneledLogger) Ingest() *slog.Logger       { return cl.channel(ChannelIngest) }
func (cl *ChanneledLogger) Scoring() *slog.Logger      { return cl.channel(ChannelScoring) }
func (cl *ChanneledLogger) Intervention() *slog.Logger { return cl.channel(ChannelIntervention) }
func (cl *ChanneledLogger) Aggregation() *slog.Logger  { return cl.channel(ChannelAggregation) }
func (cl *ChanneledLogger) Auth() *slog.Logger         { return cl.channel(ChannelAuth) }
func (cl *ChanneledLogger) Cache() *slog.Logger        { return cl.channel(ChannelCache) }
func (cl *ChanneledLogger) Database() *slog.Logger     { return cl.channel(ChannelDatabase) }
func (cl *ChanneledLogger) Tenant() *slog.Logger       { return cl.channel(ChannelTenant) }
func (cl *ChanneledLogger) Export() *slog.Logger       { return cl.channel(ChannelExport) }
func (cl *ChanneledLogger) Stream() *slog.Logger       { return cl.channel(ChannelStream) }
func (cl *ChanneledLogger) Perf() *slog.Logger         { return cl.channel(ChannelPerf) }

// channel is the single locked read path into the channel map.
func (cl *ChanneledLogger) channel(channel Channel) *slog.Logger {
	cl.channelsMu.RLock()
	defer cl.channelsMu.RUnlock()

	if logger, exists := cl.channels[channel]; exists {
		return logger
	}
	return cl.channels[ChannelSystem]
}

// GetChannel returns a logger for a specific channel
func (cl *ChanneledLogger) GetChannel(channel Channel) *slog.Logger {
	return cl.channel(channel)
}

// WithTenant returns a logger with tenant context
func (cl *ChanneledLogger) WithTenant(channel Channel, tenantID string) *slog.Logger {
	return cl.GetChannel(channel).With(slog.String("tenantId", tenantID))
}

// LogSlowQuery records a database query that exceeded the slow-query
// threshold, with a truncated query text for readability.
func (cl *ChanneledLogger) LogSlowQuery(query string, duration time.Duration, tenantID string) {
	display := query
	if len(display) > 120 {
		display = display[:120] + "..."
	}
	cl.Database().Warn("Slow query detected",
		slog.String("query", display),
		slog.Duration("duration", duration),
		slog.String("tenantId", tenantID),
	)
}

// SetChannelLevel updates the level for one channel at runtime.
func (cl *ChanneledLogger) SetChannelLevel(channel Channel, level slog.Level) error {
	cl.configMu.Lock()
	cl.config.ChannelLevels[channel] = level
	cl.configMu.Unlock()

	logger, err := cl.createChannelLogger(channel)
	if err != nil {
		return err
	}

	cl.channelsMu.Lock()
	cl.channels[channel] = logger
	cl.channelsMu.Unlock()
	return nil
}
