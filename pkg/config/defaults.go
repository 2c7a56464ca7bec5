// Package config provides centralized default values for SignalStack
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseFloat(valStr, 64); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%g (default: %g)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Memory Management
	MaxTenants           int
	MaxRecordsPerTenant  int
	MaxEventsPerBatch    int
	MaxStreamConnections int

	// Database Pool
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	DBConnMaxIdleMinutes     int
	SlowQueryThreshold       time.Duration

	// Score Record Lifecycle
	ScoreRecordTTL  time.Duration
	CleanupInterval time.Duration

	// Engagement weights (must sum to 1.0; pinned per session at record creation)
	WeightScroll      float64
	WeightTime        float64
	WeightInteraction float64
	WeightProgress    float64

	// Abandonment risk weights (must sum to 1.0)
	WeightIdle       float64
	WeightExitIntent float64
	WeightTabSwitch  float64
	WeightFormError  float64
	WeightBackNav    float64

	// Intervention Selection
	InterventionCooldown time.Duration
	TraitHistoryMinimum  int

	// Dependency Lookups
	ProfileLookupTimeout time.Duration
	FunnelLookupTimeout  time.Duration

	// Export Sink
	ExportBufferSize int

	// Profile Aggregation
	AggregationInterval time.Duration
	AggregationBatch    int

	// Recovery Email
	RecoveryEmailEnabled bool
	RecoveryIntentFloor  float64

	// Ops Authentication
	OpsTokenLifetime time.Duration
)

func init() {
	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Memory Management
	MaxTenants = getEnvInt("MAX_TENANTS", 5)
	MaxRecordsPerTenant = getEnvInt("MAX_RECORDS_PER_TENANT", 5000)
	MaxEventsPerBatch = getEnvInt("MAX_EVENTS_PER_BATCH", 200)
	MaxStreamConnections = getEnvInt("MAX_STREAM_CONNECTIONS", 3)

	// Database Pool
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	DBConnMaxIdleMinutes = getEnvInt("DB_CONN_MAX_IDLE_MINUTES", 10)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 250*time.Millisecond)

	// Score Record Lifecycle
	ScoreRecordTTL = getEnvDuration("SCORE_RECORD_TTL", 30*time.Minute)
	CleanupInterval = getEnvDuration("SCORE_CLEANUP_INTERVAL", 5*time.Minute)

	// Engagement weights
	WeightScroll = getEnvFloat("WEIGHT_SCROLL", 0.20)
	WeightTime = getEnvFloat("WEIGHT_TIME", 0.25)
	WeightInteraction = getEnvFloat("WEIGHT_INTERACTION", 0.30)
	WeightProgress = getEnvFloat("WEIGHT_PROGRESS", 0.25)

	// Abandonment risk weights
	WeightIdle = getEnvFloat("WEIGHT_IDLE", 0.20)
	WeightExitIntent = getEnvFloat("WEIGHT_EXIT_INTENT", 0.25)
	WeightTabSwitch = getEnvFloat("WEIGHT_TAB_SWITCH", 0.15)
	WeightFormError = getEnvFloat("WEIGHT_FORM_ERROR", 0.25)
	WeightBackNav = getEnvFloat("WEIGHT_BACK_NAV", 0.15)

	// Intervention Selection
	InterventionCooldown = getEnvDuration("INTERVENTION_COOLDOWN", 2*time.Minute)
	TraitHistoryMinimum = getEnvInt("TRAIT_HISTORY_MINIMUM", 3)

	// Dependency Lookups
	ProfileLookupTimeout = getEnvDuration("PROFILE_LOOKUP_TIMEOUT", 250*time.Millisecond)
	FunnelLookupTimeout = getEnvDuration("FUNNEL_LOOKUP_TIMEOUT", 250*time.Millisecond)

	// Export Sink
	ExportBufferSize = getEnvInt("EXPORT_BUFFER_SIZE", 1024)

	// Profile Aggregation
	AggregationInterval = getEnvDuration("AGGREGATION_INTERVAL", 15*time.Minute)
	AggregationBatch = getEnvInt("AGGREGATION_BATCH", 500)

	// Recovery Email
	RecoveryEmailEnabled = getEnvString("RECOVERY_EMAIL_ENABLED", "false") == "true"
	RecoveryIntentFloor = getEnvFloat("RECOVERY_INTENT_FLOOR", 0.6)

	// Ops Authentication
	OpsTokenLifetime = getEnvDuration("OPS_TOKEN_LIFETIME", 24*time.Hour)
}
