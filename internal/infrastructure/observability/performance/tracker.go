package performance

import (
	"fmt"
	"sync"
	"time"
)

// Tracker manages performance markers and provides basic aggregation
type Tracker struct {
	markers map[string]*Marker
	mu      sync.RWMutex
	started time.Time
	config  *TrackerConfig
}

// TrackerConfig contains configuration options for the performance tracker
type TrackerConfig struct {
	MaxMarkers            int           `json:"maxMarkers"`            // Maximum number of markers to retain
	SlowResponseThreshold time.Duration `json:"slowResponseThreshold"` // Operations above this are counted slow
}

// DefaultTrackerConfig returns a sensible default configuration
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxMarkers:            10000,
		SlowResponseThreshold: 500 * time.Millisecond,
	}
}

// NewTracker creates a new performance tracker with the given configuration
func NewTracker(config *TrackerConfig) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}

	return &Tracker{
		markers: make(map[string]*Marker),
		started: time.Now(),
		config:  config,
	}
}

// StartOperation creates and tracks a new performance marker for an operation
func (t *Tracker) StartOperation(operation, tenantID string) *Marker {
	marker := &Marker{
		Operation: operation,
		TenantID:  tenantID,
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
		Success:   true, // Assume success until proven otherwise
	}

	markerID := fmt.Sprintf("%s_%s_%d", tenantID, operation, time.Now().UnixNano())

	t.mu.Lock()
	if len(t.markers) >= t.config.MaxMarkers {
		t.evictOldestLocked()
	}
	t.markers[markerID] = marker
	t.mu.Unlock()

	return marker
}

// Stats summarizes completed operations since the tracker started.
type Stats struct {
	Uptime         time.Duration `json:"uptime"`
	TotalTracked   int           `json:"totalTracked"`
	CompletedCount int           `json:"completedCount"`
	FailureCount   int           `json:"failureCount"`
	SlowCount      int           `json:"slowCount"`
}

// GetStats returns a snapshot of tracker statistics.
func (t *Tracker) GetStats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Stats{
		Uptime:       time.Since(t.started),
		TotalTracked: len(t.markers),
	}
	for _, marker := range t.markers {
		if !marker.Completed {
			continue
		}
		stats.CompletedCount++
		if !marker.Success {
			stats.FailureCount++
		}
		if marker.Duration > t.config.SlowResponseThreshold {
			stats.SlowCount++
		}
	}
	return stats
}

// evictOldestLocked drops the oldest completed marker. Caller holds t.mu.
func (t *Tracker) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, marker := range t.markers {
		if !marker.Completed {
			continue
		}
		if oldestID == "" || marker.StartTime.Before(oldest) {
			oldestID = id
			oldest = marker.StartTime
		}
	}
	if oldestID != "" {
		delete(t.markers, oldestID)
	}
}
