// Package scoring provides the per-session score record and the pure
// computation pipeline that folds event batches into it.
package scoring

import "time"

// ComponentScores are the four positive engagement components, each in [0,1].
type ComponentScores struct {
	Scroll      float64 `json:"scroll"`
	Time        float64 `json:"time"`
	Interaction float64 `json:"interaction"`
	Progress    float64 `json:"progress"`
}

// RiskSignals are the five saturating abandonment signals, each in [0,1].
type RiskSignals struct {
	Idle       float64 `json:"idle"`
	ExitIntent float64 `json:"exitIntent"`
	TabSwitch  float64 `json:"tabSwitch"`
	FormError  float64 `json:"formError"`
	BackNav    float64 `json:"backNav"`
}

// CompositeScores are the three derived scores, each clamped to [0,1].
type CompositeScores struct {
	Engagement      float64 `json:"engagement"`
	AbandonmentRisk float64 `json:"abandonmentRisk"`
	PurchaseIntent  float64 `json:"purchaseIntent"`
}

// Record is the mutable, ephemeral scoring state for one session. It is
// created on the first event batch, updated read-modify-write on every
// subsequent batch, and expires on idle TTL independent of the owning
// session's business lifecycle.
//
// The accumulators are deliberately order-insensitive across batches
// (max, saturating sum, monotonic counters) so that out-of-order or
// duplicated delivery cannot corrupt the derived scores.
type Record struct {
	SessionToken string `json:"sessionToken"`
	FunnelID     string `json:"funnelId"`

	// Identity hints used for trait profile resolution
	Fingerprint string `json:"fingerprint,omitempty"`
	CustomerID  string `json:"customerId,omitempty"`
	Email       string `json:"email,omitempty"`
	Device      string `json:"device,omitempty"` // client-reported form factor, archive fold input

	// Raw accumulators
	MaxScrollDepth   float64        `json:"maxScrollDepth"` // percent, max-of-threshold
	ActiveSeconds    float64        `json:"activeSeconds"`  // saturating sum input
	InteractionCount int            `json:"interactionCount"`
	InteractionKinds map[string]int `json:"interactionKinds"` // interaction type -> count
	MaxStepIndex     int            `json:"maxStepIndex"`
	TotalSteps       int            `json:"totalSteps"`
	CartItems        int            `json:"cartItems"`

	// Risk occurrence counters (monotonic)
	IdleCount       int `json:"idleCount"`
	ExitIntentCount int `json:"exitIntentCount"`
	TabHiddenCount  int `json:"tabHiddenCount"`
	FormErrorCount  int `json:"formErrorCount"`
	BackNavCount    int `json:"backNavCount"`

	// Derived scores
	Components ComponentScores `json:"components"`
	Risks      RiskSignals     `json:"risks"`
	Composites CompositeScores `json:"composites"`

	// Intervention bookkeeping
	LastInterventionKind   string    `json:"lastInterventionKind,omitempty"`
	LastInterventionAt     time.Time `json:"lastInterventionAt,omitempty"`
	InterventionCount      int       `json:"interventionCount"`
	CurrentRecommendation  string    `json:"currentRecommendation,omitempty"`
	RecommendationPriority int       `json:"recommendationPriority"`

	// Weight configuration pinned at session start
	Weights Weights `json:"weights"`

	SessionStart time.Time `json:"sessionStart"`
	LastUpdated  time.Time `json:"lastUpdated"`

	// Version supports optimistic compare-and-swap in the score store.
	// It is owned by the store, not the pipeline.
	Version uint64 `json:"-"`
}

// NewRecord initializes a fresh score record with all components at zero and
// the given weight configuration pinned for the session's lifetime.
func NewRecord(sessionToken, funnelID string, weights Weights, now time.Time) *Record {
	return &Record{
		SessionToken:     sessionToken,
		FunnelID:         funnelID,
		InteractionKinds: make(map[string]int),
		Weights:          weights,
		SessionStart:     now,
		LastUpdated:      now,
	}
}

// Clone returns a deep copy. The score store hands clones to callers so that
// read-modify-write cycles never alias the stored record.
func (r *Record) Clone() *Record {
	clone := *r
	clone.InteractionKinds = make(map[string]int, len(r.InteractionKinds))
	for k, v := range r.InteractionKinds {
		clone.InteractionKinds[k] = v
	}
	return &clone
}

// Expired reports whether the record has been idle past the given TTL.
func (r *Record) Expired(ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(r.LastUpdated) > ttl
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
