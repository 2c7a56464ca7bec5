// Package profiles provides durable cross-session visitor trait summaries.
package profiles

import "time"

// IdentitySource records how a visitor was recognized.
type IdentitySource string

const (
	SourceFingerprint IdentitySource = "fingerprint"
	SourceCustomerID  IdentitySource = "customer_id"
	SourceEmail       IdentitySource = "email"
)

// Identity is a recognized visitor identity. Resolution priority is
// fingerprint, then known customer id, then captured email; first match wins.
type Identity struct {
	VisitorID string
	Source    IdentitySource
}

// ResolveIdentity picks the visitor identity from the available hints.
// Returns false when the visitor is anonymous.
func ResolveIdentity(fingerprint, customerID, email string) (Identity, bool) {
	switch {
	case fingerprint != "":
		return Identity{VisitorID: fingerprint, Source: SourceFingerprint}, true
	case customerID != "":
		return Identity{VisitorID: customerID, Source: SourceCustomerID}, true
	case email != "":
		return Identity{VisitorID: email, Source: SourceEmail}, true
	}
	return Identity{}, false
}

// TraitProfile is the durable, cross-session visitor summary. It is written
// only by the offline aggregator and is read-only input to live scoring.
// Profiles are never hard-deleted, only statistically updated.
type TraitProfile struct {
	VisitorID string         `json:"visitorId"`
	Source    IdentitySource `json:"source"`

	// Running counts
	SessionCount  int `json:"sessionCount"`
	PurchaseCount int `json:"purchaseCount"`
	AbandonCount  int `json:"abandonCount"`

	// Learned preferences
	PreferredDevice string       `json:"preferredDevice,omitempty"`
	PreferredHour   int          `json:"preferredHour"` // 0-23 UTC
	PreferredDay    time.Weekday `json:"preferredDay"`

	// Abandonment history
	AbandonmentRate     float64 `json:"abandonmentRate"`
	TypicalAbandonStage int     `json:"typicalAbandonStage"`

	// Intervention responsiveness. The *Shown counts are the supporting
	// history behind each flag; a flag only gates selection once its shown
	// count reaches the configured minimum.
	RespondsToDiscount    bool `json:"respondsToDiscount"`
	RespondsToUrgency     bool `json:"respondsToUrgency"`
	RespondsToSocialProof bool `json:"respondsToSocialProof"`
	DiscountShown         int  `json:"discountShown"`
	UrgencyShown          int  `json:"urgencyShown"`
	SocialProofShown      int  `json:"socialProofShown"`
	DiscountEngaged       int  `json:"discountEngaged"`
	UrgencyEngaged        int  `json:"urgencyEngaged"`
	SocialProofEngaged    int  `json:"socialProofEngaged"`

	FirstSeen      time.Time `json:"firstSeen"`
	LastAggregated time.Time `json:"lastAggregated"`
}

// HasHistory reports whether the responsiveness flag for the given shown
// count is backed by enough observed outcomes to act as a suppression gate.
func HasHistory(shown, minimum int) bool {
	return shown >= minimum
}
