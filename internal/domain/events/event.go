// Package events provides visitor event types and batch validation
package events

import "time"

// Kind identifies the closed set of visitor actions a client may report.
type Kind string

const (
	KindStepTransition   Kind = "STEP_TRANSITION"
	KindScrollDepth      Kind = "SCROLL_DEPTH"
	KindTimeOnPage       Kind = "TIME_ON_PAGE"
	KindProductInteract  Kind = "PRODUCT_INTERACT"
	KindFormFocus        Kind = "FORM_FOCUS"
	KindFormBlur         Kind = "FORM_BLUR"
	KindFormError        Kind = "FORM_ERROR"
	KindPaymentInteract  Kind = "PAYMENT_INTERACT"
	KindExitIntent       Kind = "EXIT_INTENT"
	KindTabHidden        Kind = "TAB_HIDDEN"
	KindTabVisible       Kind = "TAB_VISIBLE"
	KindIdleStart        Kind = "IDLE_START"
	KindIdleEnd          Kind = "IDLE_END"
	KindNavigationBack   Kind = "NAVIGATION_BACK"
	KindCouponApply      Kind = "COUPON_APPLY"
	KindCouponFail       Kind = "COUPON_FAIL"
	KindInterventionSeen Kind = "INTERVENTION_SHOWN"
	KindInterventionHit  Kind = "INTERVENTION_ENGAGED"
	KindInterventionMiss Kind = "INTERVENTION_DISMISSED"

	// KindUnclassified is the forward-compatible pass-through for unknown
	// client kinds. Unclassified events carry zero score weight.
	KindUnclassified Kind = "UNCLASSIFIED"
)

// knownKinds is the closed enumeration used by the validator.
var knownKinds = map[Kind]bool{
	KindStepTransition:   true,
	KindScrollDepth:      true,
	KindTimeOnPage:       true,
	KindProductInteract:  true,
	KindFormFocus:        true,
	KindFormBlur:         true,
	KindFormError:        true,
	KindPaymentInteract:  true,
	KindExitIntent:       true,
	KindTabHidden:        true,
	KindTabVisible:       true,
	KindIdleStart:        true,
	KindIdleEnd:          true,
	KindNavigationBack:   true,
	KindCouponApply:      true,
	KindCouponFail:       true,
	KindInterventionSeen: true,
	KindInterventionHit:  true,
	KindInterventionMiss: true,
}

// Event is one normalized visitor action, always scoped to a session.
// Events are append-only and never mutated after validation.
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Value     float64   `json:"value,omitempty"`  // scroll percent, active seconds, step index
	Detail    string    `json:"detail,omitempty"` // interaction type, form field, intervention class
	Timestamp time.Time `json:"timestamp"`
}

// RawEvent is the wire shape of a single batch entry before validation.
// Timestamps are client-supplied epoch milliseconds.
type RawEvent struct {
	ID        string  `json:"id,omitempty"`
	Kind      string  `json:"kind"`
	Value     float64 `json:"value,omitempty"`
	Detail    string  `json:"detail,omitempty"`
	Timestamp int64   `json:"timestamp"`
}
