// Package interventions provides the decision table that turns a score
// vector into at most one recommended intervention.
package interventions

import (
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/profiles"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/scoring"
)

// Class identifies a surface-layer intervention family.
type Class string

const (
	ClassExitIntent  Class = "exit_intent"
	ClassHelpNudge   Class = "help_nudge"
	ClassUpsell      Class = "upsell"
	ClassSocialProof Class = "social_proof"
)

// Framing identifies the persuasion angle an intervention is dressed in.
// A visitor's trait profile can suppress a framing, never force one.
type Framing string

const (
	FramingDiscount    Framing = "discount"
	FramingUrgency     Framing = "urgency"
	FramingSocialProof Framing = "social_proof"
	FramingNeutral     Framing = "neutral"
)

// Outcome is the surface layer's report on what happened to a recommendation.
type Outcome string

const (
	OutcomeShown     Outcome = "shown"
	OutcomeEngaged   Outcome = "engaged"
	OutcomeDismissed Outcome = "dismissed"
)

// Recommendation is the single recommended next action for a session.
type Recommendation struct {
	Class    Class   `json:"class"`
	Framing  Framing `json:"framing"`
	Priority int     `json:"priority"`
	Rule     string  `json:"rule"`
}

// Rule is one (predicate, outcome) pair of the decision table. Rules are data,
// evaluated top to bottom with an explicit first-match-wins contract.
// FallbackFraming, when set, is used if the primary framing is suppressed by
// the visitor's trait profile; when empty, a suppressed rule is skipped and
// evaluation continues down the table.
type Rule struct {
	Name            string
	Class           Class
	Framing         Framing
	FallbackFraming Framing
	Priority        int
	Matches         func(scoring.CompositeScores) bool
}

// DefaultRules returns the stock decision table in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:            "exit-rescue",
			Class:           ClassExitIntent,
			Framing:         FramingDiscount,
			FallbackFraming: FramingNeutral,
			Priority:        1,
			Matches: func(s scoring.CompositeScores) bool {
				return s.AbandonmentRisk > 0.7 && s.PurchaseIntent > 0.4
			},
		},
		{
			Name:     "help-nudge",
			Class:    ClassHelpNudge,
			Framing:  FramingNeutral,
			Priority: 2,
			Matches: func(s scoring.CompositeScores) bool {
				return s.Engagement < 0.3 && s.AbandonmentRisk > 0.5
			},
		},
		{
			Name:     "upsell",
			Class:    ClassUpsell,
			Framing:  FramingUrgency,
			Priority: 3,
			Matches: func(s scoring.CompositeScores) bool {
				return s.PurchaseIntent > 0.8 && s.Engagement > 0.6
			},
		},
		{
			Name:     "social-proof",
			Class:    ClassSocialProof,
			Framing:  FramingSocialProof,
			Priority: 4,
			Matches: func(s scoring.CompositeScores) bool {
				return s.AbandonmentRisk > 0.5 && s.AbandonmentRisk <= 0.7
			},
		},
	}
}

// Selector evaluates the decision table after every score update.
type Selector struct {
	rules      []Rule
	cooldown   time.Duration
	historyMin int
}

// NewSelector creates a selector over an ordered rule set.
func NewSelector(rules []Rule, cooldown time.Duration, historyMin int) *Selector {
	return &Selector{rules: rules, cooldown: cooldown, historyMin: historyMin}
}

// Evaluate picks at most one recommendation for the record's current scores.
// The cooldown window is a hard rule evaluated first. A missing profile never
// blocks a recommendation; gating simply does not apply. On a recommendation
// the selector updates the record's bookkeeping immediately so cooldown stays
// accurate even if the surface layer fails to deliver.
func (s *Selector) Evaluate(record *scoring.Record, profile *profiles.TraitProfile, now time.Time) *Recommendation {
	if !record.LastInterventionAt.IsZero() && now.Sub(record.LastInterventionAt) < s.cooldown {
		record.CurrentRecommendation = ""
		record.RecommendationPriority = 0
		return nil
	}

	for _, rule := range s.rules {
		if !rule.Matches(record.Composites) {
			continue
		}

		framing := rule.Framing
		if s.suppressed(framing, profile) {
			if rule.FallbackFraming == "" {
				continue
			}
			framing = rule.FallbackFraming
			if s.suppressed(framing, profile) {
				continue
			}
		}

		rec := &Recommendation{
			Class:    rule.Class,
			Framing:  framing,
			Priority: rule.Priority,
			Rule:     rule.Name,
		}

		record.CurrentRecommendation = string(rec.Class)
		record.RecommendationPriority = rec.Priority
		record.LastInterventionKind = string(rec.Class)
		record.LastInterventionAt = now
		record.InterventionCount++
		return rec
	}

	record.CurrentRecommendation = ""
	record.RecommendationPriority = 0
	return nil
}

// RecordOutcome folds a surface-layer delivery report into the record's
// bookkeeping. A shown report refreshes the cooldown anchor; engaged and
// dismissed reports leave it untouched.
func (s *Selector) RecordOutcome(record *scoring.Record, class Class, outcome Outcome, now time.Time) {
	record.LastInterventionKind = string(class)
	if outcome == OutcomeShown && now.After(record.LastInterventionAt) {
		record.LastInterventionAt = now
	}
	if outcome != OutcomeShown {
		record.CurrentRecommendation = ""
		record.RecommendationPriority = 0
	}
}

func (s *Selector) suppressed(framing Framing, profile *profiles.TraitProfile) bool {
	if profile == nil {
		return false
	}
	switch framing {
	case FramingDiscount:
		return !profile.RespondsToDiscount && profiles.HasHistory(profile.DiscountShown, s.historyMin)
	case FramingUrgency:
		return !profile.RespondsToUrgency && profiles.HasHistory(profile.UrgencyShown, s.historyMin)
	case FramingSocialProof:
		return !profile.RespondsToSocialProof && profiles.HasHistory(profile.SocialProofShown, s.historyMin)
	}
	return false
}
