package scoring

import (
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/events"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/profiles"
)

// FunnelState is the read-only business state of a session as reported by the
// funnel-flow subsystem. A zero value is the documented fallback when the
// lookup times out or fails.
type FunnelState struct {
	ItemCount  int `json:"itemCount"`
	StepIndex  int `json:"stepIndex"`
	TotalSteps int `json:"totalSteps"`
}

const (
	// timeSaturationSeconds of cumulative active time maps to a time score
	// of 1.0; below that the mapping is linear.
	timeSaturationSeconds = 300.0

	// Interaction score rewards variety over raw count so one repeated
	// action cannot saturate the component on its own.
	interactionCountWeight   = 0.05
	interactionVarietyWeight = 0.18

	// Per-occurrence risk signal weights, each signal capped at 1.0.
	idlePerOccurrence    = 0.25
	exitPerOccurrence    = 0.35
	tabPerOccurrence     = 0.30
	formErrPerOccurrence = 0.40
	backNavPerOccurrence = 0.30

	// riskGain amplifies the weighted risk sum so that two strong
	// co-occurring signal families saturate composite risk.
	riskGain = 2.0

	// progressRiskDiscount scales risk down for invested visitors.
	progressRiskDiscount = 0.3

	cartBonusAnyItem   = 0.2
	cartBonusManyItems = 0.1
)

// Apply folds a timestamp-ordered event batch into a prior score record and
// returns the recomputed record. It is a pure function: no I/O, no clock
// reads, and identical inputs always produce identical output. The trait
// profile is part of the pipeline contract but acts only downstream in
// intervention selection; composite formulas are trait-independent.
func Apply(prior *Record, batch []events.Event, _ *profiles.TraitProfile, funnel FunnelState, now time.Time) *Record {
	record := prior.Clone()

	for _, event := range batch {
		foldEvent(record, event)
	}

	if funnel.TotalSteps > 0 {
		record.TotalSteps = funnel.TotalSteps
	}
	if funnel.StepIndex > record.MaxStepIndex {
		record.MaxStepIndex = funnel.StepIndex
	}
	if funnel.ItemCount > record.CartItems {
		record.CartItems = funnel.ItemCount
	}

	computeComponents(record)
	computeRisks(record)
	computeComposites(record)

	record.LastUpdated = now
	return record
}

func foldEvent(record *Record, event events.Event) {
	switch event.Kind {
	case events.KindScrollDepth:
		if event.Value > record.MaxScrollDepth {
			record.MaxScrollDepth = event.Value
		}
	case events.KindTimeOnPage:
		record.ActiveSeconds += event.Value
	case events.KindStepTransition:
		if step := int(event.Value); step > record.MaxStepIndex {
			record.MaxStepIndex = step
		}
	case events.KindProductInteract, events.KindPaymentInteract,
		events.KindFormFocus, events.KindFormBlur,
		events.KindCouponApply, events.KindCouponFail:
		record.InteractionCount++
		kind := event.Detail
		if kind == "" {
			kind = string(event.Kind)
		}
		record.InteractionKinds[kind]++
	case events.KindIdleStart:
		record.IdleCount++
	case events.KindExitIntent:
		record.ExitIntentCount++
	case events.KindTabHidden:
		record.TabHiddenCount++
	case events.KindFormError:
		record.FormErrorCount++
		// A form error is also an interaction with the form.
		record.InteractionCount++
		record.InteractionKinds[string(events.KindFormError)]++
	case events.KindNavigationBack:
		record.BackNavCount++
	case events.KindInterventionSeen:
		record.LastInterventionKind = event.Detail
		if event.Timestamp.After(record.LastInterventionAt) {
			record.LastInterventionAt = event.Timestamp
		}
		record.InterventionCount++
	case events.KindInterventionHit, events.KindInterventionMiss,
		events.KindTabVisible, events.KindIdleEnd, events.KindUnclassified:
		// Zero score weight; outcome events are folded by the selector's
		// bookkeeping path, not by scoring.
	}
}

func computeComponents(record *Record) {
	record.Components.Scroll = clamp01(record.MaxScrollDepth / 100.0)
	record.Components.Time = clamp01(record.ActiveSeconds / timeSaturationSeconds)
	record.Components.Interaction = clamp01(
		interactionCountWeight*float64(record.InteractionCount) +
			interactionVarietyWeight*float64(len(record.InteractionKinds)))

	if record.TotalSteps > 0 {
		record.Components.Progress = clamp01(float64(record.MaxStepIndex+1) / float64(record.TotalSteps))
	}
}

func computeRisks(record *Record) {
	record.Risks.Idle = clamp01(idlePerOccurrence * float64(record.IdleCount))
	record.Risks.ExitIntent = clamp01(exitPerOccurrence * float64(record.ExitIntentCount))
	record.Risks.TabSwitch = clamp01(tabPerOccurrence * float64(record.TabHiddenCount))
	record.Risks.FormError = clamp01(formErrPerOccurrence * float64(record.FormErrorCount))
	record.Risks.BackNav = clamp01(backNavPerOccurrence * float64(record.BackNavCount))
}

func computeComposites(record *Record) {
	w := record.Weights
	c := record.Components

	record.Composites.Engagement = clamp01(
		w.Scroll*c.Scroll + w.Time*c.Time + w.Interaction*c.Interaction + w.Progress*c.Progress)

	riskSum := w.Idle*record.Risks.Idle +
		w.ExitIntent*record.Risks.ExitIntent +
		w.TabSwitch*record.Risks.TabSwitch +
		w.FormError*record.Risks.FormError +
		w.BackNav*record.Risks.BackNav
	record.Composites.AbandonmentRisk = clamp01(riskGain*riskSum) * (1 - c.Progress*progressRiskDiscount)

	intent := 0.4*c.Progress + 0.2*record.Composites.Engagement + 0.1*c.Interaction
	if record.CartItems >= 1 {
		intent += cartBonusAnyItem
	}
	if record.CartItems > 2 {
		intent += cartBonusManyItems
	}
	record.Composites.PurchaseIntent = clamp01(intent)
}
