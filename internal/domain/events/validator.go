package events

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrOversizedBatch signals a batch beyond the configured entry cap. Oversized
// batches fail closed rather than being silently truncated.
var ErrOversizedBatch = errors.New("event batch exceeds maximum size")

// ValidationResult carries the accepted events plus per-entry rejection
// bookkeeping for a single batch.
type ValidationResult struct {
	Events  []Event
	Dropped int
	Reasons []string
}

// ValidateBatch normalizes a raw client batch into well-typed events.
// Malformed entries are dropped and counted, never aborting the batch;
// unknown kinds pass through as UNCLASSIFIED with zero score weight.
// Accepted events are sorted by client timestamp so folding is deterministic
// within the batch.
func ValidateBatch(raw []RawEvent, maxEvents int) (*ValidationResult, error) {
	if maxEvents > 0 && len(raw) > maxEvents {
		return nil, fmt.Errorf("%w: %d entries (cap %d)", ErrOversizedBatch, len(raw), maxEvents)
	}

	result := &ValidationResult{}
	for i, entry := range raw {
		event, err := validateEntry(entry)
		if err != nil {
			result.Dropped++
			result.Reasons = append(result.Reasons, fmt.Sprintf("entry %d: %v", i, err))
			continue
		}
		result.Events = append(result.Events, event)
	}

	sort.SliceStable(result.Events, func(i, j int) bool {
		return result.Events[i].Timestamp.Before(result.Events[j].Timestamp)
	})

	return result, nil
}

func validateEntry(entry RawEvent) (Event, error) {
	if entry.Kind == "" {
		return Event{}, errors.New("missing kind")
	}
	if entry.Timestamp <= 0 {
		return Event{}, errors.New("missing or invalid timestamp")
	}

	kind := Kind(entry.Kind)
	if !knownKinds[kind] {
		kind = KindUnclassified
	}

	switch kind {
	case KindScrollDepth:
		if entry.Value < 0 || entry.Value > 100 {
			return Event{}, fmt.Errorf("scroll depth %g out of range [0,100]", entry.Value)
		}
	case KindTimeOnPage:
		if entry.Value < 0 {
			return Event{}, fmt.Errorf("negative time on page: %g", entry.Value)
		}
	case KindStepTransition:
		if entry.Value < 0 {
			return Event{}, fmt.Errorf("negative step index: %g", entry.Value)
		}
	case KindProductInteract:
		if entry.Detail == "" {
			return Event{}, errors.New("product interaction missing detail")
		}
	case KindInterventionSeen, KindInterventionHit, KindInterventionMiss:
		if entry.Detail == "" {
			return Event{}, errors.New("intervention event missing class detail")
		}
	}

	id := entry.ID
	if id == "" {
		id = ulid.Make().String()
	}

	return Event{
		ID:        id,
		Kind:      kind,
		Value:     entry.Value,
		Detail:    entry.Detail,
		Timestamp: time.UnixMilli(entry.Timestamp).UTC(),
	}, nil
}
