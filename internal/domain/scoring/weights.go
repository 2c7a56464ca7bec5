package scoring

// Weights holds the composite-score weighting configuration. A copy is
// pinned into each Record at session start so that mid-flight configuration
// changes never alter the math of a long-running session.
type Weights struct {
	// Engagement component weights (sum to 1.0)
	Scroll      float64 `json:"scroll"`
	Time        float64 `json:"time"`
	Interaction float64 `json:"interaction"`
	Progress    float64 `json:"progress"`

	// Abandonment risk signal weights (sum to 1.0)
	Idle       float64 `json:"idle"`
	ExitIntent float64 `json:"exitIntent"`
	TabSwitch  float64 `json:"tabSwitch"`
	FormError  float64 `json:"formError"`
	BackNav    float64 `json:"backNav"`
}

// DefaultWeights returns the stock weighting configuration.
func DefaultWeights() Weights {
	return Weights{
		Scroll:      0.20,
		Time:        0.25,
		Interaction: 0.30,
		Progress:    0.25,
		Idle:        0.20,
		ExitIntent:  0.25,
		TabSwitch:   0.15,
		FormError:   0.25,
		BackNav:     0.15,
	}
}
