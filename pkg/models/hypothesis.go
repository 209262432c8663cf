package models

// HypothesisStatus is the lifecycle state of a hypothesis.
// Status is a pure function of confidence and the configured thresholds —
// see Thresholds.StatusFor. A hypothesis transitions to a terminal status
// at most once.
type HypothesisStatus string

const (
	HypothesisOpen       HypothesisStatus = "open"
	HypothesisConfirmed  HypothesisStatus = "confirmed"
	HypothesisEliminated HypothesisStatus = "eliminated"
)

// Thresholds holds the confidence cut points for hypothesis status and
// routing/synthesis decisions.
type Thresholds struct {
	High float64 // confirmed at or above; default 0.85
	Med  float64 // needs-human below; default 0.60
	Low  float64 // eliminated at or below; default 0.10
}

// DefaultThresholds returns the standard cut points.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.85, Med: 0.60, Low: 0.10}
}

// StatusFor recomputes the status implied by a confidence value.
func (t Thresholds) StatusFor(confidence float64) HypothesisStatus {
	switch {
	case confidence >= t.High:
		return HypothesisConfirmed
	case confidence <= t.Low:
		return HypothesisEliminated
	default:
		return HypothesisOpen
	}
}

// ProbeSuggestion names a registry capability the oracle suggests probing.
type ProbeSuggestion struct {
	Source     string `json:"source"`
	Capability string `json:"capability"`
}

// Hypothesis is one candidate root cause with an evolving confidence score.
// Confidence values of open hypotheses are independent likelihoods — they
// are not required to sum to 1.
type Hypothesis struct {
	ID              string            `json:"id"`
	Description     string            `json:"description"`
	Category        Category          `json:"category"`
	Confidence      float64           `json:"confidence"`
	Status          HypothesisStatus  `json:"status"`
	SuggestedProbes []ProbeSuggestion `json:"suggested_probes,omitempty"`
	ParentID        string            `json:"parent_id,omitempty"`
	EvidenceFor     []string          `json:"evidence_for_ids,omitempty"`
	EvidenceAgainst []string          `json:"evidence_against_ids,omitempty"`
}

// ApplyConfidence sets a new confidence (clamped to [0,1]) and recomputes
// status from the thresholds. Returns the signed delta.
func (h *Hypothesis) ApplyConfidence(confidence float64, t Thresholds) float64 {
	confidence = ClampConfidence(confidence)
	delta := confidence - h.Confidence
	h.Confidence = confidence
	h.Status = t.StatusFor(confidence)
	return delta
}

// EvidenceCount returns the total number of evidence references.
func (h *Hypothesis) EvidenceCount() int {
	return len(h.EvidenceFor) + len(h.EvidenceAgainst)
}

// ClampConfidence clamps a confidence value into [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
