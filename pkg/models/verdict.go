package models

// VerdictKind distinguishes normal verdicts from short-circuit outcomes.
type VerdictKind string

const (
	VerdictRootCause   VerdictKind = "root_cause"
	VerdictNeedsHuman  VerdictKind = "needs_human"
	VerdictUnsupported VerdictKind = "unsupported"
	VerdictError       VerdictKind = "error"
)

// HypothesisSummary is the condensed per-hypothesis view carried by a verdict.
type HypothesisSummary struct {
	ID          string           `json:"id"`
	Description string           `json:"description"`
	Category    Category         `json:"category"`
	Confidence  float64          `json:"confidence"`
	Status      HypothesisStatus `json:"status"`
}

// Verdict is the final structured answer for one investigation.
type Verdict struct {
	Kind                   VerdictKind         `json:"kind"`
	RootCause              string              `json:"root_cause"`
	Category               Category            `json:"category"`
	Confidence             float64             `json:"confidence"`
	Explanation            string              `json:"explanation,omitempty"`
	RecommendedActions     []string            `json:"recommended_actions,omitempty"`
	RemainingUncertainties []string            `json:"remaining_uncertainties,omitempty"`
	EvidenceRefs           []string            `json:"evidence_ref_ids,omitempty"`
	Hypotheses             []HypothesisSummary `json:"hypotheses_summary,omitempty"`
	DurationMS             int64               `json:"duration_ms"`
	NeedsHuman             bool                `json:"needs_human"`
	HumanQuestion          string              `json:"human_question,omitempty"`
}

// TerminalReason records why a sub-investigator stopped.
type TerminalReason string

const (
	ReasonConfirmed       TerminalReason = "confirmed"
	ReasonEliminated      TerminalReason = "eliminated"
	ReasonMaxIterations   TerminalReason = "max_iterations"
	ReasonOracleConcluded TerminalReason = "oracle_concluded"
	ReasonFailed          TerminalReason = "failed"
)
