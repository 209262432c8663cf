// Package oracle is the reasoning façade: every language-model call the
// investigation makes goes through the Oracle interface. Responses are
// parsed, validated against the probe catalog and the closed category
// set, and replaced with deterministic fallbacks when the model
// misbehaves. A broken oracle degrades an investigation; it never
// crashes one.
package oracle

import (
	"context"

	"github.com/loadwatch/loadwatch/pkg/models"
)

// Proposal is one candidate hypothesis suggested by the oracle. Probe
// suggestions are already validated against the registry; anything the
// model invented has been dropped.
type Proposal struct {
	Description     string                   `json:"description"`
	Category        models.Category          `json:"category"`
	Confidence      float64                  `json:"confidence"`
	SuggestedProbes []models.ProbeSuggestion `json:"suggested_probes,omitempty"`
}

// Rescore is the oracle's updated assessment of one hypothesis after a
// new finding landed.
type Rescore struct {
	Confidence float64             `json:"confidence"`
	Supports   models.SupportsHint `json:"supports"`
	Note       string              `json:"note,omitempty"`
}

// ActionKind is what a sub-investigator does next.
type ActionKind string

const (
	ActionProbe      ActionKind = "probe"
	ActionSpawnChild ActionKind = "spawn_child"
	ActionConclude   ActionKind = "conclude"
)

// ChildSpec describes a child hypothesis to spawn.
type ChildSpec struct {
	Description string          `json:"description"`
	Category    models.Category `json:"category"`
}

// NextAction is the oracle's decision for one sub-investigator iteration.
type NextAction struct {
	Kind   ActionKind               `json:"action"`
	Probe  *models.ProbeSuggestion  `json:"probe,omitempty"`
	Child  *ChildSpec               `json:"child,omitempty"`
	Reason string                   `json:"reason,omitempty"`
}

// Synthesis is the oracle's draft of the final verdict. The orchestrator
// owns the verdict kind and the needs-human gate; the oracle only drafts
// the narrative fields.
type Synthesis struct {
	RootCause              string          `json:"root_cause"`
	Category               models.Category `json:"category"`
	Confidence             float64         `json:"confidence"`
	Explanation            string          `json:"explanation"`
	RecommendedActions     []string        `json:"recommended_actions,omitempty"`
	RemainingUncertainties []string        `json:"remaining_uncertainties,omitempty"`
	EvidenceRefs           []string        `json:"evidence_refs,omitempty"`
}

// DecideInput bundles what the oracle sees when picking a
// sub-investigator's next move.
type DecideInput struct {
	Hypothesis models.Hypothesis
	Findings   []models.Finding
	Iteration  int
	Remaining  int
	CanSpawn   bool
}

// Oracle is the full reasoning surface of an investigation.
type Oracle interface {
	// ExtractIdentifiers pulls structured identifiers out of free-text
	// incident prose. Keys follow the identifier-bag vocabulary.
	ExtractIdentifiers(ctx context.Context, description string) (map[string]string, error)

	// ProposeHypotheses forms the initial hypothesis set from the incident
	// and the seed findings.
	ProposeHypotheses(ctx context.Context, incident models.Incident, identifiers map[string]string, seed []models.Finding) ([]Proposal, error)

	// RescoreHypothesis re-evaluates one hypothesis against a fresh finding.
	RescoreHypothesis(ctx context.Context, hyp models.Hypothesis, finding models.Finding) (Rescore, error)

	// DecideNext picks the next action for a sub-investigator.
	DecideNext(ctx context.Context, in DecideInput) (NextAction, error)

	// Synthesize drafts the final verdict from the finished hypothesis set.
	Synthesize(ctx context.Context, incident models.Incident, hyps []models.Hypothesis, findings []models.Finding) (Synthesis, error)
}
