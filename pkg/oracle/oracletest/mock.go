// Package oracletest provides a scriptable oracle for tests.
package oracletest

import (
	"context"
	"sync"

	"github.com/loadwatch/loadwatch/pkg/models"
	"github.com/loadwatch/loadwatch/pkg/oracle"
)

// Mock implements oracle.Oracle with overridable function fields. Nil
// fields fall back to inert defaults (no identifiers, no hypotheses,
// conclude immediately, echo the best hypothesis).
type Mock struct {
	ExtractFunc    func(ctx context.Context, description string) (map[string]string, error)
	ProposeFunc    func(ctx context.Context, incident models.Incident, identifiers map[string]string, seed []models.Finding) ([]oracle.Proposal, error)
	RescoreFunc    func(ctx context.Context, hyp models.Hypothesis, finding models.Finding) (oracle.Rescore, error)
	DecideFunc     func(ctx context.Context, in oracle.DecideInput) (oracle.NextAction, error)
	SynthesizeFunc func(ctx context.Context, incident models.Incident, hyps []models.Hypothesis, findings []models.Finding) (oracle.Synthesis, error)

	mu          sync.Mutex
	decideCalls []oracle.DecideInput
}

var _ oracle.Oracle = (*Mock)(nil)

func (m *Mock) ExtractIdentifiers(ctx context.Context, description string) (map[string]string, error) {
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, description)
	}
	return map[string]string{}, nil
}

func (m *Mock) ProposeHypotheses(ctx context.Context, incident models.Incident, identifiers map[string]string, seed []models.Finding) ([]oracle.Proposal, error) {
	if m.ProposeFunc != nil {
		return m.ProposeFunc(ctx, incident, identifiers, seed)
	}
	return nil, nil
}

func (m *Mock) RescoreHypothesis(ctx context.Context, hyp models.Hypothesis, finding models.Finding) (oracle.Rescore, error) {
	if m.RescoreFunc != nil {
		return m.RescoreFunc(ctx, hyp, finding)
	}
	return oracle.Rescore{Confidence: hyp.Confidence, Supports: models.SupportsUnknown}, nil
}

func (m *Mock) DecideNext(ctx context.Context, in oracle.DecideInput) (oracle.NextAction, error) {
	m.mu.Lock()
	m.decideCalls = append(m.decideCalls, in)
	m.mu.Unlock()
	if m.DecideFunc != nil {
		return m.DecideFunc(ctx, in)
	}
	return oracle.NextAction{Kind: oracle.ActionConclude, Reason: "mock default"}, nil
}

func (m *Mock) Synthesize(ctx context.Context, incident models.Incident, hyps []models.Hypothesis, findings []models.Finding) (oracle.Synthesis, error) {
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, incident, hyps, findings)
	}
	syn := oracle.Synthesis{Category: models.CategoryUnknown, RootCause: "undetermined"}
	for _, h := range hyps {
		if h.Confidence >= syn.Confidence {
			syn = oracle.Synthesis{
				RootCause:    h.Description,
				Category:     h.Category,
				Confidence:   h.Confidence,
				Explanation:  h.Description,
				EvidenceRefs: h.EvidenceFor,
			}
		}
	}
	return syn, nil
}

// DecideCalls returns every DecideNext invocation seen so far.
func (m *Mock) DecideCalls() []oracle.DecideInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]oracle.DecideInput, len(m.decideCalls))
	copy(out, m.decideCalls)
	return out
}
