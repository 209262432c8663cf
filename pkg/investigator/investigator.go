// Package investigator runs one bounded reasoning loop per hypothesis:
// ask the oracle what to do, probe, attach evidence, rescore, repeat
// until the hypothesis resolves or the budget runs out.
package investigator

import (
	"context"
	"log/slog"
	"math"

	"github.com/loadwatch/loadwatch/pkg/config"
	"github.com/loadwatch/loadwatch/pkg/evidence"
	"github.com/loadwatch/loadwatch/pkg/events"
	"github.com/loadwatch/loadwatch/pkg/models"
	"github.com/loadwatch/loadwatch/pkg/oracle"
	"github.com/loadwatch/loadwatch/pkg/probe"
)

// updateEpsilon is the minimum confidence change worth announcing.
const updateEpsilon = 0.01

// sparseDampening slows confidence movement while a hypothesis has
// fewer than three evidence items, so a single finding cannot swing it
// to a terminal status on its own.
const (
	sparseDampening   = 0.8
	sparseEvidenceMin = 3
)

// Deps is everything a sub-investigator shares with its investigation.
type Deps struct {
	Cfg     *config.Config
	Oracle  oracle.Oracle
	Session *probe.Session
	Store   *evidence.Store
	Stream  *events.Stream
	Tracker *events.Tracker
	Bag     *models.IdentifierBag
}

// ChildRequest asks the orchestrator to investigate a sub-cause at the
// next depth.
type ChildRequest struct {
	ParentAgentID      string
	ParentHypothesisID string
	Spec               oracle.ChildSpec
}

// Result is one finished sub-investigator run.
type Result struct {
	AgentID    string
	Hypothesis *models.Hypothesis
	Reason     models.TerminalReason
	Iterations int
	Children   []ChildRequest
}

// Agent investigates a single hypothesis.
type Agent struct {
	ID    string
	Hyp   *models.Hypothesis
	Depth int

	deps     Deps
	findings []models.Finding
	children []ChildRequest
}

// NewAgent builds an agent for one hypothesis at the given depth.
func NewAgent(id string, hyp *models.Hypothesis, depth int, deps Deps) *Agent {
	return &Agent{ID: id, Hyp: hyp, Depth: depth, deps: deps}
}

// Run executes the reasoning loop under the per-agent deadline. It never
// returns an error: everything that can go wrong becomes a terminal
// reason on the result.
func (a *Agent) Run(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, a.deps.Cfg.AgentDeadline)
	defer cancel()

	a.deps.Stream.Publish(events.TypeSubAgentSpawn, events.SubAgentSpawn{
		AgentID:      a.ID,
		HypothesisID: a.Hyp.ID,
	})
	slog.Info("Sub-investigator started",
		"agent_id", a.ID, "hypothesis", a.Hyp.ID, "category", a.Hyp.Category, "depth", a.Depth)

	maxIter := a.deps.Cfg.MaxIterationsPerAgent
	reason := models.ReasonMaxIterations
	iterations := 0

	for i := 1; i <= maxIter; i++ {
		if ctx.Err() != nil {
			reason = models.ReasonFailed
			break
		}
		if a.Hyp.Status != models.HypothesisOpen {
			reason = statusReason(a.Hyp.Status)
			break
		}
		iterations = i

		action, err := a.deps.Oracle.DecideNext(ctx, oracle.DecideInput{
			Hypothesis: *a.Hyp,
			Findings:   a.findings,
			Iteration:  i,
			Remaining:  maxIter - i,
			CanSpawn:   a.Depth < a.deps.Cfg.MaxChildDepth,
		})
		if err != nil {
			reason = models.ReasonFailed
			break
		}
		a.publishAction(i, action)

		switch action.Kind {
		case oracle.ActionConclude:
			reason = models.ReasonOracleConcluded
		case oracle.ActionSpawnChild:
			a.spawnChild(action)
			continue
		case oracle.ActionProbe:
			if done := a.probeAndRescore(ctx, action); done != "" {
				reason = done
				break
			}
			continue
		default:
			reason = models.ReasonOracleConcluded
		}
		break
	}

	if ctx.Err() != nil && reason == models.ReasonMaxIterations {
		reason = models.ReasonFailed
	}
	if a.Hyp.Status != models.HypothesisOpen {
		reason = statusReason(a.Hyp.Status)
	}

	a.deps.Stream.Publish(events.TypeSubAgentDone, events.SubAgentDone{
		AgentID:        a.ID,
		TerminalReason: reason,
		Iterations:     iterations,
		EvidenceCount:  a.Hyp.EvidenceCount(),
	})
	slog.Info("Sub-investigator finished",
		"agent_id", a.ID, "reason", reason, "iterations", iterations,
		"confidence", a.Hyp.Confidence, "status", a.Hyp.Status)

	return Result{
		AgentID:    a.ID,
		Hypothesis: a.Hyp,
		Reason:     reason,
		Iterations: iterations,
		Children:   a.children,
	}
}

func (a *Agent) publishAction(iteration int, action oracle.NextAction) {
	ev := events.SubAgentAction{
		AgentID:    a.ID,
		Iteration:  iteration,
		ActionType: string(action.Kind),
		Reason:     action.Reason,
	}
	if action.Probe != nil {
		ev.Source = action.Probe.Source
		ev.Capability = action.Probe.Capability
	}
	a.deps.Stream.Publish(events.TypeSubAgentAction, ev)
}

func (a *Agent) spawnChild(action oracle.NextAction) {
	req := ChildRequest{
		ParentAgentID:      a.ID,
		ParentHypothesisID: a.Hyp.ID,
		Spec:               *action.Child,
	}
	a.children = append(a.children, req)
	a.deps.Stream.Publish(events.TypeChildSpawn, events.ChildSpawn{
		ParentAgentID:    a.ID,
		ChildDescription: action.Child.Description,
	})
}

// probeAndRescore runs one probe and feeds the finding back into the
// hypothesis. Returns a terminal reason when the loop must stop.
func (a *Agent) probeAndRescore(ctx context.Context, action oracle.NextAction) models.TerminalReason {
	finding, err := a.deps.Session.Invoke(ctx, action.Probe.Source, action.Probe.Capability, a.deps.Bag)
	if err != nil {
		// The oracle named a probe the registry does not have.
		slog.Warn("Sub-investigator asked for unregistered probe",
			"agent_id", a.ID, "source", action.Probe.Source, "capability", action.Probe.Capability)
		return models.ReasonOracleConcluded
	}
	a.deps.Tracker.SourceCompleted()

	stored, added := a.deps.Store.Add(finding)
	a.findings = append(a.findings, stored)
	if added {
		a.deps.Stream.Publish(events.TypeEvidence, events.Evidence{
			AgentID:    a.ID,
			FindingID:  stored.ID,
			Source:     stored.Source,
			Capability: stored.Capability,
			Outcome:    stored.Outcome,
			Summary:    stored.Summary,
		})
	}

	rescore, err := a.deps.Oracle.RescoreHypothesis(ctx, *a.Hyp, stored)
	if err != nil {
		return models.ReasonFailed
	}
	a.attachEvidence(stored, rescore.Supports)

	target := rescore.Confidence
	if a.Hyp.EvidenceCount() < sparseEvidenceMin {
		target = a.Hyp.Confidence + (target-a.Hyp.Confidence)*sparseDampening
	}
	delta := a.Hyp.ApplyConfidence(target, a.deps.Cfg.Thresholds)
	if math.Abs(delta) > updateEpsilon {
		a.deps.Stream.Publish(events.TypeHypothesisUpdate, events.HypothesisUpdate{
			ID:         a.Hyp.ID,
			Confidence: a.Hyp.Confidence,
			Status:     a.Hyp.Status,
			Delta:      delta,
		})
	}
	return ""
}

func (a *Agent) attachEvidence(f models.Finding, supports models.SupportsHint) {
	switch supports {
	case models.SupportsSupport:
		a.Hyp.EvidenceFor = appendUnique(a.Hyp.EvidenceFor, f.ID)
	case models.SupportsContradict:
		a.Hyp.EvidenceAgainst = appendUnique(a.Hyp.EvidenceAgainst, f.ID)
	default:
		// Neutral findings still count as gathered evidence.
		a.Hyp.EvidenceFor = appendUnique(a.Hyp.EvidenceFor, f.ID)
	}
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func statusReason(s models.HypothesisStatus) models.TerminalReason {
	if s == models.HypothesisConfirmed {
		return models.ReasonConfirmed
	}
	return models.ReasonEliminated
}
