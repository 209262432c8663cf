// Package orchestrator drives one investigation end to end: route the
// incident, extract and seed identifiers, form hypotheses, fan out
// sub-investigators, and synthesize the verdict.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loadwatch/loadwatch/pkg/config"
	"github.com/loadwatch/loadwatch/pkg/evidence"
	"github.com/loadwatch/loadwatch/pkg/events"
	"github.com/loadwatch/loadwatch/pkg/investigator"
	"github.com/loadwatch/loadwatch/pkg/models"
	"github.com/loadwatch/loadwatch/pkg/oracle"
	"github.com/loadwatch/loadwatch/pkg/probe"
)

// childConfidenceFactor scales a parent's confidence down for the
// hypotheses it spawns.
const childConfidenceFactor = 0.8

// Observer receives investigation-level lifecycle notifications.
type Observer interface {
	InvestigationStarted()
	InvestigationFinished(kind models.VerdictKind, duration time.Duration)
}

// Orchestrator runs investigations. Safe for concurrent use; all
// per-investigation state lives on the stack of Investigate.
type Orchestrator struct {
	cfg      *config.Config
	registry *probe.Registry
	oracle   oracle.Oracle
	router   *router
	observer Observer
}

// New builds an orchestrator, compiling the routing tables. observer may
// be nil.
func New(cfg *config.Config, registry *probe.Registry, orc oracle.Oracle, observer Observer) (*Orchestrator, error) {
	r, err := newRouter(cfg.Routing)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{cfg: cfg, registry: registry, oracle: orc, router: r, observer: observer}, nil
}

// run is the per-investigation working state.
type run struct {
	o        *Orchestrator
	id       string
	incident models.Incident
	bag      *models.IdentifierBag
	store    *evidence.Store
	stream   *events.Stream
	tracker  *events.Tracker
	session  *probe.Session
	started  time.Time
	hyps     []*models.Hypothesis
}

// Investigate executes one investigation and returns its verdict. The
// stream receives the full progress sequence and is always terminated
// with exactly one terminal event (or abandoned if the consumer is
// gone). Cancel ctx to abort.
func (o *Orchestrator) Investigate(ctx context.Context, incident models.Incident, stream *events.Stream) *models.Verdict {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.InvestigationDeadline)
	defer cancel()

	r := &run{
		o:        o,
		id:       uuid.NewString(),
		incident: incident,
		bag:      models.NewIdentifierBag(nil),
		store:    evidence.NewStore(),
		stream:   stream,
		tracker:  events.NewTracker(),
		session:  o.registry.NewSession(),
		started:  time.Now(),
	}
	if o.observer != nil {
		o.observer.InvestigationStarted()
	}

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		events.RunHeartbeat(ctx, stream, r.tracker, o.cfg.HeartbeatInterval)
	}()

	verdict := r.execute(ctx)

	r.finish(ctx, verdict)
	cancel()
	<-heartbeatDone

	if o.observer != nil {
		o.observer.InvestigationFinished(verdict.Kind, time.Since(r.started))
	}
	return verdict
}

// execute walks the investigation phases. Every early return carries a
// complete verdict; the caller owns terminal-event delivery.
func (r *run) execute(ctx context.Context) (verdict *models.Verdict) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Investigation panicked", "investigation_id", r.id, "panic", rec)
			verdict = r.errorVerdict("internal error")
		}
	}()

	r.stream.Publish(events.TypeStarted, events.Started{
		InvestigationID: r.id,
		Mode:            r.incident.ModeHint,
		TS:              r.started,
	})
	slog.Info("Investigation started", "investigation_id", r.id)

	// Route.
	r.tracker.SetPhase(events.PhaseRouting)
	decision := r.o.router.route(r.incident.Description, r.incident.ModeHint)
	r.stream.Publish(events.TypeRouted, events.Routed{
		Intent:          decision.Intent,
		Domain:          decision.Domain,
		SkillID:         decision.SkillID,
		Confidence:      decision.Confidence,
		MatchedPatterns: decision.MatchedPatterns,
	})
	slog.Info("Incident routed",
		"investigation_id", r.id, "intent", decision.Intent, "domain", decision.Domain,
		"confidence", decision.Confidence, "auto_route", decision.ShouldAutoRoute(r.o.cfg.Thresholds))

	switch decision.Intent {
	case models.IntentTrackingIssue:
	case models.IntentUnknown:
		return r.errorVerdict("unable to classify incident intent")
	default:
		return r.unsupportedVerdict(decision.Intent)
	}

	// Extract identifiers: explicit fields win, extraction fills gaps.
	r.tracker.SetPhase(events.PhaseSeeding)
	for key, value := range r.incident.Identifiers {
		r.bag.Set(key, value)
	}
	extracted, err := r.o.oracle.ExtractIdentifiers(ctx, r.incident.Description)
	if err == nil {
		for key, value := range extracted {
			r.bag.Set(key, value)
		}
	}
	r.stream.Publish(events.TypeIdentifiers, events.Identifiers{Bag: r.bag.Snapshot()})

	if !r.bag.Has(models.KeyTrackingID, models.KeyLoadNumber) {
		return r.needsHumanVerdict("insufficient identifiers",
			"Which load is affected? Please provide a tracking id or load number.")
	}

	// Seed evidence and enrich the bag from the platform lookup.
	r.seed(ctx)

	// Form hypotheses.
	r.tracker.SetPhase(events.PhaseForming)
	proposals, err := r.o.oracle.ProposeHypotheses(ctx, r.incident, r.bag.Snapshot(), r.store.All())
	if err != nil || len(proposals) == 0 {
		slog.Warn("Hypothesis proposal failed, using default set",
			"investigation_id", r.id, "error", err)
		proposals = oracle.DefaultProposals(r.o.registry)
	}
	if len(proposals) == 0 {
		return r.errorVerdict("hypothesis formation failed")
	}
	for _, p := range proposals {
		hyp := &models.Hypothesis{
			ID:              uuid.NewString(),
			Description:     p.Description,
			Category:        p.Category,
			Confidence:      models.ClampConfidence(p.Confidence),
			Status:          models.HypothesisOpen,
			SuggestedProbes: p.SuggestedProbes,
		}
		r.hyps = append(r.hyps, hyp)
		r.stream.Publish(events.TypeHypothesis, events.Hypothesis{
			ID:          hyp.ID,
			Description: hyp.Description,
			Category:    hyp.Category,
			Confidence:  hyp.Confidence,
		})
	}

	// Fan out sub-investigators, depth wave by depth wave.
	r.tracker.SetPhase(events.PhaseProbing)
	r.tracker.SetSourcesTotal(len(r.hyps) * r.o.cfg.MaxIterationsPerAgent)
	r.runWaves(ctx)

	// Synthesize.
	r.tracker.SetPhase(events.PhaseSynthesizing)
	return r.synthesize(ctx)
}

// seed invokes the platform lookup for whichever identifier is present
// and grows the bag from the response payload.
func (r *run) seed(ctx context.Context) {
	source := probe.SourcePlatform
	capability := probe.CapLoadLookupByID
	if !r.bag.Has(models.KeyTrackingID) {
		capability = probe.CapLoadLookupByNumber
	}
	if !r.o.registry.Has(source, capability) {
		return
	}

	finding, err := r.session.Invoke(ctx, source, capability, r.bag)
	if err != nil {
		return
	}
	r.store.Add(finding)
	r.tracker.SourceCompleted()
	if finding.Outcome != models.OutcomeOK {
		return
	}

	for _, key := range []string{
		models.KeyTrackingID, models.KeyLoadNumber, models.KeyMode,
		models.KeyShipperID, models.KeyCarrierID, models.KeyContainerNumber,
		models.KeyBookingNumber, models.KeySubscriptionID,
	} {
		if value, ok := payloadString(finding.Payload, key); ok {
			r.bag.Set(key, value)
		}
	}
}

// runWaves runs the depth-0 agents, then promotes children wave by wave
// until MAX_CHILD_DEPTH.
func (r *run) runWaves(ctx context.Context) {
	runner := investigator.NewRunner(investigator.Deps{
		Cfg:     r.o.cfg,
		Oracle:  r.o.oracle,
		Session: r.session,
		Store:   r.store,
		Stream:  r.stream,
		Tracker: r.tracker,
		Bag:     r.bag,
	})

	wave := make([]*investigator.Agent, 0, len(r.hyps))
	for _, hyp := range r.hyps {
		wave = append(wave, runner.Spawn(hyp, 0))
	}

	for depth := 0; len(wave) > 0 && depth <= r.o.cfg.MaxChildDepth; depth++ {
		results := runner.RunWave(ctx, wave)

		var next []*investigator.Agent
		if depth < r.o.cfg.MaxChildDepth && ctx.Err() == nil {
			for _, res := range results {
				for _, req := range res.Children {
					child := r.promoteChild(res.Hypothesis, req)
					next = append(next, runner.Spawn(child, depth+1))
				}
			}
		}
		wave = next
	}
}

// promoteChild turns a child request into a full hypothesis inheriting a
// scaled-down parent confidence.
func (r *run) promoteChild(parent *models.Hypothesis, req investigator.ChildRequest) *models.Hypothesis {
	child := &models.Hypothesis{
		ID:          uuid.NewString(),
		Description: req.Spec.Description,
		Category:    req.Spec.Category,
		Confidence:  models.ClampConfidence(parent.Confidence * childConfidenceFactor),
		Status:      models.HypothesisOpen,
		ParentID:    req.ParentHypothesisID,
	}
	r.hyps = append(r.hyps, child)
	return child
}

// synthesize asks the oracle for the final narrative and assembles the
// verdict around it. On investigation deadline the oracle call fails
// fast and its deterministic fallback drafts the verdict from whatever
// evidence is in hand.
func (r *run) synthesize(ctx context.Context) *models.Verdict {
	hyps := make([]models.Hypothesis, 0, len(r.hyps))
	for _, h := range r.hyps {
		hyps = append(hyps, *h)
	}
	syn, err := r.o.oracle.Synthesize(ctx, r.incident, hyps, r.store.All())
	if err != nil {
		return r.errorVerdict("synthesis failed")
	}

	verdict := &models.Verdict{
		Kind:                   models.VerdictRootCause,
		RootCause:              syn.RootCause,
		Category:               syn.Category,
		Confidence:             models.ClampConfidence(syn.Confidence),
		Explanation:            syn.Explanation,
		RecommendedActions:     syn.RecommendedActions,
		RemainingUncertainties: syn.RemainingUncertainties,
		Hypotheses:             r.summaries(),
	}
	for _, ref := range syn.EvidenceRefs {
		if r.store.Has(ref) {
			verdict.EvidenceRefs = append(verdict.EvidenceRefs, ref)
		}
	}

	deadlineHit := ctx.Err() == context.DeadlineExceeded
	if verdict.Confidence < r.o.cfg.Thresholds.Med || deadlineHit {
		verdict.Kind = models.VerdictNeedsHuman
		verdict.NeedsHuman = true
		verdict.HumanQuestion = r.humanQuestion(deadlineHit)
	}
	return verdict
}

// humanQuestion summarizes the top open hypotheses for an operator.
func (r *run) humanQuestion(deadlineHit bool) string {
	var b strings.Builder
	if deadlineHit {
		b.WriteString("The investigation hit its deadline before reaching a confident conclusion. ")
	} else {
		b.WriteString("No hypothesis reached a confident conclusion. ")
	}
	b.WriteString("Leading candidates:")

	top := topHypotheses(r.hyps, 3)
	if len(top) == 0 {
		return b.String() + " none."
	}
	for i, h := range top {
		fmt.Fprintf(&b, " %d) %s (%.0f%%)", i+1, h.Description, h.Confidence*100)
		if i < len(top)-1 {
			b.WriteString(";")
		} else {
			b.WriteString(".")
		}
	}
	b.WriteString(" Which should be pursued?")
	return b.String()
}

// topHypotheses returns the n highest-confidence hypotheses.
func topHypotheses(hyps []*models.Hypothesis, n int) []*models.Hypothesis {
	sorted := make([]*models.Hypothesis, len(hyps))
	copy(sorted, hyps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func (r *run) summaries() []models.HypothesisSummary {
	out := make([]models.HypothesisSummary, 0, len(r.hyps))
	for _, h := range r.hyps {
		out = append(out, models.HypothesisSummary{
			ID:          h.ID,
			Description: h.Description,
			Category:    h.Category,
			Confidence:  h.Confidence,
			Status:      h.Status,
		})
	}
	return out
}

func (r *run) needsHumanVerdict(reason, question string) *models.Verdict {
	return &models.Verdict{
		Kind:          models.VerdictNeedsHuman,
		RootCause:     reason,
		Category:      models.CategoryUnknown,
		Explanation:   reason,
		NeedsHuman:    true,
		HumanQuestion: question,
		Hypotheses:    r.summaries(),
	}
}

func (r *run) unsupportedVerdict(intent models.Intent) *models.Verdict {
	return &models.Verdict{
		Kind:        models.VerdictUnsupported,
		RootCause:   fmt.Sprintf("%s incidents are not supported", intent),
		Category:    models.CategoryUnknown,
		Explanation: fmt.Sprintf("This service investigates tracking issues; the incident was classified as %s.", intent),
	}
}

func (r *run) errorVerdict(message string) *models.Verdict {
	return &models.Verdict{
		Kind:        models.VerdictError,
		RootCause:   message,
		Category:    models.CategoryUnknown,
		Explanation: message,
		Hypotheses:  r.summaries(),
	}
}

// finish publishes the closing event sequence: verdict (when there is
// one) and exactly one terminal event. A cancelled consumer abandons the
// stream instead.
func (r *run) finish(ctx context.Context, verdict *models.Verdict) {
	verdict.DurationMS = time.Since(r.started).Milliseconds()
	r.tracker.SetPhase(events.PhaseDone)

	if ctx.Err() == context.Canceled {
		slog.Info("Investigation cancelled", "investigation_id", r.id, "duration_ms", verdict.DurationMS)
		r.stream.Publish(events.TypeError, events.Error{Message: "investigation cancelled", AtPhase: events.PhaseCancelled})
		r.stream.Abandon()
		return
	}

	if verdict.Kind == models.VerdictError {
		r.stream.Publish(events.TypeError, events.Error{Message: verdict.RootCause, AtPhase: events.PhaseDone})
		slog.Warn("Investigation failed", "investigation_id", r.id, "error", verdict.RootCause)
		return
	}

	r.stream.Publish(events.TypeVerdict, *verdict)
	r.stream.Publish(events.TypeComplete, events.Complete{TS: time.Now(), DurationMS: verdict.DurationMS})
	slog.Info("Investigation complete",
		"investigation_id", r.id, "kind", verdict.Kind, "category", verdict.Category,
		"confidence", verdict.Confidence, "needs_human", verdict.NeedsHuman,
		"duration_ms", verdict.DurationMS)
}

// payloadString reads a string-ish value from a probe payload.
func payloadString(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		if t != "" {
			return t, true
		}
	case float64:
		return fmt.Sprintf("%.0f", t), true
	case int:
		return fmt.Sprintf("%d", t), true
	}
	return "", false
}
