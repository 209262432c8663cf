package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/loadwatch/loadwatch/pkg/config"
	"github.com/loadwatch/loadwatch/pkg/models"
)

// Registry is the boot-time façade over all registered sources and their
// capabilities. It is long-lived and shared across investigations; the
// per-investigation memoization cache lives in Session.
type Registry struct {
	cfg      *config.Config
	sources  map[string]Source
	catalog  map[string]Descriptor // capability → descriptor
	breakers *breakerSet
	observer Observer
}

// NewRegistry builds a registry from the built-in catalog and the given
// source adapters. Sources disabled by config are dropped with their
// capabilities. Capabilities whose source adapter is absent are dropped
// too — the registry only ever advertises what it can actually invoke.
func NewRegistry(cfg *config.Config, sources []Source, observer Observer) *Registry {
	r := &Registry{
		cfg:      cfg,
		sources:  make(map[string]Source),
		catalog:  make(map[string]Descriptor),
		breakers: newBreakerSet(),
		observer: observer,
	}
	for _, s := range sources {
		if !cfg.SourceEnabled(s.Name()) {
			slog.Info("Data source disabled by config", "source", s.Name())
			continue
		}
		r.sources[s.Name()] = s
	}
	for _, desc := range Catalog() {
		if _, ok := r.sources[desc.Source]; !ok {
			continue
		}
		r.catalog[desc.Capability] = desc
	}
	return r
}

// Has reports whether source/capability names a registered probe.
func (r *Registry) Has(source, capability string) bool {
	desc, ok := r.catalog[capability]
	return ok && desc.Source == source
}

// Describe returns the descriptor for a capability.
func (r *Registry) Describe(capability string) (Descriptor, bool) {
	desc, ok := r.catalog[capability]
	return desc, ok
}

// Capabilities returns all registered descriptors sorted by capability name.
func (r *Registry) Capabilities() []Descriptor {
	out := make([]Descriptor, 0, len(r.catalog))
	for _, d := range r.catalog {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Capability < out[j].Capability })
	return out
}

// CapabilityNames returns the registered capability names, sorted.
// Handed to the oracle so it can only suggest real probes.
func (r *Registry) CapabilityNames() []string {
	names := make([]string, 0, len(r.catalog))
	for name := range r.catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewSession creates the per-investigation view of the registry, with its
// own memoization cache. Sessions are cheap; one per investigation.
func (r *Registry) NewSession() *Session {
	return &Session{registry: r, cache: make(map[string]models.Finding)}
}

// Session is the per-investigation probe executor. Identical invocations
// (same source, capability, canonical params) within one session return
// the cached finding instead of re-probing.
type Session struct {
	registry *Registry
	mu       sync.Mutex
	cache    map[string]models.Finding
}

// Invoke runs one probe and returns its finding. Probe-level failures are
// findings, never Go errors; an error return means the (source, capability)
// pair is not registered at all.
func (s *Session) Invoke(ctx context.Context, source, capability string, bag *models.IdentifierBag) (models.Finding, error) {
	r := s.registry
	desc, ok := r.catalog[capability]
	if !ok {
		return models.Finding{}, fmt.Errorf("%w: %s", ErrUnknownCapability, capability)
	}
	if desc.Source != source {
		return models.Finding{}, fmt.Errorf("%w: %s does not provide %s", ErrUnknownSource, source, capability)
	}
	src := r.sources[source]

	now := time.Now()
	params, missing := FillParams(desc, bag, now)
	if len(missing) > 0 {
		return s.finish(skippedFinding(desc, params, now, skipReason(missing))), nil
	}
	window := clampWindow(desc, params, now)

	id := models.FindingID(source, capability, params)
	s.mu.Lock()
	if cached, ok := s.cache[id]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	finding := s.execute(ctx, src, desc, params, id, window)

	s.mu.Lock()
	// First completed execution wins if two callers raced on the same probe.
	if cached, ok := s.cache[id]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.cache[id] = finding
	s.mu.Unlock()
	return finding, nil
}

func (s *Session) execute(
	ctx context.Context,
	src Source,
	desc Descriptor,
	params map[string]any,
	id string,
	window *models.QueryWindow,
) models.Finding {
	r := s.registry
	deadline := r.cfg.ProbeDeadlineFor(desc.Capability)
	probeCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	started := time.Now()
	result, err := r.breakers.execute(desc.Source, func() (*Result, error) {
		return src.Probe(probeCtx, desc.Capability, params)
	})
	latency := time.Since(started)

	finding := models.Finding{
		ID:         id,
		Source:     desc.Source,
		Capability: desc.Capability,
		ProducedAt: started,
		LatencyMS:  latency.Milliseconds(),
		Supports:   models.SupportsUnknown,
		Window:     window,
	}

	switch {
	case err != nil && errors.Is(err, errBreakerOpen):
		finding.Outcome = models.OutcomeSkipped
		finding.Summary = fmt.Sprintf("%s skipped: circuit open after repeated failures", desc.Capability)
	case err != nil && (errors.Is(err, context.DeadlineExceeded) || probeCtx.Err() == context.DeadlineExceeded):
		finding.Outcome = models.OutcomeTimeout
		finding.Summary = fmt.Sprintf("%s timed out after %s", desc.Capability, deadline)
	case err != nil:
		finding.Outcome = models.OutcomeError
		finding.Summary = fmt.Sprintf("%s failed: %s", desc.Capability, err)
	default:
		finding.Outcome = result.Outcome
		if finding.Outcome == "" {
			finding.Outcome = models.OutcomeOK
		}
		finding.Payload = result.Payload
		finding.Summary = result.Summary
		if result.Supports != "" {
			finding.Supports = result.Supports
		}
	}

	if r.observer != nil {
		r.observer.ObserveProbe(desc.Source, desc.Capability, finding.Outcome, latency.Seconds())
	}
	slog.Debug("Probe completed",
		"source", desc.Source,
		"capability", desc.Capability,
		"outcome", finding.Outcome,
		"latency_ms", finding.LatencyMS)
	return finding
}

// finish caches a locally-produced (non-executed) finding such as a
// parameter-skip, so reruns of the same probe return the same finding.
func (s *Session) finish(f models.Finding) models.Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[f.ID]; ok {
		return cached
	}
	s.cache[f.ID] = f
	return f
}

func skippedFinding(desc Descriptor, params map[string]any, at time.Time, reason string) models.Finding {
	return models.Finding{
		ID:         models.FindingID(desc.Source, desc.Capability, params),
		Source:     desc.Source,
		Capability: desc.Capability,
		ProducedAt: at,
		Outcome:    models.OutcomeSkipped,
		Summary:    reason,
		Supports:   models.SupportsUnknown,
	}
}
