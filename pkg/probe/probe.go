// Package probe is the uniform façade over the heterogeneous data sources
// an investigation may query. Each source exposes named capabilities; the
// registry validates parameters, enforces per-capability deadlines, clamps
// time windows into source retention, memoizes results per investigation,
// and trips a circuit breaker on repeatedly failing sources.
//
// Every capability is read-only against the external system.
package probe

import (
	"context"
	"errors"

	"github.com/loadwatch/loadwatch/pkg/models"
)

// Sentinel errors for registry operations. Unknown names fail fast —
// they indicate a wiring bug, not a runtime condition.
var (
	ErrUnknownSource     = errors.New("source not registered")
	ErrUnknownCapability = errors.New("capability not registered")
)

// Result is what a source adapter returns from one probe.
// Outcome defaults to ok when empty.
type Result struct {
	Outcome  models.Outcome
	Payload  map[string]any
	Summary  string
	Supports models.SupportsHint
}

// Source is one external data system. Adapter implementations live outside
// this module; the registry only needs this contract plus the catalog
// descriptors. Implementations must be safe for concurrent callers and
// must not share connection state between concurrent Probe calls.
type Source interface {
	// Name returns the registry name of the source.
	Name() string

	// Probe executes one capability. ctx carries the per-probe deadline;
	// implementations must return promptly on ctx cancellation.
	// Returning an error marks the finding outcome=error (or timeout when
	// the deadline expired); a nil error with Result.Outcome=not_found is
	// the way to report a clean miss.
	Probe(ctx context.Context, capability string, params map[string]any) (*Result, error)
}

// Observer receives probe timing for metrics. Implementations must be
// cheap and non-blocking; nil observers are allowed everywhere.
type Observer interface {
	ObserveProbe(source, capability string, outcome models.Outcome, seconds float64)
}
