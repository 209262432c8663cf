package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Outcome classifies how a probe invocation ended.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeNotFound Outcome = "not_found"
	OutcomeError    Outcome = "error"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeSkipped  Outcome = "skipped"
)

// SupportsHint is the adapter's own rough read of whether the finding
// supports or contradicts the hypothesis under test. The oracle's rescore
// is authoritative; this is advisory only.
type SupportsHint string

const (
	SupportsSupport    SupportsHint = "support"
	SupportsContradict SupportsHint = "contradict"
	SupportsUnknown    SupportsHint = "unknown"
)

// Finding is the immutable record of one probe invocation.
// Identity is derived from (source, capability, canonicalized params) so
// reruns with identical inputs merge into one finding per investigation.
type Finding struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Capability string         `json:"capability"`
	ProducedAt time.Time      `json:"produced_at"`
	LatencyMS  int64          `json:"latency_ms"`
	Outcome    Outcome        `json:"outcome"`
	Payload    map[string]any `json:"payload,omitempty"`
	Summary    string         `json:"summary"`
	Supports   SupportsHint   `json:"supports_hint"`

	// Window records the actual time window a time-bounded query used,
	// after retention clamping. Nil for untimed probes.
	Window *QueryWindow `json:"window,omitempty"`
}

// QueryWindow is the effective time window of a time-bounded probe.
type QueryWindow struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Clamped bool      `json:"clamped"`
}

// FindingID computes the identity hash for a probe invocation.
// Parameters are canonicalized (sorted keys, JSON-encoded values) before
// hashing, so logically identical invocations always collide.
func FindingID(source, capability string, params map[string]any) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", source, capability)
	h.Write(CanonicalParams(params))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// CanonicalParams returns a deterministic byte encoding of a parameter bag:
// keys sorted, values JSON-encoded. Idempotent by construction — encoding
// the decoded form yields the same bytes.
func CanonicalParams(params map[string]any) []byte {
	if len(params) == 0 {
		return []byte("{}")
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := []byte("{")
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, _ := json.Marshal(k)
		vb, err := json.Marshal(params[k])
		if err != nil {
			// Unencodable values degrade to their Go string form.
			vb, _ = json.Marshal(fmt.Sprintf("%v", params[k]))
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	return append(buf, '}')
}
