package oracle

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/loadwatch/loadwatch/pkg/models"
)

// fallback implements every oracle capability with deterministic
// heuristics. The client drops to these per call when the model is
// unreachable, times out, or returns something unusable.
type fallback struct {
	caps *capabilityIndex
}

// DefaultProposals returns the deterministic stock hypothesis set with
// suggested probes filtered to the registered capabilities. Callers use
// it when their oracle fails to propose anything usable.
func DefaultProposals(view CapabilityView) []Proposal {
	return fallback{caps: newCapabilityIndex(view)}.proposeHypotheses()
}

var (
	trackingIDPattern = regexp.MustCompile(`\b(\d{6,12})\b`)
	loadNumberPattern = regexp.MustCompile(`\b([A-Z]{1,4}\d{6,12})\b`)
	containerPattern  = regexp.MustCompile(`\b([A-Z]{4}\d{7})\b`)
)

var modeKeywords = map[string]string{
	"ocean":    "ocean",
	"vessel":   "ocean",
	"drayage":  "drayage",
	"air":      "air",
	"truck":    "over-the-road",
	"otr":      "over-the-road",
	"trucking": "over-the-road",
}

func (f fallback) extractIdentifiers(description string) map[string]string {
	out := make(map[string]string)
	container := containerPattern.FindString(description)
	if container != "" {
		out[models.KeyContainerNumber] = container
	}
	// Container numbers also match the load-number shape; skip them.
	for _, m := range loadNumberPattern.FindAllString(description, -1) {
		if m != container {
			out[models.KeyLoadNumber] = m
			break
		}
	}
	if m := trackingIDPattern.FindString(description); m != "" {
		out[models.KeyTrackingID] = m
	}
	lower := strings.ToLower(description)
	for keyword, mode := range modeKeywords {
		if strings.Contains(lower, keyword) {
			out[models.KeyMode] = mode
			break
		}
	}
	return out
}

// defaultProposals is the stock hypothesis set for tracking incidents:
// the handful of causes that together explain most real tickets. Each
// gets a neutral prior; evidence moves them apart.
func (f fallback) proposeHypotheses() []Proposal {
	stock := []struct {
		description string
		category    models.Category
		probes      []string
	}{
		{
			description: "No active network relationship exists between the shipper and carrier, so tracking was never initiated",
			category:    models.CategoryNetworkRelationshipMissing,
			probes:      []string{"network-relationship", "platform-load-lookup-by-id"},
		},
		{
			description: "The carrier portal scrape is failing, leaving the load without position updates",
			category:    models.CategoryCarrierPortalScrapeError,
			probes:      []string{"carrier-portal-scrape-history", "structured-log-search"},
		},
		{
			description: "The tracking subscription is inactive or was cancelled",
			category:    models.CategorySubscriptionInactive,
			probes:      []string{"platform-load-lookup-by-id", "carrier-portal-scrape-history"},
		},
		{
			description: "The load's tracking method is not enabled for this mode or carrier",
			category:    models.CategoryTrackingMethodNotEnabled,
			probes:      []string{"platform-load-lookup-by-id", "warehouse-load-validation"},
		},
		{
			description: "The load does not exist on the platform or was created with bad identifiers",
			category:    models.CategoryLoadNotFound,
			probes:      []string{"platform-load-lookup-by-number", "warehouse-load-validation"},
		},
	}

	proposals := make([]Proposal, 0, len(stock))
	for _, s := range stock {
		p := Proposal{
			Description: s.description,
			Category:    s.category,
			Confidence:  0.3,
		}
		for _, capability := range s.probes {
			if sug, ok := f.caps.suggestion(capability); ok {
				p.SuggestedProbes = append(p.SuggestedProbes, sug)
			}
		}
		proposals = append(proposals, p)
	}
	return proposals
}

// rescore nudges confidence from the finding outcome alone. Crude, but
// monotone and bounded, which is all the fallback promises.
func (f fallback) rescore(hyp models.Hypothesis, finding models.Finding) Rescore {
	confidence := hyp.Confidence
	supports := finding.Supports
	switch finding.Outcome {
	case models.OutcomeOK:
		switch supports {
		case models.SupportsSupport:
			confidence += 0.15
		case models.SupportsContradict:
			confidence -= 0.2
		}
	case models.OutcomeNotFound:
		// Absence is weak evidence either way; leave supports to the caller.
		supports = models.SupportsUnknown
	default:
		// Errors, timeouts and skips say nothing about the hypothesis.
		supports = models.SupportsUnknown
	}
	return Rescore{
		Confidence: models.ClampConfidence(confidence),
		Supports:   supports,
		Note:       fmt.Sprintf("heuristic rescore from %s outcome", finding.Outcome),
	}
}

// decideNext probes the first suggested probe not yet tried, then
// concludes. Child spawning needs real reasoning, so the fallback never
// spawns.
func (f fallback) decideNext(in DecideInput) NextAction {
	tried := make(map[string]bool, len(in.Findings))
	for _, fd := range in.Findings {
		tried[fd.Capability] = true
	}
	for _, sug := range in.Hypothesis.SuggestedProbes {
		if tried[sug.Capability] || !f.caps.has(sug.Capability) {
			continue
		}
		s := sug
		return NextAction{Kind: ActionProbe, Probe: &s, Reason: "untried suggested probe"}
	}
	return NextAction{Kind: ActionConclude, Reason: "no untried probes remain"}
}

// synthesize drafts the verdict from the best-scored hypothesis.
func (f fallback) synthesize(hyps []models.Hypothesis, findings []models.Finding) Synthesis {
	if len(hyps) == 0 {
		return Synthesis{
			RootCause:   "No hypotheses were investigated",
			Category:    models.CategoryUnknown,
			Explanation: "The investigation produced no hypotheses to assess.",
		}
	}

	sorted := make([]models.Hypothesis, len(hyps))
	copy(sorted, hyps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })
	best := sorted[0]

	var lines []string
	refs := make([]string, 0, len(best.EvidenceFor))
	seen := make(map[string]bool)
	for _, id := range best.EvidenceFor {
		refs = append(refs, id)
		seen[id] = true
	}
	supported := false
	for _, fd := range findings {
		if !seen[fd.ID] {
			continue
		}
		if fd.Outcome == models.OutcomeOK {
			supported = true
			if fd.Summary != "" {
				lines = append(lines, fd.Summary)
			}
		}
	}
	explanation := best.Description
	if len(lines) > 0 {
		explanation += ". Supporting evidence: " + strings.Join(lines, "; ")
	}

	// A hypothesis no completed probe ever backed cannot name the root
	// cause; the category degrades to unknown.
	category := best.Category
	if !supported {
		category = models.CategoryUnknown
		explanation += ". No probe produced evidence supporting this hypothesis."
	}

	var uncertainties []string
	for _, h := range sorted[1:] {
		if h.Status == models.HypothesisOpen {
			uncertainties = append(uncertainties, fmt.Sprintf("%s remains open at %.2f confidence", h.Description, h.Confidence))
		}
	}

	return Synthesis{
		RootCause:              best.Description,
		Category:               category,
		Confidence:             best.Confidence,
		Explanation:            explanation,
		RemainingUncertainties: uncertainties,
		EvidenceRefs:           refs,
	}
}
