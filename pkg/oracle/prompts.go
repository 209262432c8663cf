package oracle

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/loadwatch/loadwatch/pkg/models"
)

const systemPrompt = `You are a root-cause analyst for a freight-visibility platform.
Shipments ("loads") are tracked through carrier portals, EDI files and webhooks;
incidents describe loads that stopped tracking, never tracked, or show bad data.
Answer every request with a single JSON document and nothing else.`

// knownIdentifierKeys is the vocabulary ExtractIdentifiers may return.
// Keys outside it are dropped during validation.
var knownIdentifierKeys = map[string]bool{
	models.KeyTrackingID:      true,
	models.KeyLoadNumber:      true,
	models.KeyTicketID:        true,
	models.KeyShipperID:       true,
	models.KeyCarrierID:       true,
	models.KeyShipperName:     true,
	models.KeyCarrierName:     true,
	models.KeyContainerNumber: true,
	models.KeyBookingNumber:   true,
	models.KeySubscriptionID:  true,
	models.KeyMode:            true,
}

func identifierKeyList() string {
	keys := make([]string, 0, len(knownIdentifierKeys))
	for k := range knownIdentifierKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

func categoryList() string {
	cats := models.Categories()
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func extractPrompt(description string) string {
	return fmt.Sprintf(`Extract shipment identifiers from this incident description.

Incident:
%s

Reply with JSON: {"identifiers": {"<key>": "<value>"}}.
Allowed keys: %s.
Only include identifiers literally present in the text. Values are strings.`,
		description, identifierKeyList())
}

func proposePrompt(incident models.Incident, identifiers map[string]string, seed []models.Finding, capabilities []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Form root-cause hypotheses for this shipment-tracking incident.\n\nIncident:\n%s\n", incident.Description)
	if len(identifiers) > 0 {
		ids, _ := json.Marshal(identifiers)
		fmt.Fprintf(&b, "\nKnown identifiers: %s\n", ids)
	}
	if len(seed) > 0 {
		b.WriteString("\nSeed evidence:\n")
		writeFindings(&b, seed)
	}
	fmt.Fprintf(&b, `
Reply with JSON: {"hypotheses": [{"description": "...", "category": "...", "confidence": 0.0, "probes": ["capability", ...]}]}.
Propose 2 to 5 hypotheses. Categories must come from: %s.
Probe capabilities must come from: %s.
Confidences are independent likelihoods in [0,1]; they need not sum to 1.`,
		categoryList(), strings.Join(capabilities, ", "))
	return b.String()
}

func rescorePrompt(hyp models.Hypothesis, finding models.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Re-evaluate a hypothesis against new evidence.\n\nHypothesis (current confidence %.2f): %s\nCategory: %s\n",
		hyp.Confidence, hyp.Description, hyp.Category)
	fmt.Fprintf(&b, "\nNew finding from %s/%s (outcome %s):\n%s\n", finding.Source, finding.Capability, finding.Outcome, finding.Summary)
	if len(finding.Payload) > 0 {
		payload, _ := json.Marshal(finding.Payload)
		fmt.Fprintf(&b, "Payload: %s\n", payload)
	}
	b.WriteString(`
Reply with JSON: {"confidence": 0.0, "supports": "support|contradict|unknown", "note": "..."}.
"confidence" is the updated likelihood of the hypothesis in [0,1].
"supports" says whether this finding supports or contradicts the hypothesis.`)
	return b.String()
}

func decidePrompt(in DecideInput, capabilities []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Choose the next investigative step for one hypothesis.\n\nHypothesis (confidence %.2f, status %s): %s\nCategory: %s\n",
		in.Hypothesis.Confidence, in.Hypothesis.Status, in.Hypothesis.Description, in.Hypothesis.Category)
	fmt.Fprintf(&b, "Iteration %d; %d iterations remain.\n", in.Iteration, in.Remaining)
	if len(in.Findings) > 0 {
		b.WriteString("\nEvidence gathered so far:\n")
		writeFindings(&b, in.Findings)
	}
	fmt.Fprintf(&b, "\nAvailable probe capabilities: %s.\n", strings.Join(capabilities, ", "))
	b.WriteString(`
Reply with JSON, one of:
  {"action": "probe", "capability": "...", "reason": "..."}
  {"action": "conclude", "reason": "..."}`)
	if in.CanSpawn {
		fmt.Fprintf(&b, `
  {"action": "spawn_child", "child": {"description": "...", "category": "..."}, "reason": "..."}
Spawn a child only for a genuinely distinct sub-cause. Child categories come from: %s.`, categoryList())
	}
	b.WriteString("\nDo not repeat probes that already produced findings above.")
	return b.String()
}

func synthesizePrompt(incident models.Incident, hyps []models.Hypothesis, findings []models.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the final root-cause assessment for this incident.\n\nIncident:\n%s\n\nHypotheses after investigation:\n", incident.Description)
	for _, h := range hyps {
		fmt.Fprintf(&b, "- [%s] %s (category %s, confidence %.2f)\n", h.Status, h.Description, h.Category, h.Confidence)
	}
	if len(findings) > 0 {
		b.WriteString("\nEvidence:\n")
		writeFindings(&b, findings)
	}
	fmt.Fprintf(&b, `
Reply with JSON: {"root_cause": "...", "category": "...", "confidence": 0.0,
 "explanation": "...", "recommended_actions": ["..."],
 "remaining_uncertainties": ["..."], "evidence_refs": ["finding id", ...]}.
Categories must come from: %s. Cite evidence by the finding ids shown above.`, categoryList())
	return b.String()
}

func writeFindings(b *strings.Builder, findings []models.Finding) {
	for _, f := range findings {
		fmt.Fprintf(b, "- [%s] %s/%s (%s): %s\n", f.ID, f.Source, f.Capability, f.Outcome, f.Summary)
	}
}
