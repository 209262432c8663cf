package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/loadwatch/loadwatch/pkg/config"
	"github.com/loadwatch/loadwatch/pkg/models"
)

// Client talks to a chat-completions endpoint and validates everything
// the model says before it touches an investigation. With no base URL
// configured the client runs entirely on its deterministic fallbacks.
type Client struct {
	cfg        config.OracleConfig
	timeout    time.Duration
	httpClient *http.Client
	caps       *capabilityIndex
	fb         fallback
}

var _ Oracle = (*Client)(nil)

// NewClient builds the oracle client. view is the probe registry slice
// used to validate probe suggestions.
func NewClient(cfg *config.Config, view CapabilityView) *Client {
	idx := newCapabilityIndex(view)
	c := &Client{
		cfg:        cfg.Oracle,
		timeout:    cfg.OracleTimeout,
		httpClient: &http.Client{Timeout: cfg.OracleTimeout},
		caps:       idx,
		fb:         fallback{caps: idx},
	}
	if c.cfg.BaseURL == "" {
		slog.Warn("Oracle base URL not configured, reasoning runs on deterministic fallbacks")
	}
	return c
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// chat runs one chat-completions round trip and returns the assistant
// message content.
func (c *Client) chat(ctx context.Context, user string) (string, error) {
	if c.cfg.BaseURL == "" {
		return "", fmt.Errorf("oracle not configured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := c.cfg.APIKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read oracle response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr chatError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("oracle API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("oracle API error (%d)", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse oracle response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("oracle returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) endpoint() string {
	base := strings.TrimSuffix(c.cfg.BaseURL, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

// ExtractIdentifiers implements Oracle.
func (c *Client) ExtractIdentifiers(ctx context.Context, description string) (map[string]string, error) {
	raw, err := c.chat(ctx, extractPrompt(description))
	if err != nil {
		slog.Warn("Oracle extract_identifiers failed, using pattern fallback", "error", err)
		return c.fb.extractIdentifiers(description), nil
	}

	var reply struct {
		Identifiers map[string]string `json:"identifiers"`
	}
	if err := decodeReply(raw, &reply); err != nil || reply.Identifiers == nil {
		// Some models return the map directly.
		var direct map[string]string
		if err2 := decodeReply(raw, &direct); err2 != nil {
			slog.Warn("Oracle extract_identifiers unparseable, using pattern fallback", "error", err)
			return c.fb.extractIdentifiers(description), nil
		}
		reply.Identifiers = direct
	}

	out := make(map[string]string, len(reply.Identifiers))
	for key, value := range reply.Identifiers {
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if !knownIdentifierKeys[key] || value == "" {
			continue
		}
		out[key] = value
	}
	return out, nil
}

// ProposeHypotheses implements Oracle.
func (c *Client) ProposeHypotheses(ctx context.Context, incident models.Incident, identifiers map[string]string, seed []models.Finding) ([]Proposal, error) {
	raw, err := c.chat(ctx, proposePrompt(incident, identifiers, seed, c.caps.names))
	if err != nil {
		slog.Warn("Oracle propose_hypotheses failed, using stock hypothesis set", "error", err)
		return c.fb.proposeHypotheses(), nil
	}

	var reply struct {
		Hypotheses []struct {
			Description string   `json:"description"`
			Category    string   `json:"category"`
			Confidence  float64  `json:"confidence"`
			Probes      []string `json:"probes"`
		} `json:"hypotheses"`
	}
	if err := decodeReply(raw, &reply); err != nil {
		slog.Warn("Oracle propose_hypotheses unparseable, using stock hypothesis set", "error", err)
		return c.fb.proposeHypotheses(), nil
	}

	proposals := make([]Proposal, 0, len(reply.Hypotheses))
	for _, h := range reply.Hypotheses {
		desc := strings.TrimSpace(h.Description)
		if desc == "" {
			continue
		}
		p := Proposal{
			Description: desc,
			Category:    models.ParseCategory(h.Category),
			Confidence:  models.ClampConfidence(h.Confidence),
		}
		for _, capability := range h.Probes {
			if sug, ok := c.caps.suggestion(strings.TrimSpace(capability)); ok {
				p.SuggestedProbes = append(p.SuggestedProbes, sug)
			}
		}
		proposals = append(proposals, p)
		if len(proposals) == maxProposals {
			break
		}
	}
	if len(proposals) == 0 {
		slog.Warn("Oracle proposed no usable hypotheses, using stock hypothesis set")
		return c.fb.proposeHypotheses(), nil
	}
	return proposals, nil
}

// RescoreHypothesis implements Oracle.
func (c *Client) RescoreHypothesis(ctx context.Context, hyp models.Hypothesis, finding models.Finding) (Rescore, error) {
	raw, err := c.chat(ctx, rescorePrompt(hyp, finding))
	if err != nil {
		slog.Warn("Oracle rescore failed, using heuristic rescore", "hypothesis", hyp.ID, "error", err)
		return c.fb.rescore(hyp, finding), nil
	}

	var reply struct {
		Confidence *float64 `json:"confidence"`
		Supports   string   `json:"supports"`
		Note       string   `json:"note"`
	}
	if err := decodeReply(raw, &reply); err != nil || reply.Confidence == nil {
		slog.Warn("Oracle rescore unparseable, using heuristic rescore", "hypothesis", hyp.ID)
		return c.fb.rescore(hyp, finding), nil
	}

	supports := models.SupportsHint(strings.ToLower(strings.TrimSpace(reply.Supports)))
	switch supports {
	case models.SupportsSupport, models.SupportsContradict:
	default:
		supports = models.SupportsUnknown
	}
	return Rescore{
		Confidence: models.ClampConfidence(*reply.Confidence),
		Supports:   supports,
		Note:       reply.Note,
	}, nil
}

// DecideNext implements Oracle.
func (c *Client) DecideNext(ctx context.Context, in DecideInput) (NextAction, error) {
	raw, err := c.chat(ctx, decidePrompt(in, c.caps.names))
	if err != nil {
		slog.Warn("Oracle decide_next failed, using heuristic decision", "hypothesis", in.Hypothesis.ID, "error", err)
		return c.fb.decideNext(in), nil
	}

	var reply struct {
		Action     string `json:"action"`
		Capability string `json:"capability"`
		Child      *struct {
			Description string `json:"description"`
			Category    string `json:"category"`
		} `json:"child"`
		Reason string `json:"reason"`
	}
	if err := decodeReply(raw, &reply); err != nil {
		slog.Warn("Oracle decide_next unparseable, using heuristic decision", "hypothesis", in.Hypothesis.ID)
		return c.fb.decideNext(in), nil
	}

	switch ActionKind(strings.ToLower(strings.TrimSpace(reply.Action))) {
	case ActionProbe:
		sug, ok := c.caps.suggestion(strings.TrimSpace(reply.Capability))
		if !ok {
			// Naming an unregistered capability is invalid output, not a
			// transport failure; the action becomes a conclusion rather
			// than a guess at what the model meant.
			slog.Warn("Oracle suggested unknown probe, concluding",
				"hypothesis", in.Hypothesis.ID, "capability", reply.Capability)
			return NextAction{Kind: ActionConclude, Reason: "no valid source"}, nil
		}
		return NextAction{Kind: ActionProbe, Probe: &sug, Reason: reply.Reason}, nil
	case ActionSpawnChild:
		if !in.CanSpawn || reply.Child == nil || strings.TrimSpace(reply.Child.Description) == "" {
			return c.fb.decideNext(in), nil
		}
		return NextAction{
			Kind: ActionSpawnChild,
			Child: &ChildSpec{
				Description: strings.TrimSpace(reply.Child.Description),
				Category:    models.ParseCategory(reply.Child.Category),
			},
			Reason: reply.Reason,
		}, nil
	case ActionConclude:
		return NextAction{Kind: ActionConclude, Reason: reply.Reason}, nil
	default:
		slog.Warn("Oracle returned unknown action, using heuristic decision",
			"hypothesis", in.Hypothesis.ID, "action", reply.Action)
		return c.fb.decideNext(in), nil
	}
}

// Synthesize implements Oracle.
func (c *Client) Synthesize(ctx context.Context, incident models.Incident, hyps []models.Hypothesis, findings []models.Finding) (Synthesis, error) {
	raw, err := c.chat(ctx, synthesizePrompt(incident, hyps, findings))
	if err != nil {
		slog.Warn("Oracle synthesize failed, using deterministic synthesis", "error", err)
		return c.fb.synthesize(hyps, findings), nil
	}

	var reply Synthesis
	if err := decodeReply(raw, &reply); err != nil || strings.TrimSpace(reply.RootCause) == "" {
		slog.Warn("Oracle synthesis unparseable, using deterministic synthesis")
		return c.fb.synthesize(hyps, findings), nil
	}

	reply.Category = models.ParseCategory(string(reply.Category))
	reply.Confidence = models.ClampConfidence(reply.Confidence)

	// Citations must point at findings that actually exist.
	known := make(map[string]bool, len(findings))
	for _, f := range findings {
		known[f.ID] = true
	}
	refs := reply.EvidenceRefs[:0]
	for _, ref := range reply.EvidenceRefs {
		if known[ref] {
			refs = append(refs, ref)
		}
	}
	reply.EvidenceRefs = refs
	return reply, nil
}

// maxProposals caps how many hypotheses one proposal round may create.
const maxProposals = 5
