package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadwatch/loadwatch/pkg/config"
	"github.com/loadwatch/loadwatch/pkg/models"
	"github.com/loadwatch/loadwatch/pkg/probe"
)

// staticView is a minimal CapabilityView for tests.
type staticView struct {
	caps map[string]string // capability → source
}

func (v staticView) CapabilityNames() []string {
	names := make([]string, 0, len(v.caps))
	for c := range v.caps {
		names = append(names, c)
	}
	return names
}

func (v staticView) Describe(capability string) (probe.Descriptor, bool) {
	source, ok := v.caps[capability]
	if !ok {
		return probe.Descriptor{}, false
	}
	return probe.Descriptor{Source: source, Capability: capability}, true
}

func testView() staticView {
	return staticView{caps: map[string]string{
		probe.CapLoadLookupByID:  probe.SourcePlatform,
		probe.CapNetworkRelation: probe.SourceNetwork,
		probe.CapScrapeHistory:   probe.SourceCarrierPortal,
	}}
}

// chatServer answers every chat-completions call with the given content.
func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func clientFor(baseURL string) *Client {
	return NewClient(&config.Config{
		Oracle:        config.OracleConfig{BaseURL: baseURL, Model: "test-model"},
		OracleTimeout: 5 * time.Second,
	}, testView())
}

func TestExtractIdentifiers_DropsUnknownKeys(t *testing.T) {
	srv := chatServer(t, "```json\n"+`{"identifiers": {"tracking_id": "607485162", "favorite_color": "blue", "mode": "ocean"}}`+"\n```")
	client := clientFor(srv.URL)

	ids, err := client.ExtractIdentifiers(context.Background(), "load 607485162 stopped tracking")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		models.KeyTrackingID: "607485162",
		models.KeyMode:       "ocean",
	}, ids)
}

func TestExtractIdentifiers_BareMapAccepted(t *testing.T) {
	srv := chatServer(t, `{"load_number": "U110123982"}`)
	client := clientFor(srv.URL)

	ids, err := client.ExtractIdentifiers(context.Background(), "load U110123982")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{models.KeyLoadNumber: "U110123982"}, ids)
}

func TestExtractIdentifiers_FallbackOnGarbage(t *testing.T) {
	srv := chatServer(t, "I could not find any identifiers, sorry!")
	client := clientFor(srv.URL)

	ids, err := client.ExtractIdentifiers(context.Background(), "ocean load 607485162 stopped tracking")
	require.NoError(t, err)
	assert.Equal(t, "607485162", ids[models.KeyTrackingID])
	assert.Equal(t, "ocean", ids[models.KeyMode])
}

func TestExtractIdentifiers_Unconfigured(t *testing.T) {
	client := clientFor("")

	ids, err := client.ExtractIdentifiers(context.Background(), "container MSCU1234567 on load U110123982")
	require.NoError(t, err)
	assert.Equal(t, "MSCU1234567", ids[models.KeyContainerNumber])
	assert.Equal(t, "U110123982", ids[models.KeyLoadNumber])
}

func TestProposeHypotheses_ValidatesCategoriesAndProbes(t *testing.T) {
	srv := chatServer(t, `{"hypotheses": [
		{"description": "No network relationship", "category": "network_relationship_missing", "confidence": 0.5,
		 "probes": ["network-relationship", "invented-probe"]},
		{"description": "Aliens", "category": "alien_interference", "confidence": 3.0, "probes": []},
		{"description": "", "category": "load_not_found", "confidence": 0.4}
	]}`)
	client := clientFor(srv.URL)

	proposals, err := client.ProposeHypotheses(context.Background(), models.Incident{Description: "x"}, nil, nil)
	require.NoError(t, err)
	require.Len(t, proposals, 2, "empty descriptions dropped")

	assert.Equal(t, models.CategoryNetworkRelationshipMissing, proposals[0].Category)
	require.Len(t, proposals[0].SuggestedProbes, 1, "invented probes dropped")
	assert.Equal(t, probe.SourceNetwork, proposals[0].SuggestedProbes[0].Source)

	assert.Equal(t, models.CategoryUnknown, proposals[1].Category, "off-vocabulary categories map to unknown")
	assert.Equal(t, 1.0, proposals[1].Confidence, "confidence clamped")
}

func TestProposeHypotheses_StockSetWhenEmpty(t *testing.T) {
	srv := chatServer(t, `{"hypotheses": []}`)
	client := clientFor(srv.URL)

	proposals, err := client.ProposeHypotheses(context.Background(), models.Incident{Description: "x"}, nil, nil)
	require.NoError(t, err)
	require.Len(t, proposals, 5)
	for _, p := range proposals {
		assert.True(t, p.Category.Valid())
		assert.Equal(t, 0.3, p.Confidence)
		for _, sug := range p.SuggestedProbes {
			assert.True(t, testView().caps[sug.Capability] != "", "stock probes limited to registered capabilities")
		}
	}
}

func TestRescoreHypothesis_Validation(t *testing.T) {
	srv := chatServer(t, `{"confidence": 1.7, "supports": "definitely!", "note": "n"}`)
	client := clientFor(srv.URL)

	hyp := models.Hypothesis{ID: "h1", Confidence: 0.4}
	rescore, err := client.RescoreHypothesis(context.Background(), hyp, models.Finding{ID: "f1"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, rescore.Confidence)
	assert.Equal(t, models.SupportsUnknown, rescore.Supports)
}

func TestRescoreHypothesis_HeuristicFallback(t *testing.T) {
	srv := chatServer(t, `{"note": "no confidence field"}`)
	client := clientFor(srv.URL)

	hyp := models.Hypothesis{ID: "h1", Confidence: 0.4}
	finding := models.Finding{ID: "f1", Outcome: models.OutcomeOK, Supports: models.SupportsSupport}
	rescore, err := client.RescoreHypothesis(context.Background(), hyp, finding)
	require.NoError(t, err)
	assert.InDelta(t, 0.55, rescore.Confidence, 1e-9, "supporting finding nudges confidence up")
}

func TestDecideNext_ProbeValidated(t *testing.T) {
	srv := chatServer(t, `{"action": "probe", "capability": "network-relationship", "reason": "check the relation"}`)
	client := clientFor(srv.URL)

	action, err := client.DecideNext(context.Background(), DecideInput{Hypothesis: models.Hypothesis{ID: "h1"}})
	require.NoError(t, err)
	assert.Equal(t, ActionProbe, action.Kind)
	require.NotNil(t, action.Probe)
	assert.Equal(t, probe.SourceNetwork, action.Probe.Source)
}

func TestDecideNext_UnknownProbeConcludes(t *testing.T) {
	srv := chatServer(t, `{"action": "probe", "capability": "Carrier Portal"}`)
	client := clientFor(srv.URL)

	in := DecideInput{Hypothesis: models.Hypothesis{
		ID:              "h1",
		SuggestedProbes: []models.ProbeSuggestion{{Source: probe.SourcePlatform, Capability: probe.CapLoadLookupByID}},
	}}
	action, err := client.DecideNext(context.Background(), in)
	require.NoError(t, err)

	// Invalid output is not rescued with a guessed probe; the action is
	// rewritten to a conclusion.
	assert.Equal(t, ActionConclude, action.Kind)
	assert.Equal(t, "no valid source", action.Reason)
	assert.Nil(t, action.Probe)
}

func TestDecideNext_SpawnRequiresBudget(t *testing.T) {
	srv := chatServer(t, `{"action": "spawn_child", "child": {"description": "scrape failing", "category": "carrier_portal_scrape_error"}}`)
	client := clientFor(srv.URL)

	action, err := client.DecideNext(context.Background(), DecideInput{Hypothesis: models.Hypothesis{ID: "h1"}, CanSpawn: true})
	require.NoError(t, err)
	assert.Equal(t, ActionSpawnChild, action.Kind)
	require.NotNil(t, action.Child)
	assert.Equal(t, models.CategoryCarrierPortalScrapeError, action.Child.Category)

	action, err = client.DecideNext(context.Background(), DecideInput{Hypothesis: models.Hypothesis{ID: "h1"}, CanSpawn: false})
	require.NoError(t, err)
	assert.Equal(t, ActionConclude, action.Kind, "spawn at depth limit degrades to the heuristic path")
}

func TestSynthesize_FiltersEvidenceRefs(t *testing.T) {
	srv := chatServer(t, `{"root_cause": "scrape failing", "category": "carrier_portal_scrape_error",
		"confidence": 0.9, "explanation": "e", "evidence_refs": ["f1", "ghost"]}`)
	client := clientFor(srv.URL)

	findings := []models.Finding{{ID: "f1"}}
	syn, err := client.Synthesize(context.Background(), models.Incident{Description: "x"}, nil, findings)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, syn.EvidenceRefs, "citations of nonexistent findings dropped")
	assert.Equal(t, models.CategoryCarrierPortalScrapeError, syn.Category)
}

func TestSynthesize_FallbackPicksBestHypothesis(t *testing.T) {
	client := clientFor("")

	hyps := []models.Hypothesis{
		{ID: "h1", Description: "weak", Category: models.CategoryLoadNotFound, Confidence: 0.2, Status: models.HypothesisOpen},
		{ID: "h2", Description: "scrape failing", Category: models.CategoryCarrierPortalScrapeError, Confidence: 0.9,
			Status: models.HypothesisConfirmed, EvidenceFor: []string{"f1"}},
	}
	findings := []models.Finding{{ID: "f1", Outcome: models.OutcomeOK, Summary: "5 consecutive scrape failures"}}

	syn, err := client.Synthesize(context.Background(), models.Incident{Description: "x"}, hyps, findings)
	require.NoError(t, err)
	assert.Equal(t, "scrape failing", syn.RootCause)
	assert.Equal(t, models.CategoryCarrierPortalScrapeError, syn.Category)
	assert.Equal(t, []string{"f1"}, syn.EvidenceRefs)
	assert.Contains(t, syn.Explanation, "5 consecutive scrape failures")
	require.Len(t, syn.RemainingUncertainties, 1)
	assert.Contains(t, syn.RemainingUncertainties[0], "weak")
}

func TestSynthesize_FallbackUnsupportedHypothesisDegradesToUnknown(t *testing.T) {
	client := clientFor("")

	// Every probe timed out; no finding ever backed the front-runner.
	hyps := []models.Hypothesis{
		{ID: "h1", Description: "relationship missing", Category: models.CategoryNetworkRelationshipMissing,
			Confidence: 0.3, Status: models.HypothesisOpen, EvidenceFor: []string{"f1", "f2"}},
	}
	findings := []models.Finding{
		{ID: "f1", Outcome: models.OutcomeTimeout},
		{ID: "f2", Outcome: models.OutcomeError},
	}

	syn, err := client.Synthesize(context.Background(), models.Incident{Description: "x"}, hyps, findings)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryUnknown, syn.Category)
	assert.Contains(t, syn.Explanation, "No probe produced evidence")
}

func TestOracleHTTPErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error": {"message": "upstream exploded"}}`))
	}))
	t.Cleanup(srv.Close)
	client := clientFor(srv.URL)

	proposals, err := client.ProposeHypotheses(context.Background(), models.Incident{Description: "x"}, nil, nil)
	require.NoError(t, err)
	assert.Len(t, proposals, 5, "API failure lands on the stock set")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "bare object", raw: `{"a": 1}`, want: `{"a": 1}`},
		{name: "fenced", raw: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "prose around object", raw: `Sure! Here it is: {"a": 1} Hope that helps.`, want: `{"a": 1}`},
		{name: "array", raw: `[1, 2]`, want: `[1, 2]`},
		{name: "no json", raw: "nothing here", wantErr: true},
		{name: "unterminated", raw: `{"a": 1`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
