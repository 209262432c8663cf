package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadwatch/loadwatch/pkg/config"
	"github.com/loadwatch/loadwatch/pkg/models"
)

func testRouter(t *testing.T) *router {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	r, err := newRouter(cfg.Routing)
	require.NoError(t, err)
	return r
}

func TestRoute(t *testing.T) {
	r := testRouter(t)

	tests := []struct {
		name        string
		description string
		modeHint    string
		intent      models.Intent
		domain      models.Domain
	}{
		{
			name:        "tracking issue over the road",
			description: "Truckload 607485162 is not tracking, driver ELD shows no updates",
			intent:      models.IntentTrackingIssue,
			domain:      models.DomainOverTheRoad,
		},
		{
			name:        "ocean tracking",
			description: "Container MSCU1234567 stopped updating, vessel departed last week",
			intent:      models.IntentTrackingIssue,
			domain:      models.DomainOcean,
		},
		{
			name:        "billing incident",
			description: "Customer disputes the detention invoice on load U110123982",
			intent:      models.IntentBilling,
			domain:      models.DomainUnknown,
		},
		{
			name:        "load creation",
			description: "EDI 204 load creation failed for shipper Walmart",
			intent:      models.IntentLoadCreation,
			domain:      models.DomainUnknown,
		},
		{
			name:        "unclassifiable",
			description: "hello there",
			intent:      models.IntentUnknown,
			domain:      models.DomainUnknown,
		},
		{
			name:        "mode hint overrides description",
			description: "load not tracking, truck driver unreachable",
			modeHint:    "ocean",
			intent:      models.IntentTrackingIssue,
			domain:      models.DomainOcean,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := r.route(tt.description, tt.modeHint)
			assert.Equal(t, tt.intent, decision.Intent)
			assert.Equal(t, tt.domain, decision.Domain)
			assert.Equal(t, string(tt.intent)+"."+string(tt.domain), decision.SkillID)
		})
	}
}

func TestRoute_ConfidenceAveragesBothTables(t *testing.T) {
	r := testRouter(t)

	// Two strong tracking patterns plus a domain match push confidence up.
	strong := r.route("Load is not tracking, no updates, tracking stopped yesterday for the truckload", "")
	assert.Equal(t, models.IntentTrackingIssue, strong.Intent)
	assert.GreaterOrEqual(t, strong.Confidence, 0.7)
	assert.NotEmpty(t, strong.MatchedPatterns)

	weak := r.route("stopped updating", "")
	assert.Equal(t, models.IntentTrackingIssue, weak.Intent)
	assert.True(t, weak.NeedsHumanReview(models.Thresholds{High: 0.85, Med: 0.60, Low: 0.10}),
		"single weak match stays below the review cutoff")
}

func TestRoute_ModeHintConfidence(t *testing.T) {
	r := testRouter(t)

	decision := r.route("no tracking and tracking stopped and not tracking for this load", "drayage")
	assert.Equal(t, models.DomainDrayage, decision.Domain)
	assert.Contains(t, decision.MatchedPatterns, "mode_hint:drayage")
}

func TestNewRouter_RejectsBadPattern(t *testing.T) {
	_, err := newRouter(config.RoutingTables{
		Intents: []config.RoutingPattern{{Pattern: "([", Tag: "tracking_issue", Weight: 0.5}},
		Domains: []config.RoutingPattern{{Pattern: "ocean", Tag: "ocean", Weight: 0.5}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid intent routing pattern")
}

func TestHintedDomain(t *testing.T) {
	assert.Equal(t, models.DomainOcean, hintedDomain("Ocean"))
	assert.Equal(t, models.DomainOverTheRoad, hintedDomain("truckload"))
	assert.Equal(t, models.DomainAir, hintedDomain("air"))
	assert.Equal(t, models.DomainUnknown, hintedDomain("hovercraft"))
	assert.Equal(t, models.DomainUnknown, hintedDomain(""))
}
