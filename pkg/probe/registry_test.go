package probe_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadwatch/loadwatch/pkg/config"
	"github.com/loadwatch/loadwatch/pkg/models"
	"github.com/loadwatch/loadwatch/pkg/probe"
	"github.com/loadwatch/loadwatch/pkg/probe/probetest"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func newRegistry(t *testing.T, cfg *config.Config, sources ...probe.Source) *probe.Registry {
	t.Helper()
	if cfg == nil {
		cfg = testConfig(t)
	}
	return probe.NewRegistry(cfg, sources, nil)
}

func bagWith(pairs map[string]string) *models.IdentifierBag {
	return models.NewIdentifierBag(pairs)
}

func TestInvoke_UnknownCapability(t *testing.T) {
	session := newRegistry(t, nil, probetest.NewFakeSource(probe.SourcePlatform)).NewSession()

	_, err := session.Invoke(context.Background(), probe.SourcePlatform, "made-up-probe", bagWith(nil))
	assert.ErrorIs(t, err, probe.ErrUnknownCapability)
}

func TestInvoke_SourceCapabilityMismatch(t *testing.T) {
	platform := probetest.NewFakeSource(probe.SourcePlatform)
	network := probetest.NewFakeSource(probe.SourceNetwork)
	session := newRegistry(t, nil, platform, network).NewSession()

	_, err := session.Invoke(context.Background(), probe.SourceNetwork, probe.CapLoadLookupByID, bagWith(nil))
	assert.ErrorIs(t, err, probe.ErrUnknownSource)
}

func TestInvoke_Success(t *testing.T) {
	src := probetest.NewFakeSource(probe.SourcePlatform).
		StubOK(probe.CapLoadLookupByID, "load 607485162 found, status in_transit", map[string]any{
			"status":      "in_transit",
			"load_number": "U110123982",
		})
	session := newRegistry(t, nil, src).NewSession()
	bag := bagWith(map[string]string{models.KeyTrackingID: "607485162"})

	finding, err := session.Invoke(context.Background(), probe.SourcePlatform, probe.CapLoadLookupByID, bag)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeOK, finding.Outcome)
	assert.Equal(t, probe.SourcePlatform, finding.Source)
	assert.Equal(t, probe.CapLoadLookupByID, finding.Capability)
	assert.Equal(t, "in_transit", finding.Payload["status"])
	assert.NotEmpty(t, finding.ID)

	calls := src.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 607485162, calls[0].Params["tracking_id"])
}

func TestInvoke_MemoizesIdenticalProbes(t *testing.T) {
	src := probetest.NewFakeSource(probe.SourcePlatform).
		StubOK(probe.CapLoadLookupByID, "found", map[string]any{"status": "in_transit"})
	session := newRegistry(t, nil, src).NewSession()
	bag := bagWith(map[string]string{models.KeyTrackingID: "607485162"})

	first, err := session.Invoke(context.Background(), probe.SourcePlatform, probe.CapLoadLookupByID, bag)
	require.NoError(t, err)
	second, err := session.Invoke(context.Background(), probe.SourcePlatform, probe.CapLoadLookupByID, bag)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ProducedAt, second.ProducedAt, "second invocation returns the cached finding")
	assert.Equal(t, 1, src.CallCount(probe.CapLoadLookupByID), "identical probes hit the source once")
}

func TestInvoke_SeparateSessionsDoNotShareCache(t *testing.T) {
	src := probetest.NewFakeSource(probe.SourcePlatform)
	registry := newRegistry(t, nil, src)
	bag := bagWith(map[string]string{models.KeyTrackingID: "607485162"})

	_, err := registry.NewSession().Invoke(context.Background(), probe.SourcePlatform, probe.CapLoadLookupByID, bag)
	require.NoError(t, err)
	_, err = registry.NewSession().Invoke(context.Background(), probe.SourcePlatform, probe.CapLoadLookupByID, bag)
	require.NoError(t, err)

	assert.Equal(t, 2, src.CallCount(probe.CapLoadLookupByID))
}

func TestInvoke_ConcurrentIdenticalProbes(t *testing.T) {
	src := probetest.NewFakeSource(probe.SourcePlatform).
		Stub(probe.CapLoadLookupByID, probetest.Response{
			Result: &probe.Result{Outcome: models.OutcomeOK, Summary: "found"},
			Delay:  20 * time.Millisecond,
		})
	session := newRegistry(t, nil, src).NewSession()
	bag := bagWith(map[string]string{models.KeyTrackingID: "607485162"})

	var wg sync.WaitGroup
	findings := make([]models.Finding, 4)
	for i := range findings {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := session.Invoke(context.Background(), probe.SourcePlatform, probe.CapLoadLookupByID, bag)
			require.NoError(t, err)
			findings[i] = f
		}(i)
	}
	wg.Wait()

	for _, f := range findings[1:] {
		assert.Equal(t, findings[0].ID, f.ID)
	}
	// Racing callers may each execute, but every caller observes one finding.
	assert.GreaterOrEqual(t, src.CallCount(probe.CapLoadLookupByID), 1)
}

func TestInvoke_MissingParamsSkips(t *testing.T) {
	src := probetest.NewFakeSource(probe.SourceNetwork)
	session := newRegistry(t, nil, src).NewSession()
	// network-relationship needs shipper_id and carrier_id; give neither.
	bag := bagWith(map[string]string{models.KeyTrackingID: "607485162"})

	finding, err := session.Invoke(context.Background(), probe.SourceNetwork, probe.CapNetworkRelation, bag)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkipped, finding.Outcome)
	assert.Contains(t, finding.Summary, "missing required parameters")
	assert.Contains(t, finding.Summary, "shipper_id")
	assert.Empty(t, src.Calls(), "skipped probes never reach the source")

	// The skip is memoized like any other finding.
	again, err := session.Invoke(context.Background(), probe.SourceNetwork, probe.CapNetworkRelation, bag)
	require.NoError(t, err)
	assert.Equal(t, finding.ID, again.ID)
}

func TestInvoke_ErrorOutcome(t *testing.T) {
	src := probetest.NewFakeSource(probe.SourceWebhook).
		Stub(probe.CapWebhookHistory, probetest.Response{Err: errors.New("upstream 503")})
	session := newRegistry(t, nil, src).NewSession()
	bag := bagWith(map[string]string{models.KeyTrackingID: "607485162"})

	finding, err := session.Invoke(context.Background(), probe.SourceWebhook, probe.CapWebhookHistory, bag)
	require.NoError(t, err, "probe failures are findings, not errors")
	assert.Equal(t, models.OutcomeError, finding.Outcome)
	assert.Contains(t, finding.Summary, "upstream 503")
}

func TestInvoke_TimeoutOutcome(t *testing.T) {
	cfg := testConfig(t)
	cfg.ProbeDeadlines[probe.CapWebhookHistory] = 30 * time.Millisecond

	src := probetest.NewFakeSource(probe.SourceWebhook).
		Stub(probe.CapWebhookHistory, probetest.Response{
			Result: &probe.Result{Outcome: models.OutcomeOK},
			Delay:  500 * time.Millisecond,
		})
	session := newRegistry(t, cfg, src).NewSession()
	bag := bagWith(map[string]string{models.KeyTrackingID: "607485162"})

	finding, err := session.Invoke(context.Background(), probe.SourceWebhook, probe.CapWebhookHistory, bag)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeTimeout, finding.Outcome)
	assert.Contains(t, finding.Summary, "timed out")
}

func TestInvoke_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	src := probetest.NewFakeSource(probe.SourceCarrierPortal).
		Stub(probe.CapScrapeHistory, probetest.Response{Err: errors.New("portal unreachable")})
	session := newRegistry(t, nil, src).NewSession()

	for i := 0; i < 5; i++ {
		bag := bagWith(map[string]string{models.KeySubscriptionID: "sub-" + string(rune('a'+i))})
		finding, err := session.Invoke(context.Background(), probe.SourceCarrierPortal, probe.CapScrapeHistory, bag)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeError, finding.Outcome)
	}

	bag := bagWith(map[string]string{models.KeySubscriptionID: "sub-final"})
	finding, err := session.Invoke(context.Background(), probe.SourceCarrierPortal, probe.CapScrapeHistory, bag)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkipped, finding.Outcome)
	assert.Contains(t, finding.Summary, "circuit open")
	assert.Equal(t, 5, src.CallCount(probe.CapScrapeHistory), "open circuit blocks the sixth call")
}

func TestInvoke_WindowClampedIntoRetention(t *testing.T) {
	src := probetest.NewFakeSource(probe.SourceLogStore)
	session := newRegistry(t, nil, src).NewSession()
	bag := bagWith(map[string]string{models.KeyTrackingID: "617624324"})

	finding, err := session.Invoke(context.Background(), probe.SourceLogStore, probe.CapLogSearch, bag)
	require.NoError(t, err)
	require.NotNil(t, finding.Window)
	// Default window is the trailing week, comfortably inside 30-day retention.
	assert.False(t, finding.Window.Clamped)
	assert.True(t, finding.Window.End.After(finding.Window.Start))
}

func TestRegistry_DisabledSourceDropped(t *testing.T) {
	cfg := testConfig(t)
	cfg.DisabledSources = map[string]bool{probe.SourceDocSearch: true}

	registry := newRegistry(t, cfg,
		probetest.NewFakeSource(probe.SourcePlatform),
		probetest.NewFakeSource(probe.SourceDocSearch),
	)

	assert.True(t, registry.Has(probe.SourcePlatform, probe.CapLoadLookupByID))
	assert.False(t, registry.Has(probe.SourceDocSearch, probe.CapDocSearch))
	assert.NotContains(t, registry.CapabilityNames(), probe.CapDocSearch)

	_, err := registry.NewSession().Invoke(context.Background(), probe.SourceDocSearch, probe.CapDocSearch, bagWith(nil))
	assert.ErrorIs(t, err, probe.ErrUnknownCapability)
}

func TestRegistry_OrphanCapabilitiesDropped(t *testing.T) {
	registry := newRegistry(t, nil, probetest.NewFakeSource(probe.SourcePlatform))

	names := registry.CapabilityNames()
	assert.ElementsMatch(t, []string{probe.CapLoadLookupByID, probe.CapLoadLookupByNumber}, names)
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []string
}

func (r *recordingObserver) ObserveProbe(source, capability string, outcome models.Outcome, seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, source+"/"+capability+"/"+string(outcome))
}

func TestInvoke_ObserverSeesOutcome(t *testing.T) {
	obs := &recordingObserver{}
	src := probetest.NewFakeSource(probe.SourcePlatform)
	registry := probe.NewRegistry(testConfig(t), []probe.Source{src}, obs)
	bag := bagWith(map[string]string{models.KeyTrackingID: "607485162"})

	_, err := registry.NewSession().Invoke(context.Background(), probe.SourcePlatform, probe.CapLoadLookupByID, bag)
	require.NoError(t, err)

	require.Len(t, obs.seen, 1)
	assert.Equal(t, "platform/platform-load-lookup-by-id/ok", obs.seen[0])
}
