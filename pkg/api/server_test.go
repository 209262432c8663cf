package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadwatch/loadwatch/pkg/config"
	"github.com/loadwatch/loadwatch/pkg/events"
	"github.com/loadwatch/loadwatch/pkg/models"
	"github.com/loadwatch/loadwatch/pkg/probe"
	"github.com/loadwatch/loadwatch/pkg/probe/probetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeInvestigator scripts the engine behind the HTTP surface.
type fakeInvestigator struct {
	run func(ctx context.Context, incident models.Incident, stream *events.Stream) *models.Verdict
}

func (f *fakeInvestigator) Investigate(ctx context.Context, incident models.Incident, stream *events.Stream) *models.Verdict {
	if f.run != nil {
		return f.run(ctx, incident, stream)
	}
	stream.Publish(events.TypeStarted, events.Started{InvestigationID: "inv-1", TS: time.Now()})
	stream.Publish(events.TypeComplete, events.Complete{TS: time.Now()})
	return &models.Verdict{Kind: models.VerdictRootCause}
}

func testServer(t *testing.T, fake *fakeInvestigator) *Server {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	registry := probe.NewRegistry(cfg, []probe.Source{
		probetest.NewFakeSource(probe.SourcePlatform),
		probetest.NewFakeSource(probe.SourceNetwork),
	}, nil)
	return NewServer(cfg, fake, registry)
}

func TestCreateInvestigation_RejectsEmptyBody(t *testing.T) {
	server := testServer(t, &fakeInvestigator{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/investigations", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "description is required")
}

func TestCreateInvestigation_StreamsSSE(t *testing.T) {
	server := testServer(t, &fakeInvestigator{})
	w := httptest.NewRecorder()
	body := `{"description": "load 607485162 not tracking", "identifiers": {"tracking_id": "607485162"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/investigations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	out := w.Body.String()
	assert.Contains(t, out, "event:started")
	assert.Contains(t, out, "event:complete")
	assert.Contains(t, out, "id:1")
	assert.Contains(t, out, `"investigation_id":"inv-1"`)
}

func TestCreateInvestigation_DoneAfterTerminal(t *testing.T) {
	server := testServer(t, &fakeInvestigator{})
	w := httptest.NewRecorder()
	body := `{"description": "load not tracking"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/investigations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	server.Router().ServeHTTP(w, req)

	assert.Equal(t, 0, server.active.len(), "finished investigations are deregistered")
}

func TestCancelInvestigation(t *testing.T) {
	started := make(chan struct{})
	fake := &fakeInvestigator{
		run: func(ctx context.Context, _ models.Incident, stream *events.Stream) *models.Verdict {
			stream.Publish(events.TypeStarted, events.Started{InvestigationID: "inv-42", TS: time.Now()})
			close(started)
			<-ctx.Done()
			stream.Publish(events.TypeError, events.Error{Message: "investigation cancelled"})
			return &models.Verdict{Kind: models.VerdictError}
		},
	}
	server := testServer(t, fake)
	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/investigations", "application/json",
		strings.NewReader(`{"description": "load not tracking"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	sawStarted := false
	for i := 0; i < 10 && !sawStarted; i++ {
		line, readErr := reader.ReadString('\n')
		require.NoError(t, readErr)
		sawStarted = strings.Contains(line, "started")
	}
	assert.True(t, sawStarted)
	<-started

	// The id comes from the started event; cancel through the API.
	var cancelResp *http.Response
	require.Eventually(t, func() bool {
		req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/investigations/inv-42", nil)
		cancelResp, err = http.DefaultClient.Do(req)
		if err != nil {
			return false
		}
		defer cancelResp.Body.Close()
		return cancelResp.StatusCode == http.StatusAccepted
	}, time.Second, 10*time.Millisecond)

	// The stream ends with the terminal error event.
	rest := make(chan string, 1)
	go func() {
		var b strings.Builder
		buf := make([]byte, 1024)
		for {
			n, readErr := reader.Read(buf)
			b.Write(buf[:n])
			if readErr != nil {
				break
			}
		}
		rest <- b.String()
	}()
	select {
	case out := <-rest:
		assert.Contains(t, out, "event:error")
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not terminate after cancellation")
	}
}

func TestCancelInvestigation_UnknownID(t *testing.T) {
	server := testServer(t, &fakeInvestigator{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/investigations/ghost", nil)

	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	server := testServer(t, &fakeInvestigator{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(3), body["capabilities"], "platform and network fakes expose three capabilities")
}

func TestListCapabilities(t *testing.T) {
	server := testServer(t, &fakeInvestigator{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/capabilities", nil)

	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Capabilities []probe.Descriptor `json:"capabilities"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	names := make([]string, 0, len(body.Capabilities))
	for _, d := range body.Capabilities {
		names = append(names, d.Capability)
	}
	assert.Equal(t, []string{
		probe.CapNetworkRelation,
		probe.CapLoadLookupByID,
		probe.CapLoadLookupByNumber,
	}, names, "sorted by capability name")
}
