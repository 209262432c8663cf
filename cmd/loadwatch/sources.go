package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/loadwatch/loadwatch/pkg/probe"
)

// bridgeSource forwards probe invocations to an external adapter service
// over HTTP. The service owns the actual integration (platform API,
// portal scraper, log store); loadwatch only speaks this one JSON shape.
type bridgeSource struct {
	name    string
	baseURL string
	client  *http.Client
}

type bridgeRequest struct {
	Capability string         `json:"capability"`
	Params     map[string]any `json:"params"`
}

func (b *bridgeSource) Name() string { return b.name }

func (b *bridgeSource) Probe(ctx context.Context, capability string, params map[string]any) (*probe.Result, error) {
	body, err := json.Marshal(bridgeRequest{Capability: capability, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode probe request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/probe", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe %s/%s: %w", b.name, capability, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("probe %s/%s: adapter returned %d: %s",
			b.name, capability, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result probe.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode probe response from %s: %w", b.name, err)
	}
	return &result, nil
}

// buildSources constructs one bridge per SOURCE_<NAME>_URL environment
// variable. Sources without a configured adapter endpoint are simply not
// registered; the registry then drops their capabilities from the catalog.
func buildSources() []probe.Source {
	names := []string{
		probe.SourcePlatform,
		probe.SourceWarehouse,
		probe.SourceNetwork,
		probe.SourceCarrierPortal,
		probe.SourceWebhook,
		probe.SourceLogStore,
		probe.SourceDocSearch,
	}

	var sources []probe.Source
	for _, name := range names {
		envKey := "SOURCE_" + strings.ReplaceAll(strings.ToUpper(name), "-", "_") + "_URL"
		baseURL := strings.TrimRight(os.Getenv(envKey), "/")
		if baseURL == "" {
			continue
		}
		sources = append(sources, &bridgeSource{
			name:    name,
			baseURL: baseURL,
			client:  &http.Client{Timeout: 2 * time.Minute},
		})
		slog.Info("Registered data source adapter", "source", name, "url", baseURL)
	}
	return sources
}
