// Package probetest provides fake probe sources for tests.
package probetest

import (
	"context"
	"sync"
	"time"

	"github.com/loadwatch/loadwatch/pkg/models"
	"github.com/loadwatch/loadwatch/pkg/probe"
)

// Response scripts one probe outcome for a FakeSource.
type Response struct {
	Result *probe.Result
	Err    error
	// Delay makes the probe block before responding; probes respect
	// context cancellation during the delay.
	Delay time.Duration
}

// Call records one Probe invocation for assertions.
type Call struct {
	Capability string
	Params     map[string]any
}

// FakeSource is a scriptable probe.Source. Responses are queued per
// capability; the last response repeats once the queue drains. With no
// script, probes succeed with an empty payload.
type FakeSource struct {
	name string

	mu        sync.Mutex
	responses map[string][]Response
	calls     []Call
}

var _ probe.Source = (*FakeSource)(nil)

// NewFakeSource creates a fake source with the given registry name.
func NewFakeSource(name string) *FakeSource {
	return &FakeSource{name: name, responses: make(map[string][]Response)}
}

// Name implements probe.Source.
func (f *FakeSource) Name() string { return f.name }

// Stub queues a response for a capability.
func (f *FakeSource) Stub(capability string, resp Response) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[capability] = append(f.responses[capability], resp)
	return f
}

// StubOK queues a successful response with the given payload and summary.
func (f *FakeSource) StubOK(capability, summary string, payload map[string]any) *FakeSource {
	return f.Stub(capability, Response{Result: &probe.Result{
		Outcome: models.OutcomeOK,
		Payload: payload,
		Summary: summary,
	}})
}

// Probe implements probe.Source.
func (f *FakeSource) Probe(ctx context.Context, capability string, params map[string]any) (*probe.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Capability: capability, Params: params})
	queue := f.responses[capability]
	var resp Response
	switch {
	case len(queue) == 0:
		resp = Response{Result: &probe.Result{Outcome: models.OutcomeOK, Summary: capability + " ok"}}
	case len(queue) == 1:
		resp = queue[0]
	default:
		resp = queue[0]
		f.responses[capability] = queue[1:]
	}
	f.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Result, nil
}

// Calls returns a copy of all recorded invocations.
func (f *FakeSource) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns how many times a capability was probed.
func (f *FakeSource) CallCount(capability string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Capability == capability {
			n++
		}
	}
	return n
}
