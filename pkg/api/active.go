package api

import (
	"context"
	"sync"
)

// activeSet tracks in-flight investigations so DELETE can cancel them.
type activeSet struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newActiveSet() *activeSet {
	return &activeSet{cancels: make(map[string]context.CancelFunc)}
}

func (a *activeSet) register(id string, cancel context.CancelFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancels[id] = cancel
}

func (a *activeSet) deregister(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.cancels, id)
}

// cancel aborts the investigation with the given id, reporting whether
// it was found.
func (a *activeSet) cancel(id string) bool {
	a.mu.Lock()
	cancel, ok := a.cancels[id]
	a.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (a *activeSet) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cancels)
}
