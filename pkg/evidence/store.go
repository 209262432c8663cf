// Package evidence holds the findings produced during one investigation.
//
// The store is append-only and lives only for the duration of a run:
// sub-investigators insert concurrently, the orchestrator and the oracle
// façade read snapshots. Nothing is persisted.
package evidence

import (
	"sync"

	"github.com/loadwatch/loadwatch/pkg/models"
)

// Store is an append-only, identity-deduplicated collection of findings
// with dual indexes: by finding id and by (source, capability).
type Store struct {
	mu      sync.RWMutex
	byID    map[string]*models.Finding
	byProbe map[probeKey][]string // (source, capability) → finding ids, insertion order
	ordered []string              // all finding ids, insertion order
}

type probeKey struct {
	source     string
	capability string
}

// NewStore creates an empty evidence store.
func NewStore() *Store {
	return &Store{
		byID:    make(map[string]*models.Finding),
		byProbe: make(map[probeKey][]string),
	}
}

// Add inserts a finding. If a finding with the same id already exists the
// insert is a no-op and the existing finding is returned — identical probe
// reruns merge instead of duplicating. The returned bool reports whether
// the finding was newly inserted.
func (s *Store) Add(f models.Finding) (models.Finding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byID[f.ID]; ok {
		return *existing, false
	}

	stored := f
	s.byID[f.ID] = &stored
	key := probeKey{source: f.Source, capability: f.Capability}
	s.byProbe[key] = append(s.byProbe[key], f.ID)
	s.ordered = append(s.ordered, f.ID)
	return stored, true
}

// Get returns the finding with the given id.
func (s *Store) Get(id string) (models.Finding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.byID[id]
	if !ok {
		return models.Finding{}, false
	}
	return *f, true
}

// Has reports whether a finding with the given id exists.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok
}

// All returns a snapshot of every finding in insertion order.
func (s *Store) All() []models.Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Finding, 0, len(s.ordered))
	for _, id := range s.ordered {
		out = append(out, *s.byID[id])
	}
	return out
}

// ByProbe returns a snapshot of the findings for one (source, capability)
// pair in insertion order.
func (s *Store) ByProbe(source, capability string) []models.Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byProbe[probeKey{source: source, capability: capability}]
	out := make([]models.Finding, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.byID[id])
	}
	return out
}

// Subset returns the findings for the given ids, skipping unknown ids.
func (s *Store) Subset(ids []string) []models.Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Finding, 0, len(ids))
	for _, id := range ids {
		if f, ok := s.byID[id]; ok {
			out = append(out, *f)
		}
	}
	return out
}

// Len returns the number of distinct findings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
