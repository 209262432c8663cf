package oracle

import (
	"sort"

	"github.com/loadwatch/loadwatch/pkg/models"
	"github.com/loadwatch/loadwatch/pkg/probe"
)

// CapabilityView is the slice of the probe registry the oracle needs:
// which capabilities exist and which source owns each. *probe.Registry
// satisfies it.
type CapabilityView interface {
	CapabilityNames() []string
	Describe(capability string) (probe.Descriptor, bool)
}

// capabilityIndex is a snapshot of the registered capabilities, taken at
// client construction. Model output naming anything outside it is dropped.
type capabilityIndex struct {
	names    []string
	bySource map[string]string // capability → source
}

func newCapabilityIndex(view CapabilityView) *capabilityIndex {
	idx := &capabilityIndex{bySource: make(map[string]string)}
	for _, name := range view.CapabilityNames() {
		desc, ok := view.Describe(name)
		if !ok {
			continue
		}
		idx.names = append(idx.names, name)
		idx.bySource[name] = desc.Source
	}
	sort.Strings(idx.names)
	return idx
}

func (i *capabilityIndex) has(capability string) bool {
	_, ok := i.bySource[capability]
	return ok
}

func (i *capabilityIndex) suggestion(capability string) (models.ProbeSuggestion, bool) {
	source, ok := i.bySource[capability]
	if !ok {
		return models.ProbeSuggestion{}, false
	}
	return models.ProbeSuggestion{Source: source, Capability: capability}, true
}
