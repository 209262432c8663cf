package models

import (
	"sort"
	"sync"
)

// Canonical identifier-bag keys.
const (
	KeyTrackingID      = "tracking_id"
	KeyLoadNumber      = "load_number"
	KeyTicketID        = "ticket_id"
	KeyShipperID       = "shipper_id"
	KeyCarrierID       = "carrier_id"
	KeyShipperName     = "shipper_name"
	KeyCarrierName     = "carrier_name"
	KeyContainerNumber = "container_number"
	KeyBookingNumber   = "booking_number"
	KeySubscriptionID  = "subscription_id"
	KeyMode            = "mode"
)

// IdentifierBag is the set of identifiers known for one investigation.
// It grows monotonically: values, once set, are never overwritten
// (first-wins). Writes happen only during orchestrator seeding; reads by
// concurrent sub-investigators see a monotonically-growing view.
type IdentifierBag struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewIdentifierBag creates a bag seeded with the given values.
// Empty values are dropped.
func NewIdentifierBag(seed map[string]string) *IdentifierBag {
	b := &IdentifierBag{values: make(map[string]string, len(seed))}
	for k, v := range seed {
		if v != "" {
			b.values[k] = v
		}
	}
	return b
}

// Set records a value for key if no value is present yet (first-wins).
// Returns true if the value was recorded.
func (b *IdentifierBag) Set(key, value string) bool {
	if key == "" || value == "" {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.values[key]; exists {
		return false
	}
	b.values[key] = value
	return true
}

// Get returns the value for key and whether it is present.
func (b *IdentifierBag) Get(key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	return v, ok
}

// Has reports whether any of the given keys is present.
func (b *IdentifierBag) Has(keys ...string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, k := range keys {
		if _, ok := b.values[k]; ok {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the current contents.
func (b *IdentifierBag) Snapshot() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]string, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// Keys returns the present keys in sorted order.
func (b *IdentifierBag) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of identifiers present.
func (b *IdentifierBag) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.values)
}
