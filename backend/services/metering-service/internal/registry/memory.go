package registry

import (
	"sync"

	"submeter/backend/services/metering-service/internal/meter"
)

// MemoryRegistry keeps meters in process memory.
type MemoryRegistry struct {
	mu     sync.RWMutex
	meters map[string]*meter.Meter
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		meters: make(map[string]*meter.Meter),
	}
}

// Get returns the meter stored under id.
func (r *MemoryRegistry) Get(id string) (*meter.Meter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.meters[id]
	return m, ok
}

// Put stores m under id, replacing any previous entry.
func (r *MemoryRegistry) Put(id string, m *meter.Meter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meters[id] = m
}

// Remove deletes id and reports whether it was present.
func (r *MemoryRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.meters[id]; !ok {
		return false
	}
	delete(r.meters, id)
	return true
}

// All returns the registered meters in no particular order.
func (r *MemoryRegistry) All() []*meter.Meter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*meter.Meter, 0, len(r.meters))
	for _, m := range r.meters {
		out = append(out, m)
	}
	return out
}

