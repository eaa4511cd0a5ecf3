package urlsync

import "sync"

// Location receives canonical query strings when the state changes.
type Location interface {
	Push(query string) error
}

// MemoryLocation keeps pushed queries in memory.
type MemoryLocation struct {
	mu      sync.Mutex
	entries []string
}

// Push appends query.
func (m *MemoryLocation) Push(query string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, query)
	return nil
}

// Entries returns every pushed query, oldest first.
func (m *MemoryLocation) Entries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.entries...)
}

// Current returns the last pushed query.
func (m *MemoryLocation) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return ""
	}
	return m.entries[len(m.entries)-1]
}
