package conditions

import (
	"sort"
	"sync"
)

// UnresolvedMemo remembers type ids that failed resolution so each is
// warned about once. It never gates resolution: a memoized id is looked
// up again on every pass and removed once it resolves.
type UnresolvedMemo struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewUnresolvedMemo creates an empty memo.
func NewUnresolvedMemo() *UnresolvedMemo {
	return &UnresolvedMemo{ids: make(map[string]struct{})}
}

// Add records id and reports whether it was not already present.
func (m *UnresolvedMemo) Add(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ids[id]; ok {
		return false
	}
	m.ids[id] = struct{}{}
	return true
}

// Remove forgets id.
func (m *UnresolvedMemo) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ids, id)
}

// Contains reports whether id is memoized.
func (m *UnresolvedMemo) Contains(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.ids[id]
	return ok
}

// IDs returns the memoized ids in sorted order.
func (m *UnresolvedMemo) IDs() []string {
	m.mu.Lock()
	out := make([]string, 0, len(m.ids))
	for id := range m.ids {
		out = append(out, id)
	}
	m.mu.Unlock()
	sort.Strings(out)
	return out
}
