package listview

import (
	"net/url"
	"sync"
)

// Navigator exposes the addressable query of the current location.
type Navigator interface {
	Query() url.Values
	Replace(url.Values)
}

// MemoryNavigator keeps the query in memory. It backs the console and the
// per-request controllers of the HTTP adapter.
type MemoryNavigator struct {
	mu       sync.Mutex
	query    url.Values
	replaced int
}

// NewMemoryNavigator starts at a copy of initial.
func NewMemoryNavigator(initial url.Values) *MemoryNavigator {
	return &MemoryNavigator{query: cloneValues(initial)}
}

// Query returns a copy of the current query.
func (n *MemoryNavigator) Query() url.Values {
	n.mu.Lock()
	defer n.mu.Unlock()
	return cloneValues(n.query)
}

// Replace swaps the current query without adding history.
func (n *MemoryNavigator) Replace(q url.Values) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.query = cloneValues(q)
	n.replaced++
}

// Replaced counts how often the query has been rewritten.
func (n *MemoryNavigator) Replaced() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.replaced
}

func cloneValues(in url.Values) url.Values {
	out := make(url.Values, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}
