package dist

import (
	"sort"
	"sync"
)

// Collector accumulates entries from parallel producers. Append-only; the
// deterministic order is established once by Sorted, not at insert time.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add appends entries. Safe for concurrent use.
func (c *Collector) Add(entries ...Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entries...)
}

// Len reports the number of collected entries.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sorted returns a copy of the entries in deterministic order: by output
// path, then type, then provenance.
func (c *Collector) Sorted() []Entry {
	c.mu.Lock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OutputPath() != out[j].OutputPath() {
			return out[i].OutputPath() < out[j].OutputPath()
		}
		if out[i].Type() != out[j].Type() {
			return out[i].Type() < out[j].Type()
		}
		return out[i].Provenance() < out[j].Provenance()
	})
	return out
}
