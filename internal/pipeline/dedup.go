package pipeline

import (
	"strings"
	"sync"
)

// DedupSet remembers contacted handles so the same person is never messaged
// twice in one process lifetime. It is the only shared mutable state in the
// pipeline and is guarded accordingly.
type DedupSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDedupSet() *DedupSet {
	return &DedupSet{seen: make(map[string]struct{})}
}

// MarkIfNew records the handle and reports whether it was unseen. Handles are
// compared case-insensitively, matching the platform's username rules.
func (d *DedupSet) MarkIfNew(handle string) bool {
	key := strings.ToLower(strings.TrimSpace(handle))

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return false
	}

	d.seen[key] = struct{}{}
	return true
}

// Len returns the number of contacted handles, for logging.
func (d *DedupSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.seen)
}
