package dock

import (
	"sort"
	"sync"
	"time"

	"github.com/sells-group/dealdock/internal/model"
	"github.com/sells-group/dealdock/internal/people"
)

// HintStore keeps the latest conflict hint per deal. Safe for concurrent use.
type HintStore struct {
	mu    sync.RWMutex
	hints map[string]model.ConflictHint
}

// NewHintStore returns an empty store.
func NewHintStore() *HintStore {
	return &HintStore{hints: make(map[string]model.ConflictHint)}
}

// Get returns the latest hint for id.
func (h *HintStore) Get(id string) (model.ConflictHint, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	hint, ok := h.hints[id]
	return hint, ok
}

// Put replaces the hint for hint.DealID.
func (h *HintStore) Put(hint model.ConflictHint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hints[hint.DealID] = hint
}

// Delete drops the hint for id.
func (h *HintStore) Delete(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.hints, id)
}

// All returns every hint that reports at least one conflict, ordered by deal id.
func (h *HintStore) All() []model.ConflictHint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]model.ConflictHint, 0, len(h.hints))
	for _, hint := range h.hints {
		if hint.HasConflicts() {
			out = append(out, hint)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DealID < out[j].DealID })
	return out
}

// FindConflicts compares the reference codes of target against every other
// non-terminal deal in deals. Codes match after trimming and case folding.
// Conflicts are reported once per code of target, in the target's order.
func FindConflicts(target model.Deal, deals []model.Deal, at time.Time) model.ConflictHint {
	hint := model.ConflictHint{DealID: target.ID, CheckedAt: at, Conflicts: []model.Conflict{}}

	owners := make(map[string][]string)
	for i := range deals {
		other := &deals[i]
		if other.ID == target.ID || other.IsTerminal() {
			continue
		}
		seen := make(map[string]bool)
		for _, code := range other.ReferenceCodes() {
			k := people.Key(code)
			if seen[k] {
				continue
			}
			seen[k] = true
			owners[k] = append(owners[k], other.ID)
		}
	}

	reported := make(map[string]bool)
	for _, code := range target.ReferenceCodes() {
		k := people.Key(code)
		if reported[k] || len(owners[k]) == 0 {
			continue
		}
		reported[k] = true
		ids := append([]string(nil), owners[k]...)
		sort.Strings(ids)
		hint.Conflicts = append(hint.Conflicts, model.Conflict{KVNumber: code, DealIDs: ids})
	}
	return hint
}
