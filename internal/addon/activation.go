package addon

import (
	"sort"
	"sync"
)

// Activation is the plugin deny-list. A plugin is active unless its id is
// listed. Ids that match no installed plugin are kept and ignored.
type Activation struct {
	mu     sync.RWMutex
	denied map[string]struct{}
}

func NewActivation(deniedIDs []string) *Activation {
	a := &Activation{denied: make(map[string]struct{}, len(deniedIDs))}
	for _, id := range deniedIDs {
		if id != "" {
			a.denied[id] = struct{}{}
		}
	}
	return a
}

func (a *Activation) IsActive(id string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, denied := a.denied[id]
	return !denied
}

// Deny returns false if id was already denied.
func (a *Activation) Deny(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.denied[id]; ok {
		return false
	}
	a.denied[id] = struct{}{}
	return true
}

// Allow returns false if id was not denied.
func (a *Activation) Allow(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.denied[id]; !ok {
		return false
	}
	delete(a.denied, id)
	return true
}

// DeniedIDs returns the deny-list sorted, for persistence.
func (a *Activation) DeniedIDs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]string, 0, len(a.denied))
	for id := range a.denied {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
