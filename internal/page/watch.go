package page

import "sync"

// watchSet fans Mutated notifications out to per-unit subscribers.
type watchSet struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan struct{}
}

func (w *watchSet) watch(unitID string) (<-chan struct{}, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.subs == nil {
		w.subs = make(map[string]map[int]chan struct{})
	}
	if w.subs[unitID] == nil {
		w.subs[unitID] = make(map[int]chan struct{})
	}
	w.next++
	id := w.next
	ch := make(chan struct{}, 1)
	w.subs[unitID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.subs[unitID], id)
			if len(w.subs[unitID]) == 0 {
				delete(w.subs, unitID)
			}
		})
	}
}

// notify never blocks; a pending signal already covers the new change.
func (w *watchSet) notify(unitID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subs[unitID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (w *watchSet) count(unitID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs[unitID])
}
