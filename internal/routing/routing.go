// Package routing implements the routing table: which sources each
// listener should hear. It owns no audio state itself, only tracks
// intent, and a reconciliation pass (Diff) compares that intent with whatever a
// mixer is actually subscribed to so the two can be brought back in
// sync, mirroring original_source/intercomserver.py's AudioRouter
// (routing_table + _update_all_mixers).
package routing

import "sync"

// Table tracks, for each listener, the set of source participant IDs it
// should hear. The zero value is ready to use.
type Table struct {
	mu      sync.RWMutex
	hearing map[string]map[string]struct{}
}

// New returns an empty routing table.
func New() *Table {
	return &Table{hearing: make(map[string]map[string]struct{})}
}

// OnJoin adds participantID to the table with full-mesh default
// routing: it hears every existing participant (including itself), and
// every existing participant gains it as a source too.
func (t *Table) OnJoin(participantID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hearing == nil {
		t.hearing = make(map[string]map[string]struct{})
	}
	set := map[string]struct{}{participantID: {}}
	for other := range t.hearing {
		set[other] = struct{}{}
		t.hearing[other][participantID] = struct{}{}
	}
	t.hearing[participantID] = set
}

// OnLeave removes participantID from the table and from every other
// listener's hearing set.
func (t *Table) OnLeave(participantID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.hearing, participantID)
	for _, set := range t.hearing {
		delete(set, participantID)
	}
}

// SetRouting overrides which sources listener hears. No-op if listener
// is not currently registered (mirrors the Python's `if listener in
// self.routing_table` guard).
func (t *Table) SetRouting(listener string, sources []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.hearing[listener]; !ok {
		return
	}
	set := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		set[s] = struct{}{}
	}
	t.hearing[listener] = set
}

// Sources returns the set of source IDs listener currently hears.
func (t *Table) Sources(listener string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	set, ok := t.hearing[listener]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// Diff computes what must change for live to match the table's intent
// for listener: sources to add and sources to remove. live is the set
// of source IDs a mixer is currently subscribed to.
func (t *Table) Diff(listener string, live map[string]struct{}) (toAdd, toRemove []string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	want := t.hearing[listener]
	for s := range want {
		if _, ok := live[s]; !ok {
			toAdd = append(toAdd, s)
		}
	}
	for s := range live {
		if _, ok := want[s]; !ok {
			toRemove = append(toRemove, s)
		}
	}
	return toAdd, toRemove
}

// Listeners returns every currently-registered listener ID.
func (t *Table) Listeners() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.hearing))
	for l := range t.hearing {
		out = append(out, l)
	}
	return out
}
