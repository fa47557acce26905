package rules

import (
	"sort"
)

// WatcherScope defines how long a watcher's tracking lasts.
type WatcherScope int

const (
	// WatcherScopeTurn watchers are reset whenever a turn ends.
	WatcherScopeTurn WatcherScope = iota
	// WatcherScopeMatch watchers keep their state for the whole match.
	WatcherScopeMatch
)

func (ws WatcherScope) String() string {
	switch ws {
	case WatcherScopeTurn:
		return "TURN"
	case WatcherScopeMatch:
		return "MATCH"
	default:
		return "UNKNOWN"
	}
}

// Watcher observes game events and keeps counters that rules and effect
// conditions can query.
type Watcher interface {
	// Watch is called for every published event.
	Watch(event Event)
	// Reset clears the tracked state.
	Reset()
	// Scope says when Reset is called.
	Scope() WatcherScope
	// Key uniquely names the watcher within a registry.
	Key() string
}

// BaseWatcher provides the bookkeeping shared by concrete watchers.
type BaseWatcher struct {
	scope     WatcherScope
	key       string
	condition bool
}

// NewBaseWatcher creates a base watcher.
func NewBaseWatcher(scope WatcherScope, key string) *BaseWatcher {
	return &BaseWatcher{scope: scope, key: key}
}

func (bw *BaseWatcher) Scope() WatcherScope { return bw.scope }
func (bw *BaseWatcher) Key() string         { return bw.key }

// ConditionMet reports whether the watched event has happened since the last reset.
func (bw *BaseWatcher) ConditionMet() bool { return bw.condition }

// SetCondition records that the watched event happened.
func (bw *BaseWatcher) SetCondition(condition bool) { bw.condition = condition }

// Reset clears the condition.
func (bw *BaseWatcher) Reset() { bw.condition = false }

// WatcherRegistry holds the watchers of one match. It is owned by the match
// loop and is not safe for concurrent use.
type WatcherRegistry struct {
	watchers map[string]Watcher
}

// NewWatcherRegistry creates an empty registry.
func NewWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{watchers: make(map[string]Watcher)}
}

// Add registers a watcher, replacing one with the same key.
func (wr *WatcherRegistry) Add(w Watcher) {
	if w == nil {
		return
	}
	wr.watchers[w.Key()] = w
}

// Get returns the watcher registered under key.
func (wr *WatcherRegistry) Get(key string) Watcher {
	return wr.watchers[key]
}

// Notify delivers event to every watcher in key order.
func (wr *WatcherRegistry) Notify(event Event) {
	for _, w := range wr.sorted() {
		w.Watch(event)
	}
}

// ResetScope resets the watchers of one scope.
func (wr *WatcherRegistry) ResetScope(scope WatcherScope) {
	for _, w := range wr.sorted() {
		if w.Scope() == scope {
			w.Reset()
		}
	}
}

func (wr *WatcherRegistry) sorted() []Watcher {
	keys := make([]string, 0, len(wr.watchers))
	for k := range wr.watchers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Watcher, len(keys))
	for i, k := range keys {
		out[i] = wr.watchers[k]
	}
	return out
}
