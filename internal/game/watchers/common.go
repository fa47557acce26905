package watchers

import (
	"github.com/cookduel/duel-server-go/internal/game/rules"
)

// Registry keys of the standard watchers.
const (
	KeySets      = "SetsWatcher"
	KeySummons   = "SummonsWatcher"
	KeyDestroyed = "DestroyedWatcher"
)

// PlayerEventWatcher counts one event type per acting player.
type PlayerEventWatcher struct {
	*rules.BaseWatcher
	eventType rules.EventType
	counts    map[string]int
}

func newPlayerEventWatcher(scope rules.WatcherScope, key string, eventType rules.EventType) *PlayerEventWatcher {
	return &PlayerEventWatcher{
		BaseWatcher: rules.NewBaseWatcher(scope, key),
		eventType:   eventType,
		counts:      make(map[string]int),
	}
}

// NewSetsWatcher counts ingredients set by each player this turn.
func NewSetsWatcher() *PlayerEventWatcher {
	return newPlayerEventWatcher(rules.WatcherScopeTurn, KeySets, rules.EventSet)
}

// NewSummonsWatcher counts dishes summoned by each player this turn.
func NewSummonsWatcher() *PlayerEventWatcher {
	return newPlayerEventWatcher(rules.WatcherScopeTurn, KeySummons, rules.EventSummon)
}

// Watch implements rules.Watcher.
func (w *PlayerEventWatcher) Watch(event rules.Event) {
	if event.Type != w.eventType || event.PlayerID == "" {
		return
	}
	w.counts[event.PlayerID]++
	w.SetCondition(true)
}

// Reset clears the counts.
func (w *PlayerEventWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.counts = make(map[string]int)
}

// Count returns how many events playerID performed.
func (w *PlayerEventWatcher) Count(playerID string) int {
	return w.counts[playerID]
}

// DestroyedWatcher counts cards destroyed per owner over the whole match.
type DestroyedWatcher struct {
	*rules.BaseWatcher
	byOwner map[string]int
}

// NewDestroyedWatcher creates a destroyed-cards watcher.
func NewDestroyedWatcher() *DestroyedWatcher {
	return &DestroyedWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeMatch, KeyDestroyed),
		byOwner:     make(map[string]int),
	}
}

// Watch implements rules.Watcher. The destroyed card's owner is carried in
// the event's PlayerID.
func (w *DestroyedWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventDestroyed || event.PlayerID == "" {
		return
	}
	w.byOwner[event.PlayerID]++
	w.SetCondition(true)
}

// Reset clears the counts.
func (w *DestroyedWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.byOwner = make(map[string]int)
}

// Count returns how many of owner's cards were destroyed.
func (w *DestroyedWatcher) Count(owner string) int {
	return w.byOwner[owner]
}

// Standard returns the watchers every match registers.
func Standard() []rules.Watcher {
	return []rules.Watcher{NewSetsWatcher(), NewSummonsWatcher(), NewDestroyedWatcher()}
}
