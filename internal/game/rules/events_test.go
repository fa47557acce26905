package rules

import (
	"testing"
)

func TestEventBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewEventBus()
	var got []string

	bus.Subscribe(func(e Event) { got = append(got, "all-1:"+string(e.Type)) })
	bus.SubscribeTyped(EventSet, func(e Event) { got = append(got, "set:"+e.TargetID) })
	bus.Subscribe(func(e Event) { got = append(got, "all-2:"+string(e.Type)) })

	bus.Publish(NewEvent(EventSet, "c1", "", "alice"))
	bus.Publish(NewEvent(EventSummon, "c2", "", "alice"))

	want := []string{"all-1:SET", "all-2:SET", "set:c1", "all-1:SUMMON", "all-2:SUMMON"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	count := 0
	h := bus.SubscribeTyped(EventAttack, func(Event) { count++ })
	bus.Publish(NewEvent(EventAttack, "", "", ""))
	bus.Unsubscribe(h)
	bus.Publish(NewEvent(EventAttack, "", "", ""))

	if count != 1 {
		t.Fatalf("expected 1 delivery, got %d", count)
	}
	if bus.Subscribe(nil) != -1 {
		t.Fatalf("nil listener should not be registered")
	}
}

type countingWatcher struct {
	*BaseWatcher
	n int
}

func (w *countingWatcher) Watch(e Event) {
	if e.Type == EventSet {
		w.n++
		w.SetCondition(true)
	}
}

func (w *countingWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.n = 0
}

func TestWatcherRegistryResetsByScope(t *testing.T) {
	reg := NewWatcherRegistry()
	turn := &countingWatcher{BaseWatcher: NewBaseWatcher(WatcherScopeTurn, "turn")}
	match := &countingWatcher{BaseWatcher: NewBaseWatcher(WatcherScopeMatch, "match")}
	reg.Add(turn)
	reg.Add(match)

	reg.Notify(NewEvent(EventSet, "c", "", "alice"))
	reg.Notify(NewEvent(EventDraw, "c", "", "alice"))
	if turn.n != 1 || match.n != 1 || !turn.ConditionMet() {
		t.Fatalf("unexpected counts %d %d", turn.n, match.n)
	}

	reg.ResetScope(WatcherScopeTurn)
	if turn.n != 0 || turn.ConditionMet() || match.n != 1 {
		t.Fatalf("turn watcher should reset alone, got %d %d", turn.n, match.n)
	}
	if reg.Get("match") != match {
		t.Fatalf("lookup by key failed")
	}
}
