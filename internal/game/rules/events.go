package rules

import (
	"sort"
	"sync"

	"github.com/cookduel/duel-server-go/internal/game/cards"
)

// EventType indicates the category of a game event.
type EventType string

const (
	// Match/turn events
	EventMatchStarted EventType = "MATCH_STARTED"
	EventTurnStarted  EventType = "TURN_STARTED"
	EventTurnEnded    EventType = "TURN_ENDED"
	EventStrikePhase  EventType = "STRIKE_PHASE"
	EventMatchEnded   EventType = "MATCH_ENDED"

	// Card events
	EventDraw       EventType = "DRAW"
	EventSet        EventType = "SET"
	EventSummon     EventType = "SUMMON"
	EventActivate   EventType = "ACTIVATE"
	EventAttack     EventType = "ATTACK"
	EventDamaged    EventType = "DAMAGED"
	EventDestroyed  EventType = "DESTROYED"
	EventZoneChange EventType = "ZONE_CHANGE"
	EventBuffed     EventType = "BUFFED"

	// Player events
	EventPlayerDamaged EventType = "PLAYER_DAMAGED"
	EventPlayerHealed  EventType = "PLAYER_HEALED"
	EventSurrender     EventType = "SURRENDER"

	// Choice events
	EventChoiceRequested EventType = "CHOICE_REQUESTED"
	EventChoiceResolved  EventType = "CHOICE_RESOLVED"
)

// ResolutionPhase says whether a trigger runs before or after its event is
// fully applied.
type ResolutionPhase string

const (
	Before ResolutionPhase = "before"
	After  ResolutionPhase = "after"
)

// Event is a state change that triggers and watchers may react to.
type Event struct {
	Type     EventType         `json:"type"`
	TargetID string            `json:"target_id,omitempty"` // card the event happened to
	SourceID string            `json:"source_id,omitempty"` // card that caused it
	PlayerID string            `json:"player_id,omitempty"` // acting or affected player
	Amount   int               `json:"amount,omitempty"`
	From     cards.Location    `json:"from,omitempty"`
	To       cards.Location    `json:"to,omitempty"`
	Column   int               `json:"column,omitempty"`
	Targets  []string          `json:"targets,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Tick     int64             `json:"tick"`
}

// NewEvent creates an event with common fields populated.
func NewEvent(eventType EventType, targetID, sourceID, playerID string) Event {
	return Event{
		Type:     eventType,
		TargetID: targetID,
		SourceID: sourceID,
		PlayerID: playerID,
	}
}

// NewEventWithAmount creates an event carrying an amount.
func NewEventWithAmount(eventType EventType, targetID, sourceID, playerID string, amount int) Event {
	evt := NewEvent(eventType, targetID, sourceID, playerID)
	evt.Amount = amount
	return evt
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

type typedListener struct {
	handle   int
	callback Listener
}

// EventBus is a synchronous publish/subscribe hub with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]typedListener
	nextHandle     int
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]typedListener),
	}
}

// Subscribe registers a listener for all events and returns its handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for one event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], typedListener{handle: handle, callback: listener})
	return handle
}

// Unsubscribe removes the listener identified by handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to every matching listener in subscription order.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	handles := make([]int, 0, len(bus.listeners))
	for h := range bus.listeners {
		handles = append(handles, h)
	}
	listeners := make([]Listener, 0, len(handles))
	sort.Ints(handles)
	for _, h := range handles {
		listeners = append(listeners, bus.listeners[h])
	}
	for _, tl := range bus.typedListeners[event.Type] {
		listeners = append(listeners, tl.callback)
	}
	bus.mu.RUnlock()

	for _, l := range listeners {
		l(event)
	}
}
