package game

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/cookduel/duel-server-go/internal/game/cards"
	"github.com/cookduel/duel-server-go/internal/game/choice"
	"github.com/cookduel/duel-server-go/internal/game/effects"
	"github.com/cookduel/duel-server-go/internal/game/rules"
	"github.com/cookduel/duel-server-go/internal/game/watchers"
)

// EndReason says why a match ended.
type EndReason string

const (
	EndHPReachesZero EndReason = "HP_REACHES_ZERO"
	EndDeckedOut     EndReason = "DECKED_OUT"
	EndSurrender     EndReason = "SURRENDER"
	EndDisconnected  EndReason = "DISCONNECTED"
	EndTimeout       EndReason = "TIMEOUT"
)

// EndResult is recorded once the match ends. An empty winner set is a draw.
type EndResult struct {
	Winners []string  `json:"winners"`
	Reason  EndReason `json:"reason"`
}

// PlayerData is the per-player part of the game state.
type PlayerData struct {
	ID string `json:"id"`
	HP int    `json:"hp"`
	// PrevHP is the HP last reported to clients.
	PrevHP int `json:"-"`

	Connected   bool `json:"connected"`
	Ready       bool `json:"ready"`
	DeckedOut   bool `json:"decked_out"`
	Surrendered bool `json:"surrendered"`
	TimedOut    bool `json:"timed_out"`

	// TurnDeadline is when the player's current turn is forced to end.
	TurnDeadline time.Time `json:"turn_deadline"`
	// MatchTime is what is left of the player's match clock. It only runs
	// during their own turns.
	MatchTime time.Duration `json:"match_time"`
}

// PauseReasonChoice marks a resolution waiting for a player's decision.
const PauseReasonChoice = "choice"

// Frame is a resumable effect activation: which effect, on which card, for
// whom, and the step and bindings to continue with.
type Frame struct {
	Code        int              `json:"code"`
	EffectIndex int              `json:"effect_index"`
	CardID      string           `json:"card_id"`
	Player      string           `json:"player"`
	Step        int              `json:"step"`
	Bindings    effects.Bindings `json:"bindings,omitempty"`
	Event       *rules.Event     `json:"event,omitempty"`
}

// PauseStatus describes the resolution in flight. Only one exists per match.
type PauseStatus struct {
	Reason  string          `json:"reason"`
	Players []string        `json:"players"`
	Request *choice.Request `json:"request"`
	Frame   Frame           `json:"frame"`
}

// clone copies the frame so that it shares no maps or slices with f.
func (f Frame) clone() Frame {
	f.Bindings = maps.Clone(f.Bindings)
	if f.Event != nil {
		ev := *f.Event
		ev.Targets = slices.Clone(ev.Targets)
		ev.Metadata = maps.Clone(ev.Metadata)
		f.Event = &ev
	}
	return f
}

func (p *PauseStatus) clone() *PauseStatus {
	if p == nil {
		return nil
	}
	out := *p
	out.Players = slices.Clone(p.Players)
	if p.Request != nil {
		req := *p.Request
		req.Candidates = slices.Clone(req.Candidates)
		out.Request = &req
	}
	out.Frame = p.Frame.clone()
	return &out
}

// State is the whole state of one match. It is owned by the match loop and
// must not be shared across goroutines.
type State struct {
	MatchID string
	Seed    uint64

	Players map[string]*PlayerData
	// Order is the join order; Order[0] starts.
	Order []string

	Turn      *rules.TurnManager
	Pause     *PauseStatus
	EndResult *EndResult

	Board    *cards.Board
	Watchers *rules.WatcherRegistry
	Bus      *rules.EventBus

	Tick int64
	// Clock is the time of the last evaluated tick.
	Clock time.Time

	pending []Frame
	outbox  []Packet
	dirty   map[string]struct{}
	// stale is set when available actions must be re-sent.
	stale bool
	ids   uint64
}

func newState(matchID string, seed uint64, columns int) *State {
	st := &State{
		MatchID:  matchID,
		Seed:     seed,
		Players:  make(map[string]*PlayerData),
		Turn:     rules.NewTurnManager(),
		Board:    cards.NewBoard(columns, seed),
		Watchers: rules.NewWatcherRegistry(),
		Bus:      rules.NewEventBus(),
		dirty:    make(map[string]struct{}),
	}
	for _, w := range watchers.Standard() {
		st.Watchers.Add(w)
	}
	st.Bus.Subscribe(st.Watchers.Notify)
	st.Bus.Subscribe(st.track)
	return st
}

// Status returns the lifecycle status of the match.
func (st *State) Status() rules.Status { return st.Turn.Status() }

// Player returns the data of a joined player.
func (st *State) Player(id string) (*PlayerData, bool) {
	p, ok := st.Players[id]
	return p, ok
}

// Opponent returns the other player, or "" before both have joined.
func (st *State) Opponent(id string) string {
	for _, other := range st.Order {
		if other != id {
			return other
		}
	}
	return ""
}

// PendingTriggers returns how many trigger activations wait to resolve.
func (st *State) PendingTriggers() int { return len(st.pending) }

// nextID returns a match-unique ID derived from the match ID and a counter,
// so a match replayed from the same seed and inputs gets the same IDs.
func (st *State) nextID() string {
	st.ids++
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", st.MatchID, st.ids))).String()
}

// track marks the cards an event touched so their views are re-sent.
func (st *State) track(evt rules.Event) {
	for _, id := range append([]string{evt.TargetID}, evt.Targets...) {
		if _, ok := st.Board.Card(id); ok {
			st.dirty[id] = struct{}{}
		}
	}
}

func (st *State) publish(evt rules.Event) {
	evt.Tick = st.Tick
	st.stale = true
	st.Bus.Publish(evt)
}
