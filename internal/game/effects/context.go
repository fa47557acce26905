package effects

import (
	"strconv"

	"github.com/cookduel/duel-server-go/internal/game/cards"
	"github.com/cookduel/duel-server-go/internal/game/choice"
	"github.com/cookduel/duel-server-go/internal/game/rules"
)

// Game is the view of a match that effects read and mutate through.
type Game interface {
	Board() *cards.Board
	TurnPlayer() string
	TurnCount() int
	Phase() rules.Phase
	Opponent(player string) string
	HP(player string) int
	Watcher(key string) rules.Watcher

	// Grant applies buff to target. Source may be nil.
	Grant(source, target *cards.Card, buff cards.Buff) cards.Buff
	Move(ids []string, loc cards.Location, owner string, column int, mode cards.InsertMode) error
	Draw(player string, n int) (int, error)
	Destroy(card, source *cards.Card) error
	DamagePlayer(player string, amount int, source *cards.Card)
	HealPlayer(player string, amount int, source *cards.Card)
}

// Bindings are the string-keyed locals an effect carries across a
// suspension. They must stay serializable.
type Bindings map[string]string

func (b Bindings) Set(key, value string)        { b[key] = value }
func (b Bindings) Get(key string) string        { return b[key] }
func (b Bindings) SetInt(key string, value int) { b[key] = strconv.Itoa(value) }
func (b Bindings) SetList(key string, v []string) {
	b[key] = choice.FormatList(v)
}

// Int returns the integer stored under key, or 0.
func (b Bindings) Int(key string) int {
	n, _ := strconv.Atoi(b[key])
	return n
}

// List returns the list stored under key.
func (b Bindings) List(key string) []string { return choice.ParseList(b[key]) }

// Context is what an effect sees while it runs.
type Context struct {
	Game   Game
	Card   *cards.Card
	Player string
	// Effect is the index of the running effect within its card code.
	Effect int
	// Step is the step to run; 0 on first entry.
	Step     int
	Bindings Bindings
	// Choice holds the validated answer when resuming after a request.
	Choice []string
	// Event is the triggering event for trigger effects.
	Event *rules.Event
}

// Resolution is the outcome of running one step.
type Resolution struct {
	// Request, when set, suspends the effect until the player answers. The
	// effect is then re-entered at Next with Choice filled in.
	Request *choice.Request
	Next    int
}

// Done reports whether the effect finished.
func (r Resolution) Done() bool { return r.Request == nil }

// Done finishes the effect.
func (c *Context) Done() Resolution { return Resolution{} }

// Ask suspends the effect on req and resumes it at step next.
func (c *Context) Ask(next int, req *choice.Request) Resolution {
	if req.Player == "" {
		req.Player = c.Player
	}
	return Resolution{Request: req, Next: next}
}

// Opponent returns the opponent of the effect's controller.
func (c *Context) Opponent() string { return c.Game.Opponent(c.Player) }

// Chose reports whether the answer is exactly value.
func (c *Context) Chose(value string) bool {
	return len(c.Choice) == 1 && c.Choice[0] == value
}

// IsSelf reports whether the triggering event happened to the effect's card.
func (c *Context) IsSelf() bool {
	return c.Event != nil && c.Card != nil && c.Event.TargetID == c.Card.ID
}

// Own returns the controller's cards matching loc and pred.
func (c *Context) Own(loc cards.Location, pred func(*cards.Card) bool) []*cards.Card {
	return c.Game.Board().FindCards(func(card *cards.Card) bool {
		return card.Owner == c.Player && card.Location.HasAny(loc) && (pred == nil || pred(card))
	})
}

// IDs returns the IDs of cs.
func IDs(cs []*cards.Card) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}
