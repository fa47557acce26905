// Package effects defines card abilities and the registry that maps card codes
// to them.
package effects

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cookduel/duel-server-go/internal/game/cards"
	"github.com/cookduel/duel-server-go/internal/game/rules"
)

// Kind says how an effect is started.
type Kind int

const (
	// KindActive effects start from an explicit activate action.
	KindActive Kind = iota
	// KindTrigger effects start automatically from a matching event.
	KindTrigger
)

func (k Kind) String() string {
	if k == KindTrigger {
		return "trigger"
	}
	return "active"
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// TriggerSpec selects the events a trigger effect reacts to.
type TriggerSpec struct {
	Event rules.EventType
	Phase rules.ResolutionPhase
	// Filter narrows the match; ctx.Event is set. Nil accepts every event of
	// the type.
	Filter func(ctx *Context) bool
}

// CardEffect is one ability of a card code.
type CardEffect struct {
	Name    string
	Kind    Kind
	Limit   cards.Limit
	Trigger *TriggerSpec

	// Condition must not mutate state. Nil means always allowed.
	Condition func(ctx *Context) bool
	// Activate runs one step of the effect; see Resolution.
	Activate func(ctx *Context) Resolution
}

// Allowed evaluates the effect's condition.
func (e CardEffect) Allowed(ctx *Context) bool {
	return e.Condition == nil || e.Condition(ctx)
}

// Builder collects effect definitions before the registry is frozen.
type Builder struct {
	effects map[int][]CardEffect
	errs    []error
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{effects: make(map[int][]CardEffect)}
}

// Register appends effects for code. Effect indexes follow registration order.
func (b *Builder) Register(code int, effs ...CardEffect) *Builder {
	for _, e := range effs {
		if e.Activate == nil {
			b.errs = append(b.errs, fmt.Errorf("code %d effect %q: no activate", code, e.Name))
			continue
		}
		if e.Kind == KindTrigger {
			if e.Trigger == nil || e.Trigger.Event == "" {
				b.errs = append(b.errs, fmt.Errorf("code %d effect %q: trigger without event", code, e.Name))
				continue
			}
			if e.Trigger.Phase != rules.Before && e.Trigger.Phase != rules.After {
				b.errs = append(b.errs, fmt.Errorf("code %d effect %q: bad resolution phase %q", code, e.Name, e.Trigger.Phase))
				continue
			}
		}
		b.effects[code] = append(b.effects[code], e)
	}
	return b
}

// Build freezes the collected definitions.
func (b *Builder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	frozen := make(map[int][]CardEffect, len(b.effects))
	for code, effs := range b.effects {
		frozen[code] = append([]CardEffect(nil), effs...)
	}
	return &Registry{effects: frozen}, nil
}

// Registry is the immutable mapping from card code to effects. It is built
// once at startup and shared by every match.
type Registry struct {
	effects map[int][]CardEffect
}

// Effects returns a copy of the effects registered for code.
func (r *Registry) Effects(code int) []CardEffect {
	if r == nil {
		return nil
	}
	return append([]CardEffect(nil), r.effects[code]...)
}

// Effect returns the index-th effect of code.
func (r *Registry) Effect(code, index int) (CardEffect, bool) {
	if r == nil {
		return CardEffect{}, false
	}
	effs := r.effects[code]
	if index < 0 || index >= len(effs) {
		return CardEffect{}, false
	}
	return effs[index], true
}

// Abilities returns the ability bindings a fresh card of code starts with.
func (r *Registry) Abilities(code int) []cards.Ability {
	n := len(r.Effects(code))
	if n == 0 {
		return nil
	}
	out := make([]cards.Ability, n)
	for i := range out {
		out[i] = cards.Ability{Index: i}
	}
	return out
}

// Codes returns every registered code in ascending order.
func (r *Registry) Codes() []int {
	codes := make([]int, 0, len(r.effects))
	for c := range r.effects {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}
