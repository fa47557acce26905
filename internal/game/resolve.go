package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cookduel/duel-server-go/internal/game/cards"
	"github.com/cookduel/duel-server-go/internal/game/effects"
	"github.com/cookduel/duel-server-go/internal/game/rules"
)

// table is the effects.Game view of one match.
type table struct {
	e  *Engine
	st *State
}

var _ effects.Game = (*table)(nil)

func (t *table) Board() *cards.Board           { return t.st.Board }
func (t *table) TurnPlayer() string            { return t.st.Turn.TurnPlayer() }
func (t *table) TurnCount() int                { return t.st.Turn.TurnCount() }
func (t *table) Phase() rules.Phase            { return t.st.Turn.Phase() }
func (t *table) Opponent(player string) string { return t.st.Opponent(player) }
func (t *table) Watcher(key string) rules.Watcher {
	return t.st.Watchers.Get(key)
}

func (t *table) HP(player string) int {
	if p, ok := t.st.Players[player]; ok {
		return p.HP
	}
	return 0
}

func (t *table) Grant(source, target *cards.Card, buff cards.Buff) cards.Buff {
	return t.e.grant(t.st, source, target, buff)
}

func (t *table) Move(ids []string, loc cards.Location, owner string, column int, mode cards.InsertMode) error {
	return t.e.move(t.st, ids, loc, owner, column, mode)
}

func (t *table) Draw(player string, n int) (int, error) { return t.e.draw(t.st, player, n) }

func (t *table) Destroy(card, source *cards.Card) error { return t.e.destroy(t.st, card, source) }

func (t *table) DamagePlayer(player string, amount int, source *cards.Card) {
	t.e.damagePlayer(t.st, player, amount, source)
}

func (t *table) HealPlayer(player string, amount int, source *cards.Card) {
	t.e.healPlayer(t.st, player, amount, source)
}

func (e *Engine) context(st *State, card *cards.Card, f Frame, selection []string) *effects.Context {
	bindings := f.Bindings
	if bindings == nil {
		bindings = effects.Bindings{}
	}
	return &effects.Context{
		Game:     &table{e: e, st: st},
		Card:     card,
		Player:   f.Player,
		Effect:   f.EffectIndex,
		Step:     f.Step,
		Bindings: bindings,
		Choice:   selection,
		Event:    f.Event,
	}
}

// emit publishes evt and queues the after-phase triggers it matches.
func (e *Engine) emit(st *State, evt rules.Event) {
	evt.Tick = st.Tick
	st.publish(evt)
	if st.Turn.Running() {
		st.pending = append(st.pending, e.collect(st, evt, rules.After)...)
	}
}

// before runs the before-phase triggers of evt on the spot. They cannot ask
// for a choice; one that tries is dropped.
func (e *Engine) before(st *State, evt rules.Event) {
	evt.Tick = st.Tick
	for _, f := range e.collect(st, evt, rules.Before) {
		card, eff, err := e.frame(st, f)
		if err != nil {
			e.logger.Error("before trigger skipped", zap.String("match_id", st.MatchID), zap.Error(err))
			continue
		}
		e.markUsed(card, f.EffectIndex, eff.Limit)
		if res := eff.Activate(e.context(st, card, f, nil)); !res.Done() {
			e.logger.Error("before trigger asked for a choice",
				zap.String("match_id", st.MatchID),
				zap.Int("code", f.Code),
				zap.String("effect", eff.Name),
				zap.Error(rules.ErrIntegrity),
			)
		}
	}
}

// collect finds the triggers of phase that react to evt, in board order.
func (e *Engine) collect(st *State, evt rules.Event, phase rules.ResolutionPhase) []Frame {
	var frames []Frame
	for _, card := range st.Board.All() {
		for _, ability := range card.Abilities {
			eff, ok := e.registry.Effect(card.Code(), ability.Index)
			if !ok || eff.Kind != effects.KindTrigger || eff.Trigger.Event != evt.Type || eff.Trigger.Phase != phase {
				continue
			}
			if ability.Used.HasAny(eff.Limit) {
				continue
			}
			event := evt
			f := Frame{
				Code:        card.Code(),
				EffectIndex: ability.Index,
				CardID:      card.ID,
				Player:      card.Owner,
				Event:       &event,
			}
			ctx := e.context(st, card, f, nil)
			if eff.Trigger.Filter != nil && !eff.Trigger.Filter(ctx) {
				continue
			}
			if !eff.Allowed(ctx) {
				continue
			}
			frames = append(frames, f)
		}
	}
	return frames
}

func (e *Engine) frame(st *State, f Frame) (*cards.Card, effects.CardEffect, error) {
	card, ok := st.Board.Card(f.CardID)
	if !ok {
		return nil, effects.CardEffect{}, fmt.Errorf("%w: frame card %s missing", rules.ErrIntegrity, f.CardID)
	}
	eff, ok := e.registry.Effect(f.Code, f.EffectIndex)
	if !ok {
		return nil, effects.CardEffect{}, fmt.Errorf("%w: no effect %d for code %d", rules.ErrIntegrity, f.EffectIndex, f.Code)
	}
	return card, eff, nil
}

func (e *Engine) markUsed(card *cards.Card, index int, limit cards.Limit) {
	if ability, ok := card.Ability(index); ok {
		ability.Used |= limit
	}
}

// run executes one step of f. When the effect asks for a decision the match
// is paused on it; the frame resumes from respond_choice.
func (e *Engine) run(st *State, f Frame, selection []string) error {
	card, eff, err := e.frame(st, f)
	if err != nil {
		return err
	}
	if f.Step == 0 {
		e.markUsed(card, f.EffectIndex, eff.Limit)
	}
	ctx := e.context(st, card, f, selection)
	res := eff.Activate(ctx)
	if res.Done() {
		return nil
	}

	req := res.Request
	if !req.Satisfiable() {
		e.logger.Warn("effect ended on a choice nobody can answer",
			zap.String("match_id", st.MatchID),
			zap.Int("code", f.Code),
			zap.String("effect", eff.Name),
		)
		return nil
	}
	req.ID = st.nextID()
	f.Step = res.Next
	f.Bindings = ctx.Bindings
	st.Pause = &PauseStatus{
		Reason:  PauseReasonChoice,
		Players: []string{req.Player},
		Request: req,
		Frame:   f,
	}
	e.emit(st, rules.NewEvent(rules.EventChoiceRequested, card.ID, card.ID, req.Player))
	st.broadcast(PacketRequestChoice, func(viewer string) any { return viewRequest(req, viewer) })
	return nil
}

// drain resolves queued triggers one by one until one pauses or none are
// left.
func (e *Engine) drain(st *State) error {
	for st.Pause == nil && len(st.pending) > 0 && st.Turn.Running() {
		f := st.pending[0]
		st.pending = st.pending[1:]
		if err := e.run(st, f, nil); err != nil {
			return err
		}
	}
	return nil
}
