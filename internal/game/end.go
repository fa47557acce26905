package game

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cookduel/duel-server-go/internal/catalog"
	"github.com/cookduel/duel-server-go/internal/game/cards"
	"github.com/cookduel/duel-server-go/internal/game/effects"
	"github.com/cookduel/duel-server-go/internal/game/recipe"
	"github.com/cookduel/duel-server-go/internal/game/rules"
)

// endChecks are evaluated in order; the first reason under which anyone
// loses ends the match.
var endChecks = []struct {
	reason EndReason
	lost   func(*PlayerData) bool
}{
	{EndHPReachesZero, func(p *PlayerData) bool { return p.HP <= 0 }},
	{EndDeckedOut, func(p *PlayerData) bool { return p.DeckedOut }},
	{EndSurrender, func(p *PlayerData) bool { return p.Surrendered }},
	{EndDisconnected, func(p *PlayerData) bool { return !p.Connected }},
	{EndTimeout, func(p *PlayerData) bool { return p.TimedOut }},
}

// chargeClock bills the time since the last tick to the turn player's match
// clock. It must run before the tick's messages are applied.
func (e *Engine) chargeClock(st *State, now time.Time) {
	if !st.Turn.Running() || e.rules.MatchTime <= 0 {
		return
	}
	p := st.Players[st.Turn.TurnPlayer()]
	p.MatchTime -= now.Sub(st.Clock)
	if p.MatchTime <= 0 {
		p.MatchTime = 0
		p.TimedOut = true
	}
}

// runTimers forces the end of a turn whose deadline passed. Forced ends go
// through the normal pipeline and never interrupt a pending choice.
func (e *Engine) runTimers(ctx context.Context, st *State, now time.Time) {
	if !st.Turn.Running() || e.rules.TurnTimeout <= 0 || st.Pause != nil {
		return
	}
	turnPlayer := st.Turn.TurnPlayer()
	p := st.Players[turnPlayer]
	if p.TurnDeadline.IsZero() || now.Before(p.TurnDeadline) {
		return
	}
	e.logger.Info("turn timer expired",
		zap.String("match_id", st.MatchID),
		zap.String("player_id", turnPlayer),
		zap.Int("turn", st.Turn.TurnCount()),
	)
	e.apply(ctx, st, Message{SenderID: turnPlayer, OpCode: OpEndTurn, ReceivedAt: now}, now)
}

// evaluate ends the match when a terminal condition holds.
func (e *Engine) evaluate(st *State) {
	if !st.Turn.Running() {
		return
	}
	for _, check := range endChecks {
		winners := []string{}
		anyLost := false
		for _, id := range st.Order {
			if check.lost(st.Players[id]) {
				anyLost = true
			} else {
				winners = append(winners, id)
			}
		}
		if anyLost {
			e.finish(st, check.reason, winners)
			return
		}
	}
}

func (e *Engine) finish(st *State, reason EndReason, winners []string) {
	st.Turn.End()
	st.Pause = nil
	st.pending = nil
	st.EndResult = &EndResult{Winners: winners, Reason: reason}
	evt := rules.NewEvent(rules.EventMatchEnded, "", "", "")
	evt.Targets = winners
	evt.Metadata = map[string]string{"reason": string(reason)}
	e.emit(st, evt)
	st.broadcast(PacketEndMatch, func(string) any { return *st.EndResult })
	e.logger.Info("match ended",
		zap.String("match_id", st.MatchID),
		zap.String("reason", string(reason)),
		zap.Strings("winners", winners),
		zap.Int("turns", st.Turn.TurnCount()),
	)
}

// flush sends what changed since the last flush: touched cards, HP changes
// and, when anything happened, fresh available actions.
func (e *Engine) flush(ctx context.Context, st *State) {
	if len(st.dirty) > 0 {
		touched := make([]*cards.Card, 0, len(st.dirty))
		for id := range st.dirty {
			if c, ok := st.Board.Card(id); ok {
				touched = append(touched, c)
			}
		}
		sort.Slice(touched, func(i, j int) bool {
			if touched[i].Sequence != touched[j].Sequence {
				return touched[i].Sequence < touched[j].Sequence
			}
			return touched[i].ID < touched[j].ID
		})
		for _, c := range touched {
			st.broadcast(PacketUpdateCard, func(viewer string) any { return ViewCard(c, viewer) })
		}
		clear(st.dirty)
		st.stale = true
	}

	for _, id := range st.Order {
		p := st.Players[id]
		if p.HP != p.PrevHP {
			data := HPData{Player: id, HP: p.HP}
			st.broadcast(PacketUpdatePlayerHP, func(string) any { return data })
			p.PrevHP = p.HP
		}
	}

	if st.stale {
		for _, id := range st.Order {
			st.send(id, PacketUpdateAvailableActions, e.Available(ctx, st, id))
		}
		st.stale = false
	}
}

// Available lists what player can do right now. Only the turn player outside
// a pending choice can act.
func (e *Engine) Available(ctx context.Context, st *State, player string) AvailableActions {
	out := AvailableActions{
		Settable:    []string{},
		Cookable:    []string{},
		Activatable: []ActivationView{},
		Attackers:   []string{},
	}
	if !st.Turn.Running() || st.Pause != nil || st.Turn.TurnPlayer() != player {
		return out
	}
	out.CanEndTurn = true
	own := func(loc cards.Location) []*cards.Card {
		return st.Board.FindCards(func(c *cards.Card) bool { return c.Owner == player && c.Location.HasAny(loc) })
	}

	if st.Turn.Phase() == rules.PhaseStrike {
		for _, c := range own(cards.LocationServeZone) {
			if c.Attacks < e.rules.AttacksPerTurn {
				out.Attackers = append(out.Attackers, c.ID)
			}
		}
		return out
	}

	out.CanStrike = true
	if setsThisTurn(st, player) < e.rules.IngredientsPerTurn && len(st.Board.FreeColumns(player, cards.LocationStandbyZone)) > 0 {
		for _, c := range own(cards.LocationHand) {
			if c.Props.Type.HasAny(cards.TypeIngredient) {
				out.Settable = append(out.Settable, c.ID)
			}
		}
	}

	materials := own(cards.LocationHand | cards.LocationField)
	props := make([]cards.Properties, len(materials))
	servedMaterial := false
	for i, m := range materials {
		props[i] = m.Props
		servedMaterial = servedMaterial || m.Location == cards.LocationServeZone
	}
	if servedMaterial || len(st.Board.FreeColumns(player, cards.LocationServeZone)) > 0 {
		for _, dish := range own(cards.LocationRecipeDeck) {
			rec, err := e.catalog.ReadDishCardRecipe(ctx, dish.Code())
			if err != nil {
				if !errors.Is(err, catalog.ErrNotFound) {
					e.logger.Warn("recipe lookup failed", zap.String("match_id", st.MatchID), zap.Int("code", dish.Code()), zap.Error(err))
				}
				continue
			}
			if recipe.Feasible(rec, dish.Props, props) {
				out.Cookable = append(out.Cookable, dish.ID)
			}
		}
	}

	for _, c := range own(cards.LocationAll) {
		for _, ability := range c.Abilities {
			eff, ok := e.registry.Effect(c.Code(), ability.Index)
			if !ok || eff.Kind != effects.KindActive || ability.Used.HasAny(eff.Limit) {
				continue
			}
			f := Frame{Code: c.Code(), EffectIndex: ability.Index, CardID: c.ID, Player: player}
			if eff.Allowed(e.context(st, c, f, nil)) {
				out.Activatable = append(out.Activatable, ActivationView{CardID: c.ID, Effect: ability.Index})
			}
		}
	}
	return out
}
