package game

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/cookduel/duel-server-go/internal/catalog"
	"github.com/cookduel/duel-server-go/internal/game/cards"
	"github.com/cookduel/duel-server-go/internal/game/choice"
	"github.com/cookduel/duel-server-go/internal/game/effects"
	"github.com/cookduel/duel-server-go/internal/game/recipe"
	"github.com/cookduel/duel-server-go/internal/game/rules"
	"github.com/cookduel/duel-server-go/internal/game/watchers"
)

// apply runs one message through the pipeline and flushes what it produced.
// Refused actions leave the state untouched and only answer the sender.
func (e *Engine) apply(ctx context.Context, st *State, msg Message, now time.Time) {
	action, err := DecodeAction(msg.OpCode, msg.Payload)
	if err == nil {
		err = e.dispatch(ctx, st, msg.SenderID, action, now)
	}
	if err == nil {
		err = e.drain(st)
	}
	if err != nil {
		e.refuse(st, msg, err)
	}
	e.flush(ctx, st)
}

func (e *Engine) refuse(st *State, msg Message, err error) {
	var re *rules.RuleError
	if !errors.As(err, &re) {
		e.logger.Error("action aborted",
			zap.String("match_id", st.MatchID),
			zap.String("player_id", msg.SenderID),
			zap.Stringer("op", msg.OpCode),
			zap.Bool("integrity", errors.Is(err, rules.ErrIntegrity)),
			zap.Error(err),
		)
		st.send(msg.SenderID, PacketError, ErrorData{Reason: rules.ReasonInternalError})
		return
	}

	e.logger.Debug("action refused",
		zap.String("match_id", st.MatchID),
		zap.String("player_id", msg.SenderID),
		zap.Stringer("op", msg.OpCode),
		zap.String("reason", re.Reason),
		zap.String("detail", re.Detail),
	)
	st.send(msg.SenderID, PacketError, ErrorData{Reason: re.Reason, Detail: re.Detail})
	if st.Pause != nil && (re.Reason == rules.ReasonInvalidChoice || re.Reason == rules.ReasonNotChoosingPlayer) {
		for _, id := range st.Pause.Players {
			st.send(id, PacketRequestChoice, viewRequest(st.Pause.Request, id))
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, st *State, sender string, action Action, now time.Time) error {
	if _, ok := st.Players[sender]; !ok {
		return rules.Reject(rules.ReasonUnknownPlayer, "%s", sender)
	}

	switch a := action.(type) {
	case *MessageAction:
		st.broadcast(PacketMessage, func(string) any { return ChatData{Sender: sender, Text: a.Text} })
		return nil
	case *ReadyAction:
		return e.ready(ctx, st, sender)
	case *SurrenderAction:
		return e.surrender(st, sender)
	case *RespondChoiceAction:
		return e.respondChoice(st, sender, a)
	}

	if err := e.gate(st, sender); err != nil {
		return err
	}
	switch a := action.(type) {
	case *SetIngredientAction:
		return e.setIngredient(st, sender, a)
	case *CookSummonAction:
		return e.cookSummon(ctx, st, sender, a)
	case *ActivateAction:
		return e.activate(st, sender, a)
	case *GoToStrikeAction:
		return e.goToStrike(st)
	case *AttackAction:
		return e.attack(st, sender, a)
	case *EndTurnAction:
		return e.endTurn(st, sender, now)
	default:
		return fmt.Errorf("%w: unhandled action %T", rules.ErrIntegrity, action)
	}
}

// gate checks what every turn-bound action needs.
func (e *Engine) gate(st *State, sender string) error {
	switch {
	case !st.Turn.Running():
		return rules.Reject(rules.ReasonMatchNotRunning, "match is %s", st.Turn.Status())
	case st.Turn.TurnPlayer() != sender:
		return rules.Reject(rules.ReasonNotYourTurn, "turn belongs to %s", st.Turn.TurnPlayer())
	case st.Pause != nil:
		return rules.Reject(rules.ReasonResolutionPending, "waiting for %v", st.Pause.Players)
	}
	return nil
}

func requirePhase(st *State, want rules.Phase) error {
	if st.Turn.Phase() != want {
		return rules.Reject(rules.ReasonWrongPhase, "need %s phase, in %s", want, st.Turn.Phase())
	}
	return nil
}

// ownCard looks up a card the sender owns.
func ownCard(st *State, sender, id string) (*cards.Card, error) {
	c, ok := st.Board.Card(id)
	if !ok || c.Owner != sender {
		return nil, rules.Reject(rules.ReasonInvalidCard, "%s is not your card", id)
	}
	return c, nil
}

func (e *Engine) checkColumn(column int) error {
	if column < 0 || column >= e.rules.BoardColumns {
		return rules.Reject(rules.ReasonInvalidColumn, "column %d", column)
	}
	return nil
}

func setsThisTurn(st *State, player string) int {
	if w, ok := st.Watchers.Get(watchers.KeySets).(*watchers.PlayerEventWatcher); ok {
		return w.Count(player)
	}
	return 0
}

func (e *Engine) ready(ctx context.Context, st *State, sender string) error {
	st.Players[sender].Ready = true
	e.sync(ctx, st, sender)
	if st.Pause != nil && slices.Contains(st.Pause.Players, sender) {
		st.send(sender, PacketRequestChoice, viewRequest(st.Pause.Request, sender))
	}
	return nil
}

func (e *Engine) surrender(st *State, sender string) error {
	if !st.Turn.Running() {
		return rules.Reject(rules.ReasonMatchNotRunning, "match is %s", st.Turn.Status())
	}
	st.Players[sender].Surrendered = true
	e.emit(st, rules.NewEvent(rules.EventSurrender, "", "", sender))
	return nil
}

func (e *Engine) setIngredient(st *State, sender string, a *SetIngredientAction) error {
	if err := requirePhase(st, rules.PhaseSetup); err != nil {
		return err
	}
	card, err := ownCard(st, sender, a.CardID)
	if err != nil {
		return err
	}
	if card.Location != cards.LocationHand || !card.Props.Type.HasAny(cards.TypeIngredient) {
		return rules.Reject(rules.ReasonInvalidCard, "%s is not an ingredient in hand", a.CardID)
	}
	if err := e.checkColumn(a.Column); err != nil {
		return err
	}
	if st.Board.Occupant(sender, cards.LocationStandbyZone, a.Column) != nil {
		return rules.Reject(rules.ReasonColumnOccupied, "standby column %d", a.Column)
	}
	if setsThisTurn(st, sender) >= e.rules.IngredientsPerTurn {
		return rules.Reject(rules.ReasonSetLimitReached, "%d per turn", e.rules.IngredientsPerTurn)
	}

	evt := rules.NewEvent(rules.EventSet, card.ID, "", sender)
	evt.Column = a.Column
	e.before(st, evt)
	if err := e.move(st, []string{card.ID}, cards.LocationStandbyZone, sender, a.Column, cards.InsertBottom); err != nil {
		return err
	}
	e.emit(st, evt)
	st.broadcast(PacketSet, func(viewer string) any {
		return SetData{Player: sender, Card: ViewCard(card, viewer), Column: a.Column}
	})
	return nil
}

func (e *Engine) cookSummon(ctx context.Context, st *State, sender string, a *CookSummonAction) error {
	if err := requirePhase(st, rules.PhaseSetup); err != nil {
		return err
	}
	dish, err := ownCard(st, sender, a.DishID)
	if err != nil {
		return err
	}
	if dish.Location != cards.LocationRecipeDeck || !dish.Props.Type.HasAny(cards.TypeDish) {
		return rules.Reject(rules.ReasonInvalidCard, "%s is not a dish in your recipe deck", a.DishID)
	}
	if err := e.checkColumn(a.Column); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(a.Materials))
	props := make([]cards.Properties, 0, len(a.Materials))
	for _, id := range a.Materials {
		if _, dup := seen[id]; dup || id == dish.ID {
			return rules.Reject(rules.ReasonInvalidMaterials, "%s listed twice", id)
		}
		seen[id] = struct{}{}
		m, ok := st.Board.Card(id)
		if !ok || m.Owner != sender || !m.Location.HasAny(cards.LocationHand|cards.LocationField) {
			return rules.Reject(rules.ReasonInvalidMaterials, "%s is not in your hand or on your field", id)
		}
		props = append(props, m.Props)
	}

	rec, err := e.catalog.ReadDishCardRecipe(ctx, dish.Code())
	if errors.Is(err, catalog.ErrNotFound) {
		return rules.Reject(rules.ReasonNoRecipe, "dish %d", dish.Code())
	}
	if err != nil {
		return fmt.Errorf("%w: recipe %d: %w", rules.ErrIntegrity, dish.Code(), err)
	}
	if !recipe.IsComplete(rec, dish.Props, props) {
		return rules.Reject(rules.ReasonInvalidMaterials, "materials do not fit recipe %d", dish.Code())
	}
	if occ := st.Board.Occupant(sender, cards.LocationServeZone, a.Column); occ != nil {
		if _, consumed := seen[occ.ID]; !consumed {
			return rules.Reject(rules.ReasonColumnOccupied, "serve column %d", a.Column)
		}
	}

	evt := rules.NewEvent(rules.EventSummon, dish.ID, "", sender)
	evt.Column = a.Column
	evt.Targets = append([]string(nil), a.Materials...)
	e.before(st, evt)
	if err := e.move(st, a.Materials, cards.LocationTrash, sender, 0, cards.InsertTop); err != nil {
		return err
	}
	if err := e.move(st, []string{dish.ID}, cards.LocationServeZone, sender, a.Column, cards.InsertBottom); err != nil {
		return err
	}
	e.emit(st, evt)
	st.broadcast(PacketSummon, func(viewer string) any {
		return SummonData{Player: sender, Card: ViewCard(dish, viewer), Materials: evt.Targets, Column: a.Column}
	})
	return nil
}

func (e *Engine) activate(st *State, sender string, a *ActivateAction) error {
	if err := requirePhase(st, rules.PhaseSetup); err != nil {
		return err
	}
	card, err := ownCard(st, sender, a.CardID)
	if err != nil {
		return err
	}
	ability, bound := card.Ability(a.Effect)
	eff, registered := e.registry.Effect(card.Code(), a.Effect)
	if !bound || !registered || eff.Kind != effects.KindActive {
		return rules.Reject(rules.ReasonNoSuchEffect, "card %d has no active effect %d", card.Code(), a.Effect)
	}
	if ability.Used.HasAny(eff.Limit) {
		return rules.Reject(rules.ReasonLimitReached, "%s already used", eff.Name)
	}
	f := Frame{Code: card.Code(), EffectIndex: a.Effect, CardID: card.ID, Player: sender}
	if !eff.Allowed(e.context(st, card, f, nil)) {
		return rules.Reject(rules.ReasonConditionFailed, "%s cannot be used now", eff.Name)
	}

	e.emit(st, rules.NewEvent(rules.EventActivate, card.ID, card.ID, sender))
	return e.run(st, f, nil)
}

func (e *Engine) goToStrike(st *State) error {
	if err := requirePhase(st, rules.PhaseSetup); err != nil {
		return err
	}
	if err := st.Turn.EnterStrike(); err != nil {
		return err
	}
	e.emit(st, rules.NewEvent(rules.EventStrikePhase, "", "", st.Turn.TurnPlayer()))
	st.broadcast(PacketChangeTurn, func(string) any { return turnData(st) })
	return nil
}

// attack resolves one attack. Damage to a card is power minus the target's
// shield; a card is destroyed once its damage reaches its health. Overflow
// past the remaining health reaches the opponent up to the attacker's pierce.
// Direct attacks need an empty opposing serve zone.
func (e *Engine) attack(st *State, sender string, a *AttackAction) error {
	if err := requirePhase(st, rules.PhaseStrike); err != nil {
		return err
	}
	attacker, err := ownCard(st, sender, a.AttackerID)
	if err != nil {
		return err
	}
	if attacker.Location != cards.LocationServeZone {
		return rules.Reject(rules.ReasonInvalidCard, "%s is not served", a.AttackerID)
	}
	if attacker.Attacks >= e.rules.AttacksPerTurn {
		return rules.Reject(rules.ReasonAlreadyAttacked, "%s", a.AttackerID)
	}
	opponent := st.Opponent(sender)
	var target *cards.Card
	if a.TargetID == "" {
		if st.Board.Count(opponent, cards.LocationServeZone) > 0 {
			return rules.Reject(rules.ReasonInvalidTarget, "opponent still has dishes served")
		}
	} else {
		t, ok := st.Board.Card(a.TargetID)
		if !ok || t.Owner != opponent || !t.OnField() {
			return rules.Reject(rules.ReasonInvalidTarget, "%s is not on the opposing field", a.TargetID)
		}
		target = t
	}

	attacker.Attacks++
	evt := rules.NewEvent(rules.EventAttack, a.TargetID, attacker.ID, sender)
	e.before(st, evt)

	data := AttackData{Player: sender, AttackerID: attacker.ID, TargetID: a.TargetID}
	power := attacker.Props.Power
	switch {
	case target == nil:
		data.PlayerDamage = power
		e.damagePlayer(st, opponent, power, attacker)
	case target.OnField() && target.Owner == opponent:
		remaining := target.RemainingHealth()
		data.Damage = max(0, power-target.Props.Shield)
		if data.Damage > 0 {
			target.Damage += data.Damage
			e.emit(st, rules.NewEventWithAmount(rules.EventDamaged, target.ID, attacker.ID, opponent, data.Damage))
		}
		if target.Damage >= target.Props.Health {
			if err := e.destroy(st, target, attacker); err != nil {
				return err
			}
			data.Destroyed = true
		}
		if pierce := attacker.Props.Pierce; pierce > 0 && data.Damage > remaining {
			data.PlayerDamage = min(data.Damage-remaining, pierce)
			e.damagePlayer(st, opponent, data.PlayerDamage, attacker)
		}
	}

	evt.Amount = data.Damage
	e.emit(st, evt)
	st.broadcast(PacketAttack, func(string) any { return data })
	return nil
}

func (e *Engine) endTurn(st *State, sender string, now time.Time) error {
	e.emit(st, rules.NewEvent(rules.EventTurnEnded, "", "", sender))
	for _, c := range st.Board.All() {
		if c.Damage != 0 || c.Attacks != 0 {
			c.Damage, c.Attacks = 0, 0
			st.dirty[c.ID] = struct{}{}
		}
		c.ClearLimits(cards.LimitOncePerTurn)
	}
	e.sweep(st, cards.ResetEndTurn)
	st.Watchers.ResetScope(rules.WatcherScopeTurn)

	next := st.Opponent(sender)
	if err := st.Turn.EndTurn(next); err != nil {
		return err
	}
	if e.rules.TurnTimeout > 0 {
		st.Players[next].TurnDeadline = now.Add(e.rules.TurnTimeout)
	}
	e.emit(st, rules.NewEvent(rules.EventTurnStarted, "", "", next))
	st.broadcast(PacketChangeTurn, func(string) any { return turnData(st) })
	_, err := e.draw(st, next, e.rules.DrawPerTurn)
	return err
}

func (e *Engine) respondChoice(st *State, sender string, a *RespondChoiceAction) error {
	pause := st.Pause
	switch {
	case pause == nil:
		return rules.Reject(rules.ReasonInvalidChoice, "no choice is pending")
	case !slices.Contains(pause.Players, sender):
		return rules.Reject(rules.ReasonNotChoosingPlayer, "waiting for %v", pause.Players)
	case a.RequestID != pause.Request.ID:
		return rules.Reject(rules.ReasonInvalidChoice, "request %s is not pending", a.RequestID)
	}
	if err := pause.Request.Validate(sender, a.Selection); err != nil {
		if errors.Is(err, choice.ErrWrongPlayer) {
			return rules.Reject(rules.ReasonNotChoosingPlayer, "%v", err)
		}
		return rules.Reject(rules.ReasonInvalidChoice, "%v", err)
	}

	st.Pause = nil
	selection := append([]string(nil), a.Selection...)
	evt := rules.NewEvent(rules.EventChoiceResolved, pause.Frame.CardID, "", sender)
	evt.Targets = selection
	e.emit(st, evt)
	st.broadcast(PacketRespondChoice, func(string) any {
		return ChoiceResponseData{RequestID: pause.Request.ID, Player: sender, Selection: selection}
	})
	return e.run(st, pause.Frame, selection)
}
