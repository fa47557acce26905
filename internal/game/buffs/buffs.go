// Package buffs applies and removes stacked modifiers on card properties.
//
// Effective values are always rebuilt from the card's base properties by
// folding the remaining buffs in grant order; buffs are never undone one by one.
package buffs

import (
	"github.com/cookduel/duel-server-go/internal/game/cards"
)

// Apply grants buff to card and recomputes it. The granted buff (with its
// zone recorded) is returned.
func Apply(board *cards.Board, card *cards.Card, buff cards.Buff) cards.Buff {
	buff.Zone = card.Location
	card.Buffs = append(card.Buffs, buff)
	Recompute(board, card)
	return buff
}

// Recompute resets card to its base properties and refolds every buff.
func Recompute(board *cards.Board, card *cards.Card) {
	card.Props = card.Base
	for _, b := range card.Buffs {
		fold(board, card, b)
	}
	clamp(&card.Props)
}

// Remove drops the buff with the given ID and recomputes the card.
func Remove(board *cards.Board, card *cards.Card, id string) bool {
	for i, b := range card.Buffs {
		if b.ID == id {
			card.Buffs = append(card.Buffs[:i:i], card.Buffs[i+1:]...)
			Recompute(board, card)
			return true
		}
	}
	return false
}

// Sweep removes every buff whose reset condition holds for trigger and
// recomputes the affected cards. It returns the cards that changed.
func Sweep(board *cards.Board, trigger cards.BuffReset) []*cards.Card {
	var changed []*cards.Card
	for _, card := range board.All() {
		if len(card.Buffs) == 0 {
			continue
		}
		kept := card.Buffs[:0:0]
		for _, b := range card.Buffs {
			if !expired(board, card, b, trigger) {
				kept = append(kept, b)
			}
		}
		if len(kept) == len(card.Buffs) {
			continue
		}
		card.Buffs = kept
		Recompute(board, card)
		changed = append(changed, card)
	}
	return changed
}

func expired(board *cards.Board, card *cards.Card, b cards.Buff, trigger cards.BuffReset) bool {
	if trigger.HasAny(cards.ResetEndTurn) && b.Resets.HasAny(cards.ResetEndTurn) {
		return true
	}
	if trigger.HasAny(cards.ResetSourceRemoved) && b.Resets.HasAny(cards.ResetSourceRemoved) {
		src, ok := board.Card(b.SourceID)
		if !ok || !src.OnField() {
			return true
		}
	}
	if trigger.HasAny(cards.ResetTargetRemoved) && b.Resets.HasAny(cards.ResetTargetRemoved) {
		if !sameArea(card.Location, b.Zone) {
			return true
		}
	}
	return false
}

// sameArea treats the two field rows as one area so that a card moving
// between them keeps its buffs.
func sameArea(now, granted cards.Location) bool {
	if now.HasAny(cards.LocationField) && granted.HasAny(cards.LocationField) {
		return true
	}
	return now == granted
}

func fold(board *cards.Board, card *cards.Card, b cards.Buff) {
	field := card.Props.Field(b.Type)
	if field == nil {
		return
	}
	*field = operation(b)(*field, amount(board, card, b))
}

func amount(board *cards.Board, card *cards.Card, b cards.Buff) int {
	if b.AmountFn != nil {
		return b.AmountFn(board, card)
	}
	return b.Amount
}

func operation(b cards.Buff) func(current, amount int) int {
	switch b.Op {
	case cards.OpMultiply:
		return func(current, amount int) int { return current * amount }
	case cards.OpCustom:
		if b.Transform != nil {
			return b.Transform
		}
		return func(current, _ int) int { return current }
	default:
		return func(current, amount int) int { return current + amount }
	}
}

func clamp(p *cards.Properties) {
	for _, v := range []*int{&p.Power, &p.Health, &p.Grade, &p.Shield, &p.Pierce} {
		if *v < 0 {
			*v = 0
		}
	}
}
