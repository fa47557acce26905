package game

import (
	"fmt"

	"github.com/cookduel/duel-server-go/internal/game/buffs"
	"github.com/cookduel/duel-server-go/internal/game/cards"
	"github.com/cookduel/duel-server-go/internal/game/rules"
)

// move relocates cards and applies the consequences: cards leaving the field
// drop back to their base state, and zone-bound buffs are swept.
func (e *Engine) move(st *State, ids []string, loc cards.Location, owner string, column int, mode cards.InsertMode) error {
	from := make([]cards.ZoneKey, len(ids))
	for i, id := range ids {
		if c, ok := st.Board.Card(id); ok {
			from[i] = cards.ZoneKey{Owner: c.Owner, Location: c.Location, Column: c.Column}
		}
	}
	if err := st.Board.MoveCards(ids, loc, owner, column, mode); err != nil {
		return fmt.Errorf("%w: %w", rules.ErrIntegrity, err)
	}

	to := cards.ZoneKey{Owner: owner, Location: loc, Column: column}
	for i, id := range ids {
		if from[i] == to {
			continue
		}
		c, _ := st.Board.Card(id)
		if from[i].Location.HasAny(cards.LocationField) && !loc.HasAny(cards.LocationField) {
			c.ResetState()
		}
		evt := rules.NewEvent(rules.EventZoneChange, id, "", owner)
		evt.From, evt.To, evt.Column = from[i].Location, loc, column
		e.emit(st, evt)
	}
	e.sweep(st, cards.ResetZoneChange)
	return nil
}

func (e *Engine) sweep(st *State, trigger cards.BuffReset) {
	for _, c := range buffs.Sweep(st.Board, trigger) {
		st.dirty[c.ID] = struct{}{}
	}
}

// draw moves up to n cards from the top of the main deck to the hand. A
// player who has to draw from an empty deck is decked out.
func (e *Engine) draw(st *State, player string, n int) (int, error) {
	p, ok := st.Players[player]
	if !ok {
		return 0, fmt.Errorf("%w: draw for unknown player %s", rules.ErrIntegrity, player)
	}
	drawn := 0
	for ; drawn < n; drawn++ {
		top, err := st.Board.Top(player, cards.LocationMainDeck, 0, 1)
		if err != nil {
			return drawn, fmt.Errorf("%w: %w", rules.ErrIntegrity, err)
		}
		if len(top) == 0 {
			p.DeckedOut = true
			break
		}
		if err := e.move(st, []string{top[0].ID}, cards.LocationHand, player, 0, cards.InsertBottom); err != nil {
			return drawn, err
		}
		e.emit(st, rules.NewEvent(rules.EventDraw, top[0].ID, "", player))
	}
	return drawn, nil
}

func (e *Engine) destroy(st *State, card, source *cards.Card) error {
	if !card.OnField() {
		return nil
	}
	owner := card.Owner
	if err := e.move(st, []string{card.ID}, cards.LocationTrash, owner, 0, cards.InsertTop); err != nil {
		return err
	}
	e.emit(st, rules.NewEvent(rules.EventDestroyed, card.ID, sourceID(source), owner))
	return nil
}

func (e *Engine) damagePlayer(st *State, player string, amount int, source *cards.Card) {
	p, ok := st.Players[player]
	if !ok || amount <= 0 {
		return
	}
	p.HP = max(0, p.HP-amount)
	e.emit(st, rules.NewEventWithAmount(rules.EventPlayerDamaged, "", sourceID(source), player, amount))
}

// healPlayer restores HP up to the starting value.
func (e *Engine) healPlayer(st *State, player string, amount int, source *cards.Card) {
	p, ok := st.Players[player]
	if !ok || amount <= 0 {
		return
	}
	p.HP = min(e.rules.StartingHP, p.HP+amount)
	e.emit(st, rules.NewEventWithAmount(rules.EventPlayerHealed, "", sourceID(source), player, amount))
}

func (e *Engine) grant(st *State, source, target *cards.Card, buff cards.Buff) cards.Buff {
	buff.ID = st.nextID()
	buff.SourceID = sourceID(source)
	granted := buffs.Apply(st.Board, target, buff)
	evt := rules.NewEventWithAmount(rules.EventBuffed, target.ID, buff.SourceID, target.Owner, buff.Amount)
	evt.Metadata = map[string]string{"buff_id": granted.ID, "type": string(buff.Type)}
	e.emit(st, evt)
	return granted
}

func sourceID(c *cards.Card) string {
	if c == nil {
		return ""
	}
	return c.ID
}
