package cards

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
)

var (
	// ErrInvalidZone is returned when a (location, column) pair does not name a zone.
	ErrInvalidZone = errors.New("invalid zone")
	// ErrUnknownCard is returned when a card ID is not registered on the board.
	ErrUnknownCard = errors.New("unknown card")
)

// InsertMode controls where moved cards land in the destination zone.
type InsertMode int

const (
	InsertBottom InsertMode = iota
	InsertTop
	InsertShuffle
)

// ZoneKey identifies a zone.
type ZoneKey struct {
	Owner    string
	Location Location
	Column   int
}

func (k ZoneKey) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Owner, k.Location, k.Column)
}

// Zone is an ordered list of card IDs; index 0 is the top.
type Zone struct {
	Key ZoneKey
	ids []string
}

// Len returns the number of cards in the zone.
func (z *Zone) Len() int { return len(z.ids) }

func (z *Zone) indexOf(id string) int {
	for i, v := range z.ids {
		if v == id {
			return i
		}
	}
	return -1
}

func (z *Zone) remove(id string) {
	if i := z.indexOf(id); i >= 0 {
		z.ids = append(z.ids[:i], z.ids[i+1:]...)
	}
}

// Board owns every card of a match and the zones that contain them.
type Board struct {
	Columns int

	cards map[string]*Card
	zones map[ZoneKey]*Zone
	seq   int
	rng   *rand.Rand
}

// NewBoard creates an empty board with the given number of field columns.
// Shuffles are driven by seed so a match can be reproduced.
func NewBoard(columns int, seed uint64) *Board {
	return &Board{
		Columns: columns,
		cards:   make(map[string]*Card),
		zones:   make(map[ZoneKey]*Zone),
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// ValidateZone checks that location and column name a zone on this board.
func (b *Board) ValidateZone(loc Location, column int) error {
	if !loc.Single() || !LocationAll.HasAll(loc) {
		return fmt.Errorf("%w: location %s", ErrInvalidZone, loc)
	}
	if loc.HasAny(LocationField) {
		if column < 0 || column >= b.Columns {
			return fmt.Errorf("%w: column %d out of range for %s", ErrInvalidZone, column, loc)
		}
		return nil
	}
	if column != 0 {
		return fmt.Errorf("%w: column %d on %s", ErrInvalidZone, column, loc)
	}
	return nil
}

// Add registers an unplaced card.
func (b *Board) Add(c *Card) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("add card: missing id")
	}
	if _, exists := b.cards[c.ID]; exists {
		return fmt.Errorf("add card %s: duplicate id", c.ID)
	}
	c.Location = LocationNone
	c.Column = 0
	b.cards[c.ID] = c
	return nil
}

// Card looks up a card by ID.
func (b *Board) Card(id string) (*Card, bool) {
	c, ok := b.cards[id]
	return c, ok
}

func (b *Board) zone(key ZoneKey) *Zone {
	z, ok := b.zones[key]
	if !ok {
		z = &Zone{Key: key}
		b.zones[key] = z
	}
	return z
}

// MoveCards moves every listed card into the zone (owner, loc, column).
// The call is all-or-nothing: every ID and the destination are checked before
// any card moves. A card already in the destination keeps its position and is
// only resequenced.
func (b *Board) MoveCards(ids []string, loc Location, owner string, column int, mode InsertMode) error {
	if err := b.ValidateZone(loc, column); err != nil {
		return err
	}
	if owner == "" {
		return fmt.Errorf("%w: empty owner", ErrInvalidZone)
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := b.cards[id]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCard, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("move cards: duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}

	dest := b.zone(ZoneKey{Owner: owner, Location: loc, Column: column})
	incoming := make([]string, 0, len(ids))
	for _, id := range ids {
		c := b.cards[id]
		b.seq++
		c.Sequence = b.seq
		if dest.indexOf(id) >= 0 {
			continue
		}
		if c.Location != LocationNone {
			b.zone(ZoneKey{Owner: c.Owner, Location: c.Location, Column: c.Column}).remove(id)
		}
		c.Owner = owner
		c.Location = loc
		c.Column = column
		incoming = append(incoming, id)
	}

	switch mode {
	case InsertTop:
		dest.ids = append(incoming, dest.ids...)
	case InsertShuffle:
		dest.ids = append(dest.ids, incoming...)
		b.shuffle(dest)
	default:
		dest.ids = append(dest.ids, incoming...)
	}
	return nil
}

// Shuffle randomizes the order of a zone.
func (b *Board) Shuffle(owner string, loc Location, column int) error {
	if err := b.ValidateZone(loc, column); err != nil {
		return err
	}
	b.shuffle(b.zone(ZoneKey{Owner: owner, Location: loc, Column: column}))
	return nil
}

func (b *Board) shuffle(z *Zone) {
	b.rng.Shuffle(len(z.ids), func(i, j int) { z.ids[i], z.ids[j] = z.ids[j], z.ids[i] })
}

// Cards returns a snapshot of the card IDs in a zone, top first.
func (b *Board) Cards(owner string, loc Location, column int) ([]string, error) {
	if err := b.ValidateZone(loc, column); err != nil {
		return nil, err
	}
	z, ok := b.zones[ZoneKey{Owner: owner, Location: loc, Column: column}]
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), z.ids...), nil
}

// CardsIn returns the cards of a zone, top first. The slice is a snapshot.
func (b *Board) CardsIn(owner string, loc Location, column int) ([]*Card, error) {
	ids, err := b.Cards(owner, loc, column)
	if err != nil {
		return nil, err
	}
	out := make([]*Card, len(ids))
	for i, id := range ids {
		out[i] = b.cards[id]
	}
	return out, nil
}

// Count returns the number of cards owner has in every column of loc.
func (b *Board) Count(owner string, loc Location) int {
	n := 0
	for key, z := range b.zones {
		if key.Owner == owner && loc.HasAny(key.Location) {
			n += len(z.ids)
		}
	}
	return n
}

// Top returns up to n cards from the top of a zone.
func (b *Board) Top(owner string, loc Location, column, n int) ([]*Card, error) {
	all, err := b.CardsIn(owner, loc, column)
	if err != nil {
		return nil, err
	}
	if n < len(all) {
		all = all[:n]
	}
	return all, nil
}

// Occupant returns the first card in a field slot, or nil if it is free.
func (b *Board) Occupant(owner string, loc Location, column int) *Card {
	z, ok := b.zones[ZoneKey{Owner: owner, Location: loc, Column: column}]
	if !ok || len(z.ids) == 0 {
		return nil
	}
	return b.cards[z.ids[0]]
}

// FreeColumns lists the columns of loc that owner has not filled.
func (b *Board) FreeColumns(owner string, loc Location) []int {
	free := make([]int, 0, b.Columns)
	for col := 0; col < b.Columns; col++ {
		if b.Occupant(owner, loc, col) == nil {
			free = append(free, col)
		}
	}
	return free
}

// FindCards returns the cards matching pred ordered by sequence. The slice is
// a snapshot; the cards are live.
func (b *Board) FindCards(pred func(*Card) bool) []*Card {
	out := make([]*Card, 0)
	for _, c := range b.cards {
		if pred == nil || pred(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// All returns every card on the board ordered by sequence.
func (b *Board) All() []*Card { return b.FindCards(nil) }

// ZoneKeys returns every non-empty zone key in a stable order.
func (b *Board) ZoneKeys() []ZoneKey {
	keys := make([]ZoneKey, 0, len(b.zones))
	for k, z := range b.zones {
		if len(z.ids) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Owner != keys[j].Owner {
			return keys[i].Owner < keys[j].Owner
		}
		if keys[i].Location != keys[j].Location {
			return keys[i].Location < keys[j].Location
		}
		return keys[i].Column < keys[j].Column
	})
	return keys
}

// CheckConsistency verifies that zones and cards agree on placement and that
// each placed card belongs to exactly one zone.
func (b *Board) CheckConsistency() error {
	owners := make(map[string]ZoneKey, len(b.cards))
	for key, z := range b.zones {
		for _, id := range z.ids {
			c, ok := b.cards[id]
			if !ok {
				return fmt.Errorf("zone %s references %w %s", key, ErrUnknownCard, id)
			}
			if prev, dup := owners[id]; dup {
				return fmt.Errorf("card %s is in zones %s and %s", id, prev, key)
			}
			owners[id] = key
			if c.Owner != key.Owner || c.Location != key.Location || c.Column != key.Column {
				return fmt.Errorf("card %s says %s/%s/%d but sits in %s", id, c.Owner, c.Location, c.Column, key)
			}
		}
	}
	for id, c := range b.cards {
		if _, placed := owners[id]; !placed && c.Location != LocationNone {
			return fmt.Errorf("card %s claims %s but no zone holds it", id, c.Location)
		}
	}
	return nil
}
