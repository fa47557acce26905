package cards

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestBoard(t *testing.T, n int) (*Board, []string) {
	t.Helper()
	b := NewBoard(3, 7)
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("c%d", i)
		require.NoError(t, b.Add(New(ids[i], "alice", Properties{Code: 100 + i, Type: TypeIngredient})))
	}
	return b, ids
}

func TestMoveCardsUpdatesBothSides(t *testing.T) {
	b, ids := newTestBoard(t, 3)

	require.NoError(t, b.MoveCards(ids, LocationMainDeck, "alice", 0, InsertBottom))
	deck, err := b.Cards("alice", LocationMainDeck, 0)
	require.NoError(t, err)
	assert.Equal(t, ids, deck)

	require.NoError(t, b.MoveCards([]string{"c1"}, LocationStandbyZone, "alice", 2, InsertBottom))
	c, _ := b.Card("c1")
	assert.Equal(t, LocationStandbyZone, c.Location)
	assert.Equal(t, 2, c.Column)

	deck, _ = b.Cards("alice", LocationMainDeck, 0)
	assert.Equal(t, []string{"c0", "c2"}, deck)
	require.NoError(t, b.CheckConsistency())
}

func TestMoveCardsInsertTopKeepsGivenOrder(t *testing.T) {
	b, ids := newTestBoard(t, 4)
	require.NoError(t, b.MoveCards(ids[:2], LocationTrash, "alice", 0, InsertBottom))
	require.NoError(t, b.MoveCards(ids[2:], LocationTrash, "alice", 0, InsertTop))

	trash, _ := b.Cards("alice", LocationTrash, 0)
	assert.Equal(t, []string{"c2", "c3", "c0", "c1"}, trash)
}

func TestMoveToSameZoneOnlyResequences(t *testing.T) {
	b, ids := newTestBoard(t, 3)
	require.NoError(t, b.MoveCards(ids, LocationHand, "alice", 0, InsertBottom))
	before, _ := b.Cards("alice", LocationHand, 0)
	c0, _ := b.Card("c0")
	seq := c0.Sequence

	require.NoError(t, b.MoveCards([]string{"c0"}, LocationHand, "alice", 0, InsertBottom))

	after, _ := b.Cards("alice", LocationHand, 0)
	assert.Equal(t, before, after)
	assert.Greater(t, c0.Sequence, seq)
	require.NoError(t, b.CheckConsistency())
}

func TestMoveCardsIsAllOrNothing(t *testing.T) {
	b, ids := newTestBoard(t, 2)
	require.NoError(t, b.MoveCards(ids, LocationHand, "alice", 0, InsertBottom))

	err := b.MoveCards([]string{"c0", "missing"}, LocationTrash, "alice", 0, InsertBottom)
	require.ErrorIs(t, err, ErrUnknownCard)

	hand, _ := b.Cards("alice", LocationHand, 0)
	assert.Equal(t, ids, hand)
	c0, _ := b.Card("c0")
	assert.Equal(t, LocationHand, c0.Location)
}

func TestInvalidZoneIsRejected(t *testing.T) {
	b, ids := newTestBoard(t, 1)

	cases := []struct {
		name   string
		loc    Location
		column int
	}{
		{"combined mask", LocationHand | LocationTrash, 0},
		{"none", LocationNone, 0},
		{"column past board", LocationServeZone, 3},
		{"negative column", LocationStandbyZone, -1},
		{"column off field", LocationHand, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := b.MoveCards(ids, tc.loc, "alice", tc.column, InsertBottom)
			assert.True(t, errors.Is(err, ErrInvalidZone), "got %v", err)
			_, err = b.Cards("alice", tc.loc, tc.column)
			assert.ErrorIs(t, err, ErrInvalidZone)
		})
	}
}

func TestCardsReturnsSnapshot(t *testing.T) {
	b, ids := newTestBoard(t, 2)
	require.NoError(t, b.MoveCards(ids, LocationHand, "alice", 0, InsertBottom))

	snap, _ := b.Cards("alice", LocationHand, 0)
	snap[0] = "tampered"
	require.NoError(t, b.MoveCards([]string{"c1"}, LocationTrash, "alice", 0, InsertBottom))

	assert.Equal(t, []string{"tampered", "c1"}, snap)
	hand, _ := b.Cards("alice", LocationHand, 0)
	assert.Equal(t, []string{"c0"}, hand)
}

func TestShuffleIsSeeded(t *testing.T) {
	order := func() []string {
		b, ids := newTestBoard(t, 20)
		require.NoError(t, b.MoveCards(ids, LocationMainDeck, "alice", 0, InsertShuffle))
		deck, _ := b.Cards("alice", LocationMainDeck, 0)
		return deck
	}
	first := order()
	assert.Equal(t, first, order())
	assert.Len(t, first, 20)
}

func TestFreeColumnsAndOccupant(t *testing.T) {
	b, ids := newTestBoard(t, 1)
	require.NoError(t, b.MoveCards(ids, LocationServeZone, "alice", 1, InsertBottom))

	assert.Equal(t, []int{0, 2}, b.FreeColumns("alice", LocationServeZone))
	assert.Equal(t, "c0", b.Occupant("alice", LocationServeZone, 1).ID)
	assert.Nil(t, b.Occupant("bob", LocationServeZone, 1))
	assert.Equal(t, 1, b.Count("alice", LocationField))
}

func TestZoneConsistencyHoldsUnderRandomMoves(t *testing.T) {
	locations := []Location{LocationHand, LocationMainDeck, LocationRecipeDeck, LocationServeZone, LocationStandbyZone, LocationTrash}
	owners := []string{"alice", "bob"}

	rapid.Check(t, func(rt *rapid.T) {
		b := NewBoard(3, rapid.Uint64().Draw(rt, "seed"))
		n := rapid.IntRange(4, 12).Draw(rt, "cards")
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("c%d", i)
			if err := b.Add(New(ids[i], owners[i%2], Properties{Code: i})); err != nil {
				rt.Fatalf("add: %v", err)
			}
		}

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for s := 0; s < steps; s++ {
			subset := rapid.SliceOfNDistinct(rapid.SampledFrom(ids), 1, 4, rapid.ID[string]).Draw(rt, "ids")
			loc := rapid.SampledFrom(locations).Draw(rt, "loc")
			col := 0
			if loc.HasAny(LocationField) {
				col = rapid.IntRange(0, 2).Draw(rt, "col")
			}
			mode := InsertMode(rapid.IntRange(0, 2).Draw(rt, "mode"))
			owner := rapid.SampledFrom(owners).Draw(rt, "owner")
			if err := b.MoveCards(subset, loc, owner, col, mode); err != nil {
				rt.Fatalf("move: %v", err)
			}
			if err := b.CheckConsistency(); err != nil {
				rt.Fatalf("after step %d: %v", s, err)
			}
		}

		total := 0
		for _, key := range b.ZoneKeys() {
			ids, _ := b.Cards(key.Owner, key.Location, key.Column)
			total += len(ids)
		}
		if total > n {
			rt.Fatalf("zones hold %d ids for %d cards", total, n)
		}
	})
}
