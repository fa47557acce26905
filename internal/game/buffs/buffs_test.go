package buffs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookduel/duel-server-go/internal/game/cards"
)

func placed(t *testing.T, b *cards.Board, id string, props cards.Properties, loc cards.Location, col int) *cards.Card {
	t.Helper()
	c := cards.New(id, "alice", props)
	require.NoError(t, b.Add(c))
	require.NoError(t, b.MoveCards([]string{id}, loc, "alice", col, cards.InsertBottom))
	return c
}

func TestFoldInGrantOrderAndRecomputeFromBase(t *testing.T) {
	b := cards.NewBoard(3, 1)
	c := placed(t, b, "dish", cards.Properties{Power: 2}, cards.LocationServeZone, 0)

	first := Apply(b, c, cards.Buff{ID: "b1", Type: cards.BuffPower, Op: cards.OpAdd, Amount: 3})
	Apply(b, c, cards.Buff{ID: "b2", Type: cards.BuffPower, Op: cards.OpAdd, Amount: 3})
	assert.Equal(t, 8, c.Props.Power)

	require.True(t, Remove(b, c, first.ID))
	assert.Equal(t, 5, c.Props.Power)
	assert.Equal(t, 2, c.Base.Power)
}

func TestOrderMattersForMixedOps(t *testing.T) {
	b := cards.NewBoard(3, 1)
	add := cards.Buff{ID: "add", Type: cards.BuffPower, Op: cards.OpAdd, Amount: 1}
	mul := cards.Buff{ID: "mul", Type: cards.BuffPower, Op: cards.OpMultiply, Amount: 2}

	x := placed(t, b, "x", cards.Properties{Power: 2}, cards.LocationServeZone, 0)
	Apply(b, x, add)
	Apply(b, x, mul)
	assert.Equal(t, 6, x.Props.Power)

	y := placed(t, b, "y", cards.Properties{Power: 2}, cards.LocationServeZone, 1)
	Apply(b, y, mul)
	Apply(b, y, add)
	assert.Equal(t, 5, y.Props.Power)
}

func TestCustomAndFunctionAmounts(t *testing.T) {
	b := cards.NewBoard(3, 1)
	c := placed(t, b, "c", cards.Properties{Power: 3, Shield: 1}, cards.LocationServeZone, 0)
	placed(t, b, "other", cards.Properties{}, cards.LocationServeZone, 1)

	Apply(b, c, cards.Buff{
		ID: "count", Type: cards.BuffShield, Op: cards.OpAdd,
		AmountFn: func(board *cards.Board, _ *cards.Card) int { return board.Count("alice", cards.LocationServeZone) },
	})
	assert.Equal(t, 3, c.Props.Shield)

	Apply(b, c, cards.Buff{
		ID: "cap", Type: cards.BuffPower, Op: cards.OpCustom, Amount: 1,
		Transform: func(current, amount int) int { return min(current, amount) },
	})
	assert.Equal(t, 1, c.Props.Power)
}

func TestValuesNeverDropBelowZero(t *testing.T) {
	b := cards.NewBoard(3, 1)
	c := placed(t, b, "c", cards.Properties{Health: 2}, cards.LocationServeZone, 0)
	Apply(b, c, cards.Buff{ID: "x", Type: cards.BuffHealth, Op: cards.OpAdd, Amount: -5})
	assert.Equal(t, 0, c.Props.Health)
}

func TestApplyAgreesWithRecomputeAfterClamp(t *testing.T) {
	b := cards.NewBoard(3, 1)
	c := placed(t, b, "c", cards.Properties{Power: 2}, cards.LocationServeZone, 0)

	Apply(b, c, cards.Buff{ID: "sear", Type: cards.BuffPower, Op: cards.OpAdd, Amount: -5})
	assert.Equal(t, 0, c.Props.Power)
	Apply(b, c, cards.Buff{ID: "glaze", Type: cards.BuffPower, Op: cards.OpAdd, Amount: 3})
	applied := c.Props.Power

	Recompute(b, c)
	assert.Equal(t, c.Props.Power, applied)
	assert.Equal(t, 0, applied, "2-5+3 folds from base before clamping")
}

func TestSweepEndTurn(t *testing.T) {
	b := cards.NewBoard(3, 1)
	c := placed(t, b, "c", cards.Properties{Power: 1}, cards.LocationServeZone, 0)
	Apply(b, c, cards.Buff{ID: "temp", Type: cards.BuffPower, Op: cards.OpAdd, Amount: 2, Resets: cards.ResetEndTurn})
	Apply(b, c, cards.Buff{ID: "perm", Type: cards.BuffPower, Op: cards.OpAdd, Amount: 1})

	changed := Sweep(b, cards.ResetZoneChange)
	assert.Empty(t, changed)
	assert.Equal(t, 4, c.Props.Power)

	changed = Sweep(b, cards.ResetEndTurn)
	require.Len(t, changed, 1)
	assert.Equal(t, 2, c.Props.Power)
	require.Len(t, c.Buffs, 1)
	assert.Equal(t, "perm", c.Buffs[0].ID)
}

func TestSweepSourceRemovedResolvesByID(t *testing.T) {
	b := cards.NewBoard(3, 1)
	src := placed(t, b, "src", cards.Properties{}, cards.LocationServeZone, 0)
	target := placed(t, b, "target", cards.Properties{Power: 1}, cards.LocationServeZone, 1)
	Apply(b, target, cards.Buff{ID: "aura", SourceID: src.ID, Type: cards.BuffPower, Op: cards.OpAdd, Amount: 2, Resets: cards.ResetSourceRemoved})
	assert.Equal(t, 3, target.Props.Power)

	require.NoError(t, b.MoveCards([]string{src.ID}, cards.LocationTrash, "alice", 0, cards.InsertBottom))
	Sweep(b, cards.ResetZoneChange)

	assert.Equal(t, 1, target.Props.Power)
	assert.Empty(t, target.Buffs)
}

func TestSweepTargetRemoved(t *testing.T) {
	b := cards.NewBoard(3, 1)
	c := placed(t, b, "c", cards.Properties{Power: 1}, cards.LocationStandbyZone, 0)
	Apply(b, c, cards.Buff{ID: "x", Type: cards.BuffPower, Op: cards.OpAdd, Amount: 2, Resets: cards.ResetTargetRemoved})

	require.NoError(t, b.MoveCards([]string{c.ID}, cards.LocationServeZone, "alice", 0, cards.InsertBottom))
	Sweep(b, cards.ResetZoneChange)
	assert.Equal(t, 3, c.Props.Power, "moving between field rows keeps the buff")

	require.NoError(t, b.MoveCards([]string{c.ID}, cards.LocationHand, "alice", 0, cards.InsertBottom))
	Sweep(b, cards.ResetZoneChange)
	assert.Equal(t, 1, c.Props.Power)
}
