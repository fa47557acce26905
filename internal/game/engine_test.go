package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookduel/duel-server-go/internal/catalog"
	"github.com/cookduel/duel-server-go/internal/game/cards"
	"github.com/cookduel/duel-server-go/internal/game/rules"
)

func TestTurnStateMachine(t *testing.T) {
	m := testCatalog(t)
	e := testEngine(t, m, DefaultRules())
	st := e.NewState("match-1", 7)
	ctx := t.Context()

	assert.Equal(t, rules.StatusInit, st.Status())
	assert.Equal(t, 0, st.Turn.TurnCount())

	require.NoError(t, e.Join(ctx, st, alice, epoch))
	assert.Equal(t, rules.StatusInit, st.Status(), "one player is not enough")

	require.NoError(t, e.Join(ctx, st, bob, epoch))
	assert.Equal(t, rules.StatusRunning, st.Status())
	assert.Equal(t, 1, st.Turn.TurnCount())
	assert.Equal(t, alice, st.Turn.TurnPlayer())
	assert.Equal(t, rules.PhaseSetup, st.Turn.Phase())

	for _, id := range []string{alice, bob} {
		assert.Equal(t, 5, st.Board.Count(id, cards.LocationHand))
		assert.Equal(t, 15, st.Board.Count(id, cards.LocationMainDeck))
		assert.Equal(t, 4, st.Board.Count(id, cards.LocationRecipeDeck))
	}

	e.Tick(ctx, st, []Message{{SenderID: alice, OpCode: OpEndTurn}}, epoch)
	assert.Equal(t, 2, st.Turn.TurnCount())
	assert.Equal(t, bob, st.Turn.TurnPlayer())
	assert.Equal(t, 6, st.Board.Count(bob, cards.LocationHand), "turn player draws")
	assert.Equal(t, 5, st.Board.Count(alice, cards.LocationHand))
	require.NoError(t, st.Board.CheckConsistency())
}

func TestJoinRules(t *testing.T) {
	m := testCatalog(t)
	e := testEngine(t, m, DefaultRules())
	st := e.NewState("match-1", 7)
	ctx := t.Context()

	assert.Error(t, e.Join(ctx, st, "", epoch))

	require.NoError(t, e.Join(ctx, st, alice, epoch))
	e.Leave(st, alice)
	assert.Empty(t, st.Order, "leaving before the start removes the player")

	require.NoError(t, e.Join(ctx, st, alice, epoch))
	require.NoError(t, e.Join(ctx, st, bob, epoch))
	assert.ErrorIs(t, e.Join(ctx, st, "carol", epoch), ErrMatchStarted)
	assert.Equal(t, []string{alice, bob}, st.Order)
}

func TestJoinRollsBackWhenDeckIsMissing(t *testing.T) {
	m := testCatalog(t)
	m.SetDeck(bob, catalog.Deck{Main: []int{999}})
	e := testEngine(t, m, DefaultRules())
	st := e.NewState("match-1", 7)
	ctx := t.Context()

	require.NoError(t, e.Join(ctx, st, alice, epoch))
	err := e.Join(ctx, st, bob, epoch)
	require.ErrorIs(t, err, rules.ErrIntegrity)
	assert.Equal(t, rules.StatusInit, st.Status())
	assert.Equal(t, []string{alice}, st.Order)
	assert.Empty(t, st.Board.All(), "nothing is dealt before every lookup succeeded")
}

func TestReconnectResyncs(t *testing.T) {
	d := newDuel(t, DefaultRules(), nil)

	d.engine.Leave(d.st, bob)
	assert.False(t, d.st.Players[bob].Connected)

	require.NoError(t, d.engine.Join(d.ctx, d.st, bob, d.now))
	assert.True(t, d.st.Players[bob].Connected)
	packets := d.tick()
	assert.Len(t, packetsOf(packets, PacketUpdateState, bob), 1)
	assert.Equal(t, rules.StatusRunning, d.st.Status(), "reconnecting within the tick keeps the match alive")
}

func TestStartSendsRedactedState(t *testing.T) {
	m := testCatalog(t)
	e := testEngine(t, m, DefaultRules())
	st := e.NewState("match-1", 7)
	ctx := t.Context()
	require.NoError(t, e.Join(ctx, st, alice, epoch))
	require.NoError(t, e.Join(ctx, st, bob, epoch))
	packets := e.Tick(ctx, st, nil, epoch)

	states := packetsOf(packets, PacketUpdateState, bob)
	require.Len(t, states, 1)
	view := states[0].Data.(StateView)
	assert.Equal(t, alice, view.TurnPlayer)
	require.Len(t, view.Players, 2)

	for _, c := range view.Cards {
		card, ok := st.Board.Card(c.ID)
		require.True(t, ok)
		switch {
		case card.Location == cards.LocationMainDeck:
			assert.Nil(t, c.Props, "main deck is hidden from everyone")
		case card.Owner == alice:
			assert.Nil(t, c.Props, "alice's private cards are hidden from bob")
			assert.Empty(t, c.Owner)
		default:
			assert.NotNil(t, c.Props, "bob sees his own hand and recipes")
		}
	}

	actions := packetsOf(packets, PacketUpdateAvailableActions, alice)
	require.NotEmpty(t, actions)
	avail := actions[len(actions)-1].Data.(AvailableActions)
	assert.True(t, avail.CanStrike)
	assert.True(t, avail.CanEndTurn)
	assert.NotEmpty(t, avail.Settable)

	bobActions := packetsOf(packets, PacketUpdateAvailableActions, bob)
	require.NotEmpty(t, bobActions)
	assert.False(t, bobActions[len(bobActions)-1].Data.(AvailableActions).CanEndTurn)
}
