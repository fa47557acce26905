package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookduel/duel-server-go/internal/catalog"
	"github.com/cookduel/duel-server-go/internal/game/rules"
)

func requireEnded(t *testing.T, d *duel, reason EndReason, winners ...string) {
	t.Helper()
	require.Equal(t, rules.StatusEnded, d.st.Status())
	require.NotNil(t, d.st.EndResult)
	assert.Equal(t, reason, d.st.EndResult.Reason)
	if winners == nil {
		winners = []string{}
	}
	assert.Equal(t, winners, d.st.EndResult.Winners)
}

func TestDeckOut(t *testing.T) {
	d := newDuel(t, DefaultRules(), map[string]catalog.Deck{
		alice: {Main: repeat(101, 5), Recipes: []int{201}},
	})
	d.endTurn(alice)
	assert.Equal(t, rules.StatusRunning, d.st.Status())

	d.endTurn(bob)
	assert.True(t, d.st.Players[alice].DeckedOut)
	requireEnded(t, d, EndDeckedOut, bob)
}

func TestSurrender(t *testing.T) {
	d := newDuel(t, DefaultRules(), nil)
	d.mustAct(bob, OpSurrender, nil)
	requireEnded(t, d, EndSurrender, alice)

	packets := d.act(bob, OpSurrender, nil)
	assert.Equal(t, rules.ReasonMatchNotRunning, errorReason(packets, bob))
}

func TestDisconnect(t *testing.T) {
	d := newDuel(t, DefaultRules(), nil)
	d.engine.Leave(d.st, bob)
	d.tick()
	requireEnded(t, d, EndDisconnected, alice)
}

func TestBothDisconnectIsADraw(t *testing.T) {
	d := newDuel(t, DefaultRules(), nil)
	d.engine.Leave(d.st, alice)
	d.engine.Leave(d.st, bob)
	packets := d.tick()
	requireEnded(t, d, EndDisconnected)
	assert.Len(t, packetsOf(packets, PacketEndMatch, alice), 1)
}

func TestTurnTimerForcesEndTurn(t *testing.T) {
	r := DefaultRules()
	r.TurnTimeout = 10 * time.Second
	d := newDuel(t, r, nil)
	assert.Equal(t, epoch.Add(10*time.Second), d.st.Players[alice].TurnDeadline)

	d.now = epoch.Add(9 * time.Second)
	d.tick()
	assert.Equal(t, alice, d.st.Turn.TurnPlayer())

	d.now = epoch.Add(10 * time.Second)
	packets := d.tick()
	assert.Equal(t, bob, d.st.Turn.TurnPlayer())
	assert.Equal(t, 2, d.st.Turn.TurnCount())
	assert.Equal(t, d.now.Add(10*time.Second), d.st.Players[bob].TurnDeadline)
	assert.Len(t, packetsOf(packets, PacketChangeTurn, alice), 1)
}

func TestTurnTimerWaitsForChoice(t *testing.T) {
	r := DefaultRules()
	r.TurnTimeout = 10 * time.Second
	d := newDuel(t, r, map[string]catalog.Deck{
		alice: {Main: repeat(301, 8), Recipes: []int{201}},
	})
	d.mustAct(alice, OpActivate, ActivateAction{CardID: d.inHand(alice, 301).ID, Effect: 0})
	require.NotNil(t, d.st.Pause)

	d.now = epoch.Add(time.Minute)
	d.tick()
	assert.Equal(t, alice, d.st.Turn.TurnPlayer(), "a pending choice holds the turn")

	d.mustAct(alice, OpRespondChoice, RespondChoiceAction{RequestID: d.st.Pause.Request.ID, Selection: []string{"rest"}})
	assert.Equal(t, bob, d.st.Turn.TurnPlayer(), "the overdue turn ends once the choice resolves")
}

func TestMatchClockTimeout(t *testing.T) {
	r := DefaultRules()
	r.TurnTimeout = 0
	r.MatchTime = 5 * time.Second
	d := newDuel(t, r, nil)

	d.now = epoch.Add(3 * time.Second)
	d.endTurn(alice)
	assert.Equal(t, 2*time.Second, d.st.Players[alice].MatchTime)
	assert.Equal(t, 5*time.Second, d.st.Players[bob].MatchTime, "bob's clock starts with his turn")

	d.now = epoch.Add(10 * time.Second)
	d.tick()
	assert.True(t, d.st.Players[bob].TimedOut)
	requireEnded(t, d, EndTimeout, alice)
}
