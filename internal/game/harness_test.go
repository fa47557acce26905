package game

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cookduel/duel-server-go/internal/catalog"
	"github.com/cookduel/duel-server-go/internal/game/cards"
	"github.com/cookduel/duel-server-go/internal/game/cardscripts"
)

const (
	alice = "alice"
	bob   = "bob"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// duel is a started two-player match driven tick by tick.
type duel struct {
	t       *testing.T
	ctx     context.Context
	catalog *catalog.Memory
	engine  *Engine
	st      *State
	now     time.Time
	// last holds the packets of the latest tick.
	last []Packet
}

func repeat(code, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = code
	}
	return out
}

func testCatalog(t *testing.T) *catalog.Memory {
	t.Helper()
	m, err := catalog.LoadYAML("../../data/catalog.yaml")
	require.NoError(t, err)
	return m
}

func testEngine(t *testing.T, m *catalog.Memory, r Rules) *Engine {
	t.Helper()
	reg, err := cardscripts.Registry()
	require.NoError(t, err)
	return NewEngine(zaptest.NewLogger(t), reg, m, r)
}

// newDuel starts a match between alice and bob. Decks not given fall back to
// the catalog's default deck.
func newDuel(t *testing.T, r Rules, decks map[string]catalog.Deck) *duel {
	t.Helper()
	m := testCatalog(t)
	for id, d := range decks {
		m.SetDeck(id, d)
	}
	return startDuel(t, m, r)
}

func startDuel(t *testing.T, m *catalog.Memory, r Rules) *duel {
	t.Helper()
	d := &duel{t: t, ctx: context.Background(), catalog: m, now: epoch}
	d.engine = testEngine(t, m, r)
	d.st = d.engine.NewState("match-1", 42)
	require.NoError(t, d.engine.Join(d.ctx, d.st, alice, d.now))
	require.NoError(t, d.engine.Join(d.ctx, d.st, bob, d.now))
	d.tick()
	return d
}

func (d *duel) tick(msgs ...Message) []Packet {
	d.last = d.engine.Tick(d.ctx, d.st, msgs, d.now)
	return d.last
}

// act sends one action and returns the packets of the tick.
func (d *duel) act(sender string, op OpCode, payload any) []Packet {
	d.t.Helper()
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		require.NoError(d.t, err)
	}
	return d.tick(Message{SenderID: sender, OpCode: op, Payload: raw, ReceivedAt: d.now})
}

// mustAct fails the test when the action is refused.
func (d *duel) mustAct(sender string, op OpCode, payload any) []Packet {
	d.t.Helper()
	packets := d.act(sender, op, payload)
	if reason := errorReason(packets, sender); reason != "" {
		d.t.Fatalf("%s %s refused: %s", sender, op, reason)
	}
	return packets
}

func (d *duel) endTurn(sender string) { d.mustAct(sender, OpEndTurn, nil) }

func (d *duel) cardsOf(owner string, loc cards.Location, code int) []*cards.Card {
	return d.st.Board.FindCards(func(c *cards.Card) bool {
		return c.Owner == owner && c.Location.HasAny(loc) && (code == 0 || c.Code() == code)
	})
}

// inHand returns one card of code from owner's hand.
func (d *duel) inHand(owner string, code int) *cards.Card {
	d.t.Helper()
	found := d.cardsOf(owner, cards.LocationHand, code)
	require.NotEmpty(d.t, found, "%s holds no %d", owner, code)
	return found[0]
}

func (d *duel) recipeCard(owner string, code int) *cards.Card {
	d.t.Helper()
	found := d.cardsOf(owner, cards.LocationRecipeDeck, code)
	require.NotEmpty(d.t, found, "%s has no recipe %d", owner, code)
	return found[0]
}

func (d *duel) requireConsistent() {
	d.t.Helper()
	require.NoError(d.t, d.st.Board.CheckConsistency())
}

// errorReason returns the reason of the first error packet sent to player.
func errorReason(packets []Packet, player string) string {
	for _, p := range packets {
		if p.Type == PacketError && p.Recipient == player {
			return p.Data.(ErrorData).Reason
		}
	}
	return ""
}

func packetsOf(packets []Packet, t PacketType, player string) []Packet {
	var out []Packet
	for _, p := range packets {
		if p.Type == t && p.Recipient == player {
			out = append(out, p)
		}
	}
	return out
}
