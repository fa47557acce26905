// Package game is the authoritative rules engine of a cooking duel match. It
// owns the match state, validates and applies player actions, resolves card
// abilities and produces the packets each player receives.
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
	"github.com/cookduel/duel-server-go/internal/game/effects"
	"github.com/cookduel/duel-server-go/internal/game/rules"
)

var (
	// ErrMatchFull is returned when a third player tries to join.
	ErrMatchFull = errors.New("match is full")
	// ErrMatchStarted is returned when a new player joins a running match.
	ErrMatchStarted = errors.New("match already started")
)

// Rules are the tunable numbers of a match.
type Rules struct {
	BoardColumns       int
	StartingHP         int
	OpeningHand        int
	DrawPerTurn        int
	IngredientsPerTurn int
	AttacksPerTurn     int
	// TurnTimeout forces an end of turn; zero disables it.
	TurnTimeout time.Duration
	// MatchTime is each player's match clock; zero disables it.
	MatchTime time.Duration
}

// DefaultRules returns the standard rule set.
func DefaultRules() Rules {
	return Rules{
		BoardColumns:       3,
		StartingHP:         20,
		OpeningHand:        5,
		DrawPerTurn:        1,
		IngredientsPerTurn: 1,
		AttacksPerTurn:     1,
		TurnTimeout:        90 * time.Second,
	}
}

// Engine applies the rules to match states. It holds no per-match data and
// may be shared by every match of the process.
type Engine struct {
	logger   *zap.Logger
	registry *effects.Registry
	catalog  catalog.Source
	rules    Rules
}

// NewEngine creates an engine. The registry is shared and never mutated.
func NewEngine(logger *zap.Logger, registry *effects.Registry, source catalog.Source, r Rules) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger, registry: registry, catalog: source, rules: r}
}

// Rules returns the rule set the engine plays by.
func (e *Engine) Rules() Rules { return e.rules }

// NewState creates an empty match waiting for players. Shuffles and IDs are
// derived from matchID and seed.
func (e *Engine) NewState(matchID string, seed uint64) *State {
	return newState(matchID, seed, e.rules.BoardColumns)
}

// CanJoin reports whether playerID may join or rejoin the match.
func (e *Engine) CanJoin(st *State, playerID string) error {
	if playerID == "" {
		return fmt.Errorf("join: empty player id")
	}
	if _, ok := st.Players[playerID]; ok {
		return nil
	}
	if st.Status() != rules.StatusInit {
		return ErrMatchStarted
	}
	if len(st.Order) >= 2 {
		return ErrMatchFull
	}
	return nil
}

// Join adds a player, or reconnects a known one. The match starts when the
// second player joins.
func (e *Engine) Join(ctx context.Context, st *State, playerID string, now time.Time) error {
	if err := e.CanJoin(st, playerID); err != nil {
		return err
	}
	if p, ok := st.Players[playerID]; ok {
		p.Connected = true
		e.logger.Info("player reconnected", zap.String("match_id", st.MatchID), zap.String("player_id", playerID))
		e.sync(ctx, st, playerID)
		return nil
	}

	st.Players[playerID] = &PlayerData{
		ID:        playerID,
		HP:        e.rules.StartingHP,
		PrevHP:    e.rules.StartingHP,
		Connected: true,
		MatchTime: e.rules.MatchTime,
	}
	st.Order = append(st.Order, playerID)
	e.logger.Info("player joined",
		zap.String("match_id", st.MatchID),
		zap.String("player_id", playerID),
		zap.Int("players", len(st.Order)),
	)
	if len(st.Order) < 2 {
		return nil
	}
	if err := e.start(ctx, st, now); err != nil {
		delete(st.Players, playerID)
		st.Order = st.Order[:len(st.Order)-1]
		return fmt.Errorf("start match %s: %w", st.MatchID, err)
	}
	return nil
}

// Leave disconnects a player. Before the match starts the player is simply
// removed; afterwards the match ends on the next tick.
func (e *Engine) Leave(st *State, playerID string) {
	p, ok := st.Players[playerID]
	if !ok {
		return
	}
	if st.Status() == rules.StatusInit {
		delete(st.Players, playerID)
		st.Order = slices.DeleteFunc(st.Order, func(id string) bool { return id == playerID })
		return
	}
	p.Connected = false
	e.logger.Info("player left", zap.String("match_id", st.MatchID), zap.String("player_id", playerID))
}

// Tick charges the match clock, drains msgs in arrival order, runs the turn
// timer and checks for the end of the match. It returns the packets
// produced, in order.
func (e *Engine) Tick(ctx context.Context, st *State, msgs []Message, now time.Time) []Packet {
	st.Tick++
	if st.Clock.IsZero() {
		st.Clock = now
	}
	e.chargeClock(st, now)
	for _, msg := range msgs {
		e.apply(ctx, st, msg, now)
	}
	e.runTimers(ctx, st, now)
	e.evaluate(st)
	e.flush(ctx, st)
	st.Clock = now
	return st.Drain()
}

// start deals decks and hands and begins turn 1. Every catalog lookup happens
// before the board is touched.
func (e *Engine) start(ctx context.Context, st *State, now time.Time) error {
	type planned struct {
		owner string
		loc   cards.Location
		props cards.Properties
	}
	var plan []planned
	for _, id := range st.Order {
		deck, err := e.catalog.Deck(ctx, id)
		if err != nil {
			return fmt.Errorf("%w: deck of %s: %w", rules.ErrIntegrity, id, err)
		}
		for _, list := range []struct {
			loc   cards.Location
			codes []int
		}{{cards.LocationMainDeck, deck.Main}, {cards.LocationRecipeDeck, deck.Recipes}} {
			for _, code := range list.codes {
				props, err := e.catalog.ReadCardProperty(ctx, code)
				if err != nil {
					return fmt.Errorf("%w: card %d: %w", rules.ErrIntegrity, code, err)
				}
				plan = append(plan, planned{owner: id, loc: list.loc, props: props})
			}
		}
	}

	zones := make(map[cards.ZoneKey][]string)
	for _, p := range plan {
		c := cards.New(st.nextID(), p.owner, p.props)
		c.Abilities = e.registry.Abilities(p.props.Code)
		if err := st.Board.Add(c); err != nil {
			return fmt.Errorf("%w: %w", rules.ErrIntegrity, err)
		}
		key := cards.ZoneKey{Owner: p.owner, Location: p.loc}
		zones[key] = append(zones[key], c.ID)
	}
	for _, id := range st.Order {
		if err := e.move(st, zones[cards.ZoneKey{Owner: id, Location: cards.LocationMainDeck}],
			cards.LocationMainDeck, id, 0, cards.InsertShuffle); err != nil {
			return err
		}
		if err := e.move(st, zones[cards.ZoneKey{Owner: id, Location: cards.LocationRecipeDeck}],
			cards.LocationRecipeDeck, id, 0, cards.InsertBottom); err != nil {
			return err
		}
	}

	first := st.Order[0]
	if err := st.Turn.Start(first); err != nil {
		return err
	}
	if e.rules.TurnTimeout > 0 {
		st.Players[first].TurnDeadline = now.Add(e.rules.TurnTimeout)
	}
	st.Clock = now
	e.emit(st, rules.NewEvent(rules.EventMatchStarted, "", "", first))
	for _, id := range st.Order {
		if _, err := e.draw(st, id, e.rules.OpeningHand); err != nil {
			return err
		}
	}

	clear(st.dirty)
	for _, id := range st.Order {
		st.send(id, PacketUpdateState, ViewState(st, id))
	}
	st.broadcast(PacketChangeTurn, func(string) any { return turnData(st) })
	st.stale = true

	e.logger.Info("match started",
		zap.String("match_id", st.MatchID),
		zap.String("first_player", first),
		zap.Int("cards", len(plan)),
	)
	return nil
}

// sync sends one player the full state and what they can do.
func (e *Engine) sync(ctx context.Context, st *State, playerID string) {
	st.send(playerID, PacketUpdateState, ViewState(st, playerID))
	st.send(playerID, PacketUpdateAvailableActions, e.Available(ctx, st, playerID))
}

func turnData(st *State) TurnData {
	return TurnData{TurnPlayer: st.Turn.TurnPlayer(), TurnCount: st.Turn.TurnCount(), Phase: st.Turn.Phase()}
}
