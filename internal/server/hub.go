package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cookduel/duel-server-go/internal/game"
)

// ErrSlowClient is reported when a connection's send queue overflows.
var ErrSlowClient = errors.New("client send queue is full")

type client struct {
	conn     *websocket.Conn
	send     chan []byte
	matchID  string
	playerID string
	once     sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub tracks the websocket connection of every player of every match and
// delivers packets to them. It implements game.Dispatcher.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	matches map[string]map[string]*client
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger, matches: make(map[string]map[string]*client)}
}

// register makes c the connection of its player, replacing any older one.
func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	players, ok := h.matches[c.matchID]
	if !ok {
		players = make(map[string]*client)
		h.matches[c.matchID] = players
	}
	if old, ok := players[c.playerID]; ok {
		old.close()
		h.logger.Info("connection replaced",
			zap.String("match_id", c.matchID),
			zap.String("player_id", c.playerID),
		)
	}
	players[c.playerID] = c
}

// unregister removes c. It reports false if c had already been replaced.
func (h *Hub) unregister(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	players := h.matches[c.matchID]
	if players[c.playerID] != c {
		return false
	}
	delete(players, c.playerID)
	if len(players) == 0 {
		delete(h.matches, c.matchID)
	}
	c.close()
	return true
}

// Connected returns the number of open connections of a match.
func (h *Hub) Connected(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.matches[matchID])
}

// Dispatch sends each packet to its recipient. Packets for players without a
// connection are dropped; the engine resyncs them on reconnect. A client
// whose queue is full is disconnected.
func (h *Hub) Dispatch(_ context.Context, matchID string, packets []game.Packet) error {
	var errs []error
	var slow []*client

	h.mu.RLock()
	players := h.matches[matchID]
	for _, p := range packets {
		c, ok := players[p.Recipient]
		if !ok {
			continue
		}
		data, err := p.Encode()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		if h.unregister(c) {
			h.logger.Warn("dropping slow client",
				zap.String("match_id", c.matchID),
				zap.String("player_id", c.playerID),
			)
			errs = append(errs, fmt.Errorf("%s: %w", c.playerID, ErrSlowClient))
		}
	}
	return errors.Join(errs...)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, players := range h.matches {
		for _, c := range players {
			c.close()
		}
		delete(h.matches, id)
	}
}
