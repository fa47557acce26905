package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cookduel/duel-server-go/internal/config"
	"github.com/cookduel/duel-server-go/internal/game"
	"github.com/cookduel/duel-server-go/internal/game/rules"
	"github.com/cookduel/duel-server-go/internal/match"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Reasons sent by the transport itself, next to the engine's rule reasons.
const (
	ReasonQueueFull  = "QUEUE_FULL"
	ReasonJoinFailed = "JOIN_FAILED"
)

// Matches is the part of match.Manager the servers use.
type Matches interface {
	Create(ctx context.Context) (*match.Runner, error)
	Get(matchID string) (*match.Runner, error)
	List() []string
}

// Inbound is one action frame sent by a player.
type Inbound struct {
	OpCode  game.OpCode     `json:"op_code"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WebSocketServer lets players join matches, send actions and receive
// packets over websockets.
type WebSocketServer struct {
	logger   *zap.Logger
	cfg      config.WebSocketConfig
	hub      *Hub
	matches  Matches
	upgrader websocket.Upgrader
}

// NewWebSocketServer creates the server. Packets reach players through hub,
// which the match runners must use as their dispatcher.
func NewWebSocketServer(logger *zap.Logger, cfg config.WebSocketConfig, hub *Hub, matches Matches) *WebSocketServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = 256
	}
	return &WebSocketServer{
		logger:  logger,
		cfg:     cfg,
		hub:     hub,
		matches: matches,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handler routes /ws, /matches and /healthz.
func (s *WebSocketServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.serveWS)
	mux.HandleFunc("POST /matches", s.createMatch)
	mux.HandleFunc("GET /matches", s.listMatches)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Run serves on the configured address until ctx is done.
func (s *WebSocketServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting WebSocket server", zap.String("address", s.cfg.Address))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.hub.Close()
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *WebSocketServer) createMatch(w http.ResponseWriter, r *http.Request) {
	runner, err := s.matches.Create(r.Context())
	if err != nil {
		s.logger.Error("failed to create match", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create match"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"match_id": runner.ID()})
}

func (s *WebSocketServer) listMatches(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"matches": s.matches.List()})
}

func (s *WebSocketServer) serveWS(w http.ResponseWriter, r *http.Request) {
	matchID := r.URL.Query().Get("match")
	playerID := r.URL.Query().Get("player")
	if matchID == "" || playerID == "" {
		http.Error(w, "match and player are required", http.StatusBadRequest)
		return
	}
	runner, err := s.matches.Get(matchID)
	if err != nil {
		http.Error(w, "match not found", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{
		conn:     conn,
		send:     make(chan []byte, s.cfg.SendQueue),
		matchID:  matchID,
		playerID: playerID,
	}
	logger := s.logger.With(zap.String("match_id", matchID), zap.String("player_id", playerID))

	// Registered before joining so the packets of the join tick reach it.
	s.hub.register(c)
	go s.writePump(c)

	if err := runner.Join(r.Context(), playerID); err != nil {
		logger.Info("join refused", zap.Error(err))
		s.sendError(c, ReasonJoinFailed)
		s.hub.unregister(c)
		return
	}
	logger.Info("player connected")
	s.readPump(c, runner, logger)
}

// sendError queues an error packet on c directly, outside any match tick.
func (s *WebSocketServer) sendError(c *client, reason string) {
	data, err := game.Packet{Type: game.PacketError, Data: game.ErrorData{Reason: reason}}.Encode()
	if err != nil {
		return
	}
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	if s.hub.matches[c.matchID][c.playerID] != c {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (s *WebSocketServer) readPump(c *client, runner *match.Runner, logger *zap.Logger) {
	defer func() {
		if s.hub.unregister(c) {
			if err := runner.Leave(context.Background(), c.playerID); err != nil && !errors.Is(err, match.ErrClosed) {
				logger.Warn("failed to leave match", zap.Error(err))
			}
			logger.Info("player disconnected")
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}

		var in Inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			s.sendError(c, rules.ReasonMalformedPayload)
			continue
		}
		msg := game.Message{SenderID: c.playerID, OpCode: in.OpCode, Payload: in.Payload}
		switch err := runner.Submit(msg); {
		case err == nil:
		case errors.Is(err, match.ErrQueueFull):
			s.sendError(c, ReasonQueueFull)
		default:
			// The match is over; the end packet has already been sent.
			return
		}
	}
}

func (s *WebSocketServer) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
