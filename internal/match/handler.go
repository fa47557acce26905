// Package match hosts running matches. Each match is driven by one Runner
// goroutine that owns the match state and calls its Handler once per tick.
package match

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cookduel/duel-server-go/internal/game"
)

// Handler is the lifecycle of one match as seen by its host. All calls come
// from the runner goroutine.
type Handler interface {
	// Init creates the state of a new match.
	Init(ctx context.Context, matchID string, seed uint64) (*game.State, error)
	// JoinAttempt reports whether playerID may join, without changing st.
	JoinAttempt(ctx context.Context, st *game.State, playerID string) error
	Join(ctx context.Context, st *game.State, playerID string, now time.Time) error
	Leave(ctx context.Context, st *game.State, playerID string)
	// Loop runs one tick. It returns nil as the next state once the match
	// is over; the returned packets are still delivered.
	Loop(ctx context.Context, st *game.State, msgs []game.Message, now time.Time) (*game.State, []game.Packet)
	Terminate(ctx context.Context, st *game.State, reason string)
}

// DuelHandler plays matches with a game.Engine.
type DuelHandler struct {
	engine *game.Engine
	logger *zap.Logger
}

// NewDuelHandler creates a handler. The engine may be shared by every match.
func NewDuelHandler(engine *game.Engine, logger *zap.Logger) *DuelHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DuelHandler{engine: engine, logger: logger}
}

func (h *DuelHandler) Init(_ context.Context, matchID string, seed uint64) (*game.State, error) {
	return h.engine.NewState(matchID, seed), nil
}

func (h *DuelHandler) JoinAttempt(_ context.Context, st *game.State, playerID string) error {
	return h.engine.CanJoin(st, playerID)
}

func (h *DuelHandler) Join(ctx context.Context, st *game.State, playerID string, now time.Time) error {
	return h.engine.Join(ctx, st, playerID, now)
}

func (h *DuelHandler) Leave(_ context.Context, st *game.State, playerID string) {
	h.engine.Leave(st, playerID)
}

func (h *DuelHandler) Loop(ctx context.Context, st *game.State, msgs []game.Message, now time.Time) (*game.State, []game.Packet) {
	packets := h.engine.Tick(ctx, st, msgs, now)
	if st.EndResult != nil {
		return nil, packets
	}
	return st, packets
}

func (h *DuelHandler) Terminate(_ context.Context, st *game.State, reason string) {
	fields := []zap.Field{
		zap.String("match_id", st.MatchID),
		zap.String("reason", reason),
		zap.Int64("ticks", st.Tick),
	}
	if st.EndResult != nil {
		fields = append(fields,
			zap.String("end_reason", string(st.EndResult.Reason)),
			zap.Strings("winners", st.EndResult.Winners),
		)
	}
	h.logger.Info("match terminated", fields...)
}
