package match

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cookduel/duel-server-go/internal/game"
)

var (
	// ErrQueueFull is returned when a match cannot take more input before
	// its next tick.
	ErrQueueFull = errors.New("match inbox is full")
	// ErrClosed is returned once a match has terminated.
	ErrClosed = errors.New("match is closed")
)

// Options configure a Runner.
type Options struct {
	MatchID      string
	Seed         uint64
	TickInterval time.Duration
	// QueueSize bounds the messages waiting for the next tick.
	QueueSize int
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Joins and leaves carry an arrival sequence so that a leave queued before a
// rejoin of the same player can be told apart from one queued after it.
type joinRequest struct {
	playerID string
	seq      uint64
	reply    chan error
}

type leaveRequest struct {
	playerID string
	seq      uint64
}

// Runner drives one match on a single goroutine. Messages, joins and leaves
// are buffered and applied at the start of the next tick, in that order:
// joins, leaves, then messages in arrival order. Replays apply a frame's
// joins and leaves in the same order, so a leave that arrived before a
// successful rejoin in the same tick is dropped instead of recorded.
type Runner struct {
	id         string
	seed       uint64
	handler    Handler
	dispatcher game.Dispatcher
	recorder   *game.ReplayRecorder
	logger     *zap.Logger
	interval   time.Duration
	clock      func() time.Time

	inbox   chan game.Message
	joins   chan joinRequest
	leaves  chan leaveRequest
	queries chan func(*game.State)
	seq     atomic.Uint64

	state     *game.State
	started   atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
	onStopped func(matchID string)
}

// NewRunner creates a runner. dispatcher and recorder may be nil.
func NewRunner(logger *zap.Logger, handler Handler, dispatcher game.Dispatcher, recorder *game.ReplayRecorder, opts Options) (*Runner, error) {
	if handler == nil {
		return nil, errors.New("runner: handler is required")
	}
	if opts.MatchID == "" {
		return nil, errors.New("runner: match id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 100 * time.Millisecond
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Runner{
		id:         opts.MatchID,
		seed:       opts.Seed,
		handler:    handler,
		dispatcher: dispatcher,
		recorder:   recorder,
		logger:     logger.With(zap.String("match_id", opts.MatchID)),
		interval:   opts.TickInterval,
		clock:      opts.Clock,
		inbox:      make(chan game.Message, opts.QueueSize),
		joins:      make(chan joinRequest, 4),
		leaves:     make(chan leaveRequest, 4),
		queries:    make(chan func(*game.State)),
		done:       make(chan struct{}),
	}, nil
}

// ID returns the match ID.
func (r *Runner) ID() string { return r.id }

// Done is closed once the runner has terminated.
func (r *Runner) Done() <-chan struct{} { return r.done }

// init creates the match state. Tests call it instead of Start to step the
// runner by hand.
func (r *Runner) init(ctx context.Context) error {
	st, err := r.handler.Init(ctx, r.id, r.seed)
	if err != nil {
		return fmt.Errorf("init match %s: %w", r.id, err)
	}
	r.state = st
	if r.recorder != nil {
		r.recorder.Start(r.id, r.seed)
	}
	return nil
}

// Start creates the match and launches its loop. It must be called once.
func (r *Runner) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return errors.New("runner: start called multiple times")
	}
	if err := r.init(ctx); err != nil {
		close(r.done)
		return err
	}
	ctx, r.cancel = context.WithCancel(ctx)
	go r.run(ctx)
	r.logger.Info("match started", zap.Duration("tick_interval", r.interval))
	return nil
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.done)
	defer r.cancel()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.terminate(context.WithoutCancel(ctx), "shutdown")
			return
		case q := <-r.queries:
			q(r.state)
		case <-ticker.C:
			if !r.step(ctx, r.clock()) {
				r.terminate(ctx, "ended")
				return
			}
		}
	}
}

// step runs one tick at now. It returns false once the match is over.
func (r *Runner) step(ctx context.Context, now time.Time) bool {
	frame := game.ReplayFrame{At: now}

	var joins []joinRequest
JOINS:
	for {
		select {
		case j := <-r.joins:
			joins = append(joins, j)
		default:
			break JOINS
		}
	}
	rejoined := make(map[string]uint64)
	for _, j := range joins {
		err := r.handler.JoinAttempt(ctx, r.state, j.playerID)
		if err == nil {
			err = r.handler.Join(ctx, r.state, j.playerID, now)
		}
		if err == nil {
			frame.Joined = append(frame.Joined, j.playerID)
			rejoined[j.playerID] = max(rejoined[j.playerID], j.seq)
		} else {
			r.logger.Debug("join refused", zap.String("player_id", j.playerID), zap.Error(err))
		}
		j.reply <- err
	}

LEAVES:
	for {
		select {
		case l := <-r.leaves:
			if l.seq < rejoined[l.playerID] {
				r.logger.Debug("leave superseded by rejoin", zap.String("player_id", l.playerID))
				continue
			}
			r.handler.Leave(ctx, r.state, l.playerID)
			frame.Left = append(frame.Left, l.playerID)
		default:
			break LEAVES
		}
	}

	// Only what is queued now belongs to this tick.
	for n := len(r.inbox); n > 0; n-- {
		frame.Messages = append(frame.Messages, <-r.inbox)
	}

	next, packets := r.handler.Loop(ctx, r.state, frame.Messages, now)

	frame.Tick = r.state.Tick
	frame.Checksum = game.Checksum(r.state)
	if r.recorder != nil {
		r.recorder.Record(r.id, frame)
	}

	if len(packets) > 0 && r.dispatcher != nil {
		if err := r.dispatcher.Dispatch(ctx, r.id, packets); err != nil {
			r.logger.Warn("failed to dispatch packets", zap.Int("packets", len(packets)), zap.Error(err))
		}
	}

	if next == nil {
		return false
	}
	r.state = next
	return true
}

func (r *Runner) terminate(ctx context.Context, reason string) {
	r.handler.Terminate(ctx, r.state, reason)
	if r.recorder != nil {
		if err := r.recorder.Finish(r.id); err != nil {
			r.logger.Error("failed to save replay", zap.Error(err))
		}
	}
	// Joins still waiting would otherwise block their callers until ctx ends.
	for {
		select {
		case j := <-r.joins:
			j.reply <- ErrClosed
		default:
			if r.onStopped != nil {
				r.onStopped(r.id)
			}
			return
		}
	}
}

// Submit queues a player message for the next tick.
func (r *Runner) Submit(msg game.Message) error {
	select {
	case <-r.done:
		return ErrClosed
	default:
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = r.clock()
	}
	select {
	case r.inbox <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Join adds playerID at the next tick and waits for the outcome.
func (r *Runner) Join(ctx context.Context, playerID string) error {
	req := joinRequest{playerID: playerID, seq: r.seq.Add(1), reply: make(chan error, 1)}
	select {
	case r.joins <- req:
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-r.done:
		// terminate answers every queued join before done closes
		select {
		case err := <-req.reply:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Leave disconnects playerID at the next tick.
func (r *Runner) Leave(ctx context.Context, playerID string) error {
	select {
	case r.leaves <- leaveRequest{playerID: playerID, seq: r.seq.Add(1)}:
		return nil
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// query runs fn on the runner goroutine between ticks.
func (r *Runner) query(ctx context.Context, fn func(*game.State)) error {
	finished := make(chan struct{})
	wrapped := func(st *game.State) {
		defer close(finished)
		fn(st)
	}
	select {
	case r.queries <- wrapped:
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Snapshot returns a full copy of the match state.
func (r *Runner) Snapshot(ctx context.Context) (*game.Snapshot, error) {
	var snap *game.Snapshot
	err := r.query(ctx, func(st *game.State) { snap = game.TakeSnapshot(st) })
	return snap, err
}

// CheckConsistency verifies the zone bookkeeping of the board.
func (r *Runner) CheckConsistency(ctx context.Context) error {
	var check error
	if err := r.query(ctx, func(st *game.State) { check = st.Board.CheckConsistency() }); err != nil {
		return err
	}
	return check
}

// Stop ends the match and waits for the runner to finish.
func (r *Runner) Stop(ctx context.Context) error {
	if !r.started.Load() {
		return errors.New("runner: not started")
	}
	if r.cancel != nil {
		r.cancel()
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
