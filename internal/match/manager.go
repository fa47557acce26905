package match

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cookduel/duel-server-go/internal/game"
)

// ErrNotFound is returned for unknown match IDs.
var ErrNotFound = errors.New("match not found")

// ManagerOptions configure the runners a Manager creates.
type ManagerOptions struct {
	TickInterval time.Duration
	QueueSize    int
	Clock        func() time.Time
}

// Manager creates and tracks the running matches of the process.
type Manager struct {
	logger     *zap.Logger
	handler    Handler
	dispatcher game.Dispatcher
	recorder   *game.ReplayRecorder
	opts       ManagerOptions

	mu      sync.RWMutex
	matches map[string]*Runner
}

// NewManager creates a manager.
func NewManager(logger *zap.Logger, handler Handler, dispatcher game.Dispatcher, recorder *game.ReplayRecorder, opts ManagerOptions) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger:     logger,
		handler:    handler,
		dispatcher: dispatcher,
		recorder:   recorder,
		opts:       opts,
		matches:    make(map[string]*Runner),
	}
}

// Create starts a match with a fresh ID and a random seed.
func (m *Manager) Create(ctx context.Context) (*Runner, error) {
	return m.CreateWithID(ctx, uuid.NewString(), rand.Uint64())
}

// CreateWithID starts a match with the given ID and seed. The match outlives
// ctx; it ends on its own or through Stop/Shutdown.
func (m *Manager) CreateWithID(ctx context.Context, matchID string, seed uint64) (*Runner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.matches[matchID]; exists {
		return nil, fmt.Errorf("match %s already exists", matchID)
	}
	r, err := NewRunner(m.logger, m.handler, m.dispatcher, m.recorder, Options{
		MatchID:      matchID,
		Seed:         seed,
		TickInterval: m.opts.TickInterval,
		QueueSize:    m.opts.QueueSize,
		Clock:        m.opts.Clock,
	})
	if err != nil {
		return nil, err
	}
	r.onStopped = m.remove
	if err := r.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, err
	}
	m.matches[matchID] = r

	m.logger.Info("match created", zap.String("match_id", matchID), zap.Int("active_matches", len(m.matches)))
	return r, nil
}

func (m *Manager) remove(matchID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.matches, matchID)
}

// Get returns a running match.
func (m *Manager) Get(matchID string) (*Runner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.matches[matchID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, matchID)
	}
	return r, nil
}

// List returns the IDs of the running matches, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.matches))
	for id := range m.matches {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Shutdown stops every running match and waits for them to finish.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	runners := make([]*Runner, 0, len(m.matches))
	for _, r := range m.matches {
		runners = append(runners, r)
	}
	m.mu.RUnlock()

	var errs []error
	for _, r := range runners {
		if err := r.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop match %s: %w", r.ID(), err))
		}
	}
	return errors.Join(errs...)
}
