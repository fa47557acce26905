package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cookduel/duel-server-go/internal/catalog"
	"github.com/cookduel/duel-server-go/internal/game"
	"github.com/cookduel/duel-server-go/internal/game/cardscripts"
	"github.com/cookduel/duel-server-go/internal/match"
)

// newManager returns a manager whose matches tick every millisecond and
// deliver packets through hub.
func newManager(t *testing.T, hub *Hub) *match.Manager {
	t.Helper()
	m, err := catalog.LoadYAML("../../data/catalog.yaml")
	require.NoError(t, err)
	reg, err := cardscripts.Registry()
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	engine := game.NewEngine(logger, reg, m, game.DefaultRules())
	var d game.Dispatcher
	if hub != nil {
		d = hub
	}
	mgr := match.NewManager(logger, match.NewDuelHandler(engine, logger), d, nil,
		match.ManagerOptions{TickInterval: time.Millisecond})
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })
	return mgr
}
