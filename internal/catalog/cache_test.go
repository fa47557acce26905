package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cookduel/duel-server-go/internal/game/cards"
	"github.com/cookduel/duel-server-go/internal/game/recipe"
)

type countingSource struct {
	*Memory
	cardReads int
}

func (c *countingSource) ReadCardProperty(ctx context.Context, code int) (cards.Properties, error) {
	c.cardReads++
	return c.Memory.ReadCardProperty(ctx, code)
}

func newCountingSource() *countingSource {
	m := NewMemory()
	m.AddCard(cards.Properties{Code: 7, Type: cards.TypeDish, Class: cards.ClassFish, Power: 3, Health: 2})
	m.AddRecipe(&recipe.Recipe{Code: 7, Slots: []recipe.Slot{{Min: 1, Max: 1, Condition: recipe.CheckClass(0)}}})
	return &countingSource{Memory: m}
}

func TestCachedFallsThroughWhenRedisIsDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	defer rdb.Close()

	src := newCountingSource()
	c := NewCached(src, rdb, time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	p, err := c.ReadCardProperty(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Power)
	_, err = c.ReadCardProperty(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, src.cardReads, "nothing is cached without redis")

	_, err = c.ReadCardProperty(ctx, 8)
	assert.ErrorIs(t, err, ErrNotFound)
}

// Runs against a real server when DUEL_TEST_REDIS_ADDR is set.
func TestCachedReadThrough(t *testing.T) {
	addr := os.Getenv("DUEL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DUEL_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	src := newCountingSource()
	c := NewCached(src, rdb, time.Minute, zaptest.NewLogger(t))
	c.prefix = "duel:test:" + t.Name() + ":"
	ctx := context.Background()
	require.NoError(t, c.Invalidate(ctx, 7))

	first, err := c.ReadCardProperty(ctx, 7)
	require.NoError(t, err)
	second, err := c.ReadCardProperty(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.cardReads)

	r, err := c.ReadDishCardRecipe(ctx, 7)
	require.NoError(t, err)
	cached, err := c.ReadDishCardRecipe(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, r, cached)
	assert.True(t, recipe.IsComplete(cached, first, []cards.Properties{{Class: cards.ClassFish}}))

	require.NoError(t, c.Invalidate(ctx, 7))
}
