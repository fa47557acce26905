package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cookduel/duel-server-go/internal/game/cards"
	"github.com/cookduel/duel-server-go/internal/game/recipe"
)

// Cached is a read-through Redis cache in front of another catalog. Cache
// failures are logged and fall through to the backing source; decks are never
// cached.
type Cached struct {
	next   Source
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewCached wraps next with a cache in rdb. Entries expire after ttl; zero
// keeps them until evicted.
func NewCached(next Source, rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *Cached {
	return &Cached{next: next, rdb: rdb, ttl: ttl, prefix: "duel:catalog:", logger: logger}
}

func (c *Cached) cardKey(code int) string   { return fmt.Sprintf("%scard:%d", c.prefix, code) }
func (c *Cached) recipeKey(code int) string { return fmt.Sprintf("%srecipe:%d", c.prefix, code) }

// ReadCardProperty implements Reader.
func (c *Cached) ReadCardProperty(ctx context.Context, code int) (cards.Properties, error) {
	var props cards.Properties
	if c.lookup(ctx, c.cardKey(code), &props) {
		return props, nil
	}
	props, err := c.next.ReadCardProperty(ctx, code)
	if err != nil {
		return cards.Properties{}, err
	}
	c.store(ctx, c.cardKey(code), props)
	return props, nil
}

// ReadDishCardRecipe implements Reader.
func (c *Cached) ReadDishCardRecipe(ctx context.Context, code int) (*recipe.Recipe, error) {
	r := &recipe.Recipe{}
	if c.lookup(ctx, c.recipeKey(code), r) {
		return r, nil
	}
	r, err := c.next.ReadDishCardRecipe(ctx, code)
	if err != nil {
		return nil, err
	}
	c.store(ctx, c.recipeKey(code), r)
	return r, nil
}

// Deck implements DeckSource.
func (c *Cached) Deck(ctx context.Context, playerID string) (Deck, error) {
	return c.next.Deck(ctx, playerID)
}

// Invalidate drops the cached entries of the given codes.
func (c *Cached) Invalidate(ctx context.Context, codes ...int) error {
	if len(codes) == 0 {
		return nil
	}
	keys := make([]string, 0, 2*len(codes))
	for _, code := range codes {
		keys = append(keys, c.cardKey(code), c.recipeKey(code))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate catalog cache: %w", err)
	}
	return nil
}

func (c *Cached) lookup(ctx context.Context, key string, out any) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err == nil {
		err = json.Unmarshal(data, out)
	}
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	return true
}

func (c *Cached) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err == nil {
		err = c.rdb.Set(ctx, key, data, c.ttl).Err()
	}
	if err != nil && c.logger != nil {
		c.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}
