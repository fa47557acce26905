package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cookduel/duel-server-go/internal/game/cards"
	"github.com/cookduel/duel-server-go/internal/game/recipe"
)

const schema = `
CREATE TABLE IF NOT EXISTS cards (
	code   INTEGER PRIMARY KEY,
	type   TEXT    NOT NULL,
	class  TEXT    NOT NULL DEFAULT '',
	grade  INTEGER NOT NULL DEFAULT 0,
	power  INTEGER NOT NULL DEFAULT 0,
	health INTEGER NOT NULL DEFAULT 0,
	shield INTEGER NOT NULL DEFAULT 0,
	pierce INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS recipes (
	code  INTEGER PRIMARY KEY REFERENCES cards(code),
	slots JSONB   NOT NULL
);
CREATE TABLE IF NOT EXISTS decks (
	player_id TEXT      PRIMARY KEY,
	main      INTEGER[] NOT NULL,
	recipes   INTEGER[] NOT NULL
);`

// Postgres serves the catalog from a PostgreSQL database.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres connects to url and verifies the connection.
func NewPostgres(ctx context.Context, url string, maxConns int32, logger *zap.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if logger != nil {
		logger.Info("catalog database connected", zap.Int32("max_conns", cfg.MaxConns))
	}
	return &Postgres{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (p *Postgres) Close() { p.pool.Close() }

// EnsureSchema creates the catalog tables if they are missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create catalog schema: %w", err)
	}
	return nil
}

// ReadCardProperty implements Reader.
func (p *Postgres) ReadCardProperty(ctx context.Context, code int) (cards.Properties, error) {
	var (
		props             cards.Properties
		typeName, classes string
	)
	err := p.pool.QueryRow(ctx,
		`SELECT code, type, class, grade, power, health, shield, pierce FROM cards WHERE code = $1`, code,
	).Scan(&props.Code, &typeName, &classes, &props.Grade, &props.Power, &props.Health, &props.Shield, &props.Pierce)
	if errors.Is(err, pgx.ErrNoRows) {
		return cards.Properties{}, fmt.Errorf("card %d: %w", code, ErrNotFound)
	}
	if err != nil {
		return cards.Properties{}, fmt.Errorf("read card %d: %w", code, err)
	}
	if err := props.Type.UnmarshalText([]byte(typeName)); err != nil {
		return cards.Properties{}, fmt.Errorf("card %d: %w", code, err)
	}
	if err := props.Class.UnmarshalText([]byte(classes)); err != nil {
		return cards.Properties{}, fmt.Errorf("card %d: %w", code, err)
	}
	return props, nil
}

// ReadDishCardRecipe implements Reader.
func (p *Postgres) ReadDishCardRecipe(ctx context.Context, code int) (*recipe.Recipe, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT slots FROM recipes WHERE code = $1`, code).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("recipe %d: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read recipe %d: %w", code, err)
	}
	r := &recipe.Recipe{Code: code}
	if err := json.Unmarshal(raw, &r.Slots); err != nil {
		return nil, fmt.Errorf("decode recipe %d: %w", code, err)
	}
	return r, nil
}

// Deck implements DeckSource. Players without a row get the DefaultDeckOwner
// deck.
func (p *Postgres) Deck(ctx context.Context, playerID string) (Deck, error) {
	var main, recipes []int32
	err := p.pool.QueryRow(ctx,
		`SELECT main, recipes FROM decks WHERE player_id = $1 OR player_id = $2
		 ORDER BY (player_id = $1) DESC LIMIT 1`, playerID, DefaultDeckOwner,
	).Scan(&main, &recipes)
	if errors.Is(err, pgx.ErrNoRows) {
		return Deck{}, fmt.Errorf("deck of %s: %w", playerID, ErrNotFound)
	}
	if err != nil {
		return Deck{}, fmt.Errorf("read deck of %s: %w", playerID, err)
	}
	return Deck{Main: widen(main), Recipes: widen(recipes)}, nil
}

// Import upserts every entry of f in batches of batchSize statements, one
// transaction per batch. It returns the number of rows written.
func (p *Postgres) Import(ctx context.Context, f *File, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	var stmts []queued
	for _, c := range f.Cards {
		stmts = append(stmts, queued{
			sql: `INSERT INTO cards (code, type, class, grade, power, health, shield, pierce)
			      VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			      ON CONFLICT (code) DO UPDATE SET type = EXCLUDED.type, class = EXCLUDED.class,
			        grade = EXCLUDED.grade, power = EXCLUDED.power, health = EXCLUDED.health,
			        shield = EXCLUDED.shield, pierce = EXCLUDED.pierce`,
			args: []any{c.Code, c.Type.String(), c.Class.String(), c.Grade, c.Power, c.Health, c.Shield, c.Pierce},
		})
	}
	for _, r := range f.Recipes {
		slots, err := json.Marshal(r.Slots)
		if err != nil {
			return 0, fmt.Errorf("encode recipe %d: %w", r.Code, err)
		}
		stmts = append(stmts, queued{
			sql:  `INSERT INTO recipes (code, slots) VALUES ($1, $2) ON CONFLICT (code) DO UPDATE SET slots = EXCLUDED.slots`,
			args: []any{r.Code, slots},
		})
	}
	for owner, d := range f.Decks {
		stmts = append(stmts, queued{
			sql: `INSERT INTO decks (player_id, main, recipes) VALUES ($1, $2, $3)
			      ON CONFLICT (player_id) DO UPDATE SET main = EXCLUDED.main, recipes = EXCLUDED.recipes`,
			args: []any{owner, narrow(d.Main), narrow(d.Recipes)},
		})
	}

	written := 0
	for start := 0; start < len(stmts); start += batchSize {
		end := min(start+batchSize, len(stmts))
		if err := p.runBatch(ctx, stmts[start:end]); err != nil {
			return written, err
		}
		written += end - start
		if p.logger != nil {
			p.logger.Info("catalog import progress", zap.Int("written", written), zap.Int("total", len(stmts)))
		}
	}
	return written, nil
}

type queued struct {
	sql  string
	args []any
}

func (p *Postgres) runBatch(ctx context.Context, stmts []queued) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin import batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, s := range stmts {
		batch.Queue(s.sql, s.args...)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("import batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit import batch: %w", err)
	}
	return nil
}

func widen(in []int32) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}

func narrow(in []int) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}
