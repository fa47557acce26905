package catalog

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Runs against a real database when DUEL_TEST_DATABASE_URL is set.
func TestPostgresImportAndRead(t *testing.T) {
	url := os.Getenv("DUEL_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("DUEL_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pg, err := NewPostgres(ctx, url, 2, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer pg.Close()
	require.NoError(t, pg.EnsureSchema(ctx))

	data, err := os.ReadFile("../../data/catalog.yaml")
	require.NoError(t, err)
	f, err := ParseFile(data)
	require.NoError(t, err)

	n, err := pg.Import(ctx, f, 4)
	require.NoError(t, err)
	assert.Equal(t, len(f.Cards)+len(f.Recipes)+len(f.Decks), n)

	want := FromFile(f)
	for _, c := range f.Cards {
		got, err := pg.ReadCardProperty(ctx, c.Code)
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	for _, r := range f.Recipes {
		got, err := pg.ReadDishCardRecipe(ctx, r.Code)
		require.NoError(t, err)
		exp, _ := want.ReadDishCardRecipe(ctx, r.Code)
		assert.Equal(t, exp, got)
	}
	deck, err := pg.Deck(ctx, "nobody-in-particular")
	require.NoError(t, err)
	exp, _ := want.Deck(ctx, DefaultDeckOwner)
	assert.Equal(t, exp, deck)

	_, err = pg.ReadCardProperty(ctx, 999999)
	assert.ErrorIs(t, err, ErrNotFound)
}
