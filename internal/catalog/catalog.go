// Package catalog is the read-only lookup of card properties, dish recipes
// and player decks the rules engine depends on.
package catalog

import (
	"context"
	"errors"

	"github.com/cookduel/duel-server-go/internal/game/cards"
	"github.com/cookduel/duel-server-go/internal/game/recipe"
)

// ErrNotFound is returned when a code or player has no catalog entry.
var ErrNotFound = errors.New("catalog: not found")

// Reader looks up reference data by card code.
type Reader interface {
	ReadCardProperty(ctx context.Context, code int) (cards.Properties, error)
	ReadDishCardRecipe(ctx context.Context, code int) (*recipe.Recipe, error)
}

// Deck lists the card codes a player brings to a match.
type Deck struct {
	Main    []int `json:"main" yaml:"main"`
	Recipes []int `json:"recipes" yaml:"recipes"`
}

// DeckSource resolves the deck a player plays with.
type DeckSource interface {
	Deck(ctx context.Context, playerID string) (Deck, error)
}

// Source is a complete catalog backend.
type Source interface {
	Reader
	DeckSource
}

// DefaultDeckOwner is the deck key used when a player has no deck of their own.
const DefaultDeckOwner = "*"
