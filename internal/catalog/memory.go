package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cookduel/duel-server-go/internal/game/cards"
	"github.com/cookduel/duel-server-go/internal/game/recipe"
)

// File is the on-disk catalog format shared by the YAML loader and the
// Postgres import script.
type File struct {
	Cards   []cards.Properties `yaml:"cards"`
	Recipes []recipe.Recipe    `yaml:"recipes"`
	Decks   map[string]Deck    `yaml:"decks"`
}

// ParseFile decodes and validates a catalog document.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks that codes are unique, recipes are well formed and every
// deck references known cards.
func (f *File) Validate() error {
	known := make(map[int]cards.Properties, len(f.Cards))
	for _, c := range f.Cards {
		if c.Code <= 0 {
			return fmt.Errorf("catalog: card code %d must be positive", c.Code)
		}
		if _, dup := known[c.Code]; dup {
			return fmt.Errorf("catalog: duplicate card code %d", c.Code)
		}
		known[c.Code] = c
	}
	for i := range f.Recipes {
		r := &f.Recipes[i]
		if err := r.Validate(); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		if props, ok := known[r.Code]; !ok || !props.Type.HasAny(cards.TypeDish) {
			return fmt.Errorf("catalog: recipe %d does not belong to a dish card", r.Code)
		}
	}
	owners := make([]string, 0, len(f.Decks))
	for owner := range f.Decks {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	for _, owner := range owners {
		deck := f.Decks[owner]
		for _, code := range append(append([]int(nil), deck.Main...), deck.Recipes...) {
			if _, ok := known[code]; !ok {
				return fmt.Errorf("catalog: deck %q references unknown card %d", owner, code)
			}
		}
		for _, code := range deck.Recipes {
			if !known[code].Type.HasAny(cards.TypeDish) {
				return fmt.Errorf("catalog: deck %q has non-dish %d in its recipe deck", owner, code)
			}
		}
	}
	return nil
}

// Memory is an in-process catalog.
type Memory struct {
	mu      sync.RWMutex
	cards   map[int]cards.Properties
	recipes map[int]*recipe.Recipe
	decks   map[string]Deck
}

// NewMemory creates an empty catalog.
func NewMemory() *Memory {
	return &Memory{
		cards:   make(map[int]cards.Properties),
		recipes: make(map[int]*recipe.Recipe),
		decks:   make(map[string]Deck),
	}
}

// LoadYAML reads a catalog file from disk.
func LoadYAML(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	f, err := ParseFile(data)
	if err != nil {
		return nil, err
	}
	return FromFile(f), nil
}

// FromFile builds a Memory catalog from a parsed file.
func FromFile(f *File) *Memory {
	m := NewMemory()
	for _, c := range f.Cards {
		m.AddCard(c)
	}
	for i := range f.Recipes {
		r := f.Recipes[i]
		m.AddRecipe(&r)
	}
	for owner, deck := range f.Decks {
		m.SetDeck(owner, deck)
	}
	return m
}

func (m *Memory) AddCard(p cards.Properties) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[p.Code] = p
}

func (m *Memory) AddRecipe(r *recipe.Recipe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recipes[r.Code] = r
}

// SetDeck stores the deck of a player; DefaultDeckOwner sets the fallback.
func (m *Memory) SetDeck(playerID string, d Deck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decks[playerID] = Deck{
		Main:    append([]int(nil), d.Main...),
		Recipes: append([]int(nil), d.Recipes...),
	}
}

// ReadCardProperty implements Reader.
func (m *Memory) ReadCardProperty(_ context.Context, code int) (cards.Properties, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.cards[code]
	if !ok {
		return cards.Properties{}, fmt.Errorf("card %d: %w", code, ErrNotFound)
	}
	return p, nil
}

// ReadDishCardRecipe implements Reader.
func (m *Memory) ReadDishCardRecipe(_ context.Context, code int) (*recipe.Recipe, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.recipes[code]
	if !ok {
		return nil, fmt.Errorf("recipe %d: %w", code, ErrNotFound)
	}
	return r, nil
}

// Deck implements DeckSource.
func (m *Memory) Deck(_ context.Context, playerID string) (Deck, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.decks[playerID]
	if !ok {
		d, ok = m.decks[DefaultDeckOwner]
	}
	if !ok {
		return Deck{}, fmt.Errorf("deck of %s: %w", playerID, ErrNotFound)
	}
	return Deck{Main: append([]int(nil), d.Main...), Recipes: append([]int(nil), d.Recipes...)}, nil
}
