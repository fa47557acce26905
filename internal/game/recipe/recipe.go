// Package recipe describes dish recipes and decides whether a set of
// materials can fill one.
package recipe

import (
	"fmt"

	"github.com/cookduel/duel-server-go/internal/game/cards"
)

// Slot is one requirement of a recipe.
type Slot struct {
	Name      string `json:"name" yaml:"name"`
	Min       int    `json:"min" yaml:"min"`
	Max       int    `json:"max" yaml:"max"`
	Condition Filter `json:"condition" yaml:"condition"`
}

// Recipe is the ordered slot list of a dish card.
type Recipe struct {
	Code  int    `json:"code" yaml:"code"`
	Slots []Slot `json:"slots" yaml:"slots"`
}

// Validate checks slot bounds and filters.
func (r *Recipe) Validate() error {
	if r == nil {
		return fmt.Errorf("recipe: nil")
	}
	if len(r.Slots) == 0 {
		return fmt.Errorf("recipe %d: no slots", r.Code)
	}
	for i, s := range r.Slots {
		if s.Min < 0 || s.Max < s.Min {
			return fmt.Errorf("recipe %d slot %d: bad bounds [%d,%d]", r.Code, i, s.Min, s.Max)
		}
		if err := s.Condition.Validate(); err != nil {
			return fmt.Errorf("recipe %d slot %d: %w", r.Code, i, err)
		}
	}
	return nil
}

// Assignment maps each slot index to the indexes of the materials placed in it.
type Assignment [][]int

// Match searches for an assignment of materials to slots. Materials are placed
// in input order and slots are tried in slot order; a slot is skipped once it
// holds Max materials or when the material fails its condition. Minimums are
// checked only once every material is placed. The first satisfying assignment
// is returned.
func Match(r *Recipe, dish cards.Properties, materials []cards.Properties) (Assignment, bool) {
	if r == nil {
		return nil, false
	}
	placed := make(Assignment, len(r.Slots))

	var place func(i int) bool
	place = func(i int) bool {
		if i == len(materials) {
			for s, slot := range r.Slots {
				if len(placed[s]) < slot.Min {
					return false
				}
			}
			return true
		}
		for s, slot := range r.Slots {
			if len(placed[s]) >= slot.Max || !slot.Condition.Match(dish, materials[i]) {
				continue
			}
			placed[s] = append(placed[s], i)
			if place(i + 1) {
				return true
			}
			placed[s] = placed[s][:len(placed[s])-1]
		}
		return false
	}

	if !place(0) {
		return nil, false
	}
	return placed, true
}

// IsComplete reports whether materials can fill every slot of r.
func IsComplete(r *Recipe, dish cards.Properties, materials []cards.Properties) bool {
	_, ok := Match(r, dish, materials)
	return ok
}

// Feasible reports whether some non-empty subset of candidates completes r.
// Each candidate is either left out or placed in a slot, under the same
// pruning rules as Match.
func Feasible(r *Recipe, dish cards.Properties, candidates []cards.Properties) bool {
	if r == nil || len(candidates) == 0 {
		return false
	}
	counts := make([]int, len(r.Slots))

	var place func(i, used int) bool
	place = func(i, used int) bool {
		if i == len(candidates) {
			if used == 0 {
				return false
			}
			for s, slot := range r.Slots {
				if counts[s] < slot.Min {
					return false
				}
			}
			return true
		}
		for s, slot := range r.Slots {
			if counts[s] >= slot.Max || !slot.Condition.Match(dish, candidates[i]) {
				continue
			}
			counts[s]++
			if place(i+1, used+1) {
				return true
			}
			counts[s]--
		}
		return place(i+1, used)
	}
	return place(0, 0)
}
