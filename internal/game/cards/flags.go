package cards

import (
	"fmt"
	"math/bits"
	"strings"
)

// Location is the bit-flag set describing where a card resides. A placed card
// always carries exactly one bit; combined masks are used for queries.
type Location uint32

const (
	LocationHand Location = 1 << iota
	LocationMainDeck
	LocationRecipeDeck
	LocationServeZone
	LocationStandbyZone
	LocationTrash
)

const (
	LocationNone Location = 0

	// LocationField covers both rows of the board.
	LocationField = LocationServeZone | LocationStandbyZone
	// LocationPrivate covers zones whose contents are hidden from the opponent.
	LocationPrivate = LocationHand | LocationMainDeck | LocationRecipeDeck
	LocationAll     = LocationHand | LocationMainDeck | LocationRecipeDeck | LocationField | LocationTrash
)

var locationNames = map[Location]string{
	LocationHand:        "hand",
	LocationMainDeck:    "main_deck",
	LocationRecipeDeck:  "recipe_deck",
	LocationServeZone:   "serve_zone",
	LocationStandbyZone: "standby_zone",
	LocationTrash:       "trash",
}

// HasAny reports whether l shares at least one bit with other.
func (l Location) HasAny(other Location) bool { return l&other != 0 }

// HasAll reports whether l contains every bit of other.
func (l Location) HasAll(other Location) bool { return l&other == other }

// Single reports whether exactly one location bit is set.
func (l Location) Single() bool { return l != 0 && l&(l-1) == 0 }

func (l Location) String() string {
	if l == LocationNone {
		return "none"
	}
	return joinFlags(uint32(l), func(bit uint32) string { return locationNames[Location(bit)] })
}

func (l Location) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *Location) UnmarshalText(text []byte) error {
	v, err := parseFlags(string(text), func(name string) (uint32, bool) {
		if name == "none" {
			return 0, true
		}
		if name == "field" {
			return uint32(LocationField), true
		}
		for loc, n := range locationNames {
			if n == name {
				return uint32(loc), true
			}
		}
		return 0, false
	})
	if err != nil {
		return fmt.Errorf("location: %w", err)
	}
	*l = Location(v)
	return nil
}

// ParseLocation parses a location name such as "serve_zone".
func ParseLocation(name string) (Location, error) {
	var l Location
	err := l.UnmarshalText([]byte(name))
	return l, err
}

// CardType is the bit-flag set of card types.
type CardType uint32

const (
	TypeIngredient CardType = 1 << iota
	TypeDish
	TypeAction
)

var typeNames = map[CardType]string{
	TypeIngredient: "ingredient",
	TypeDish:       "dish",
	TypeAction:     "action",
}

func (t CardType) HasAny(other CardType) bool { return t&other != 0 }
func (t CardType) HasAll(other CardType) bool { return t&other == other }

func (t CardType) String() string {
	return joinFlags(uint32(t), func(bit uint32) string { return typeNames[CardType(bit)] })
}

func (t CardType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *CardType) UnmarshalText(text []byte) error {
	v, err := parseFlags(string(text), func(name string) (uint32, bool) {
		for typ, n := range typeNames {
			if n == name {
				return uint32(typ), true
			}
		}
		return 0, false
	})
	if err != nil {
		return fmt.Errorf("card type: %w", err)
	}
	*t = CardType(v)
	return nil
}

// CardClass is the bit-flag set of ingredient families a card belongs to.
type CardClass uint32

const (
	ClassMeat CardClass = 1 << iota
	ClassFish
	ClassVegetable
	ClassGrain
	ClassFruit
	ClassDairy
	ClassSpice
)

var classNames = map[CardClass]string{
	ClassMeat:      "meat",
	ClassFish:      "fish",
	ClassVegetable: "vegetable",
	ClassGrain:     "grain",
	ClassFruit:     "fruit",
	ClassDairy:     "dairy",
	ClassSpice:     "spice",
}

func (c CardClass) HasAny(other CardClass) bool { return c&other != 0 }
func (c CardClass) HasAll(other CardClass) bool { return c&other == other }

func (c CardClass) String() string {
	return joinFlags(uint32(c), func(bit uint32) string { return classNames[CardClass(bit)] })
}

func (c CardClass) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *CardClass) UnmarshalText(text []byte) error {
	v, err := parseFlags(string(text), func(name string) (uint32, bool) {
		for class, n := range classNames {
			if n == name {
				return uint32(class), true
			}
		}
		return 0, false
	})
	if err != nil {
		return fmt.Errorf("card class: %w", err)
	}
	*c = CardClass(v)
	return nil
}

// Limit is the set of usage limits an ability has already satisfied.
type Limit uint8

const (
	LimitOncePerTurn Limit = 1 << iota
	LimitOncePerMatch
)

const LimitNone Limit = 0

func (l Limit) HasAny(other Limit) bool { return l&other != 0 }
func (l Limit) HasAll(other Limit) bool { return l&other == other }

// BuffReset is the set of conditions that remove a buff.
type BuffReset uint8

const (
	ResetEndTurn BuffReset = 1 << iota
	ResetSourceRemoved
	ResetTargetRemoved
)

const (
	ResetNone BuffReset = 0

	// ResetZoneChange is the sweep trigger run after any card changes zone.
	ResetZoneChange = ResetSourceRemoved | ResetTargetRemoved
)

func (r BuffReset) HasAny(other BuffReset) bool { return r&other != 0 }
func (r BuffReset) HasAll(other BuffReset) bool { return r&other == other }

func joinFlags(v uint32, name func(uint32) string) string {
	if v == 0 {
		return ""
	}
	parts := make([]string, 0, bits.OnesCount32(v))
	for v != 0 {
		bit := v & -v
		v &^= bit
		n := name(bit)
		if n == "" {
			n = fmt.Sprintf("0x%x", bit)
		}
		parts = append(parts, n)
	}
	return strings.Join(parts, "|")
}

func parseFlags(text string, lookup func(string) (uint32, bool)) (uint32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	var v uint32
	for _, raw := range strings.Split(text, "|") {
		name := strings.ToLower(strings.TrimSpace(raw))
		bit, ok := lookup(name)
		if !ok {
			return 0, fmt.Errorf("unknown flag %q", raw)
		}
		v |= bit
	}
	return v, nil
}
