// Package choice models the decisions an effect can ask a player to make
// while it resolves.
package choice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cookduel/duel-server-go/internal/game/cards"
)

var (
	// ErrInvalidSelection is returned when a response does not fit the request.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrWrongPlayer is returned when someone other than the asked player answers.
	ErrWrongPlayer = errors.New("choice belongs to another player")
)

// Kind is the shape of a decision.
type Kind string

const (
	KindCards  Kind = "cards"
	KindZone   Kind = "zone"
	KindYesNo  Kind = "yes_no"
	KindOption Kind = "option"
)

const (
	Yes = "yes"
	No  = "no"
)

// Request asks Player to pick between Min and Max distinct entries of
// Candidates.
type Request struct {
	ID         string   `json:"id"`
	Player     string   `json:"player"`
	Kind       Kind     `json:"kind"`
	Prompt     string   `json:"prompt,omitempty"`
	Candidates []string `json:"candidates"`
	Min        int      `json:"min"`
	Max        int      `json:"max"`
}

// Cards asks for between min and max of the given card IDs.
func Cards(player, prompt string, candidates []string, min, max int) *Request {
	return &Request{Player: player, Kind: KindCards, Prompt: prompt, Candidates: candidates, Min: min, Max: max}
}

// Zone asks for exactly one of the given zone slots, see ZoneCandidate.
func Zone(player, prompt string, zones []string) *Request {
	return &Request{Player: player, Kind: KindZone, Prompt: prompt, Candidates: zones, Min: 1, Max: 1}
}

// YesNo asks a yes or no question.
func YesNo(player, prompt string) *Request {
	return &Request{Player: player, Kind: KindYesNo, Prompt: prompt, Candidates: []string{Yes, No}, Min: 1, Max: 1}
}

// Option asks for exactly one of the named options.
func Option(player, prompt string, options ...string) *Request {
	return &Request{Player: player, Kind: KindOption, Prompt: prompt, Candidates: options, Min: 1, Max: 1}
}

// Satisfiable reports whether any valid answer exists.
func (r *Request) Satisfiable() bool {
	return r.Min <= r.Max && r.Min <= len(r.Candidates)
}

// Validate checks a response from player against the request.
func (r *Request) Validate(player string, selection []string) error {
	if r == nil {
		return fmt.Errorf("%w: no request", ErrInvalidSelection)
	}
	if player != r.Player {
		return ErrWrongPlayer
	}
	count := len(selection)
	if count < r.Min {
		return fmt.Errorf("%w: need at least %d, got %d", ErrInvalidSelection, r.Min, count)
	}
	if count > r.Max {
		return fmt.Errorf("%w: need at most %d, got %d", ErrInvalidSelection, r.Max, count)
	}
	seen := make(map[string]struct{}, count)
	for _, s := range selection {
		if _, dup := seen[s]; dup {
			return fmt.Errorf("%w: %q chosen twice", ErrInvalidSelection, s)
		}
		seen[s] = struct{}{}
		if !r.offers(s) {
			return fmt.Errorf("%w: %q was not offered", ErrInvalidSelection, s)
		}
	}
	return nil
}

func (r *Request) offers(s string) bool {
	for _, c := range r.Candidates {
		if c == s {
			return true
		}
	}
	return false
}

// ZoneCandidate encodes a field slot as "<location>:<column>".
func ZoneCandidate(loc cards.Location, column int) string {
	return loc.String() + ":" + strconv.Itoa(column)
}

// ParseZone decodes a ZoneCandidate.
func ParseZone(s string) (cards.Location, int, error) {
	name, col, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: zone %q", ErrInvalidSelection, s)
	}
	loc, err := cards.ParseLocation(name)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: zone %q: %v", ErrInvalidSelection, s, err)
	}
	column, err := strconv.Atoi(col)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: zone %q: %v", ErrInvalidSelection, s, err)
	}
	return loc, column, nil
}

// FormatList joins IDs for storage in string bindings.
func FormatList(ids []string) string {
	return strings.Join(ids, ",")
}

// ParseList splits a FormatList value.
func ParseList(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
