package recipe

import (
	"fmt"
	"slices"

	"github.com/cookduel/duel-server-go/internal/game/cards"
)

// Op selects the behaviour of a Filter node.
type Op string

const (
	OpAny        Op = "any"
	OpNot        Op = "not"
	OpAnd        Op = "and"
	OpOr         Op = "or"
	OpCheckType  Op = "check_type"
	OpCheckCode  Op = "check_code"
	OpCheckGrade Op = "check_grade"
	OpCheckClass Op = "check_class"
)

// Filter is a composable predicate over a (dish, material) pair. Filters are
// plain data so catalogs can store them as JSON or YAML.
type Filter struct {
	Op       Op              `json:"op" yaml:"op"`
	Filters  []Filter        `json:"filters,omitempty" yaml:"filters,omitempty"`
	Type     cards.CardType  `json:"type,omitempty" yaml:"type,omitempty"`
	Class    cards.CardClass `json:"class,omitempty" yaml:"class,omitempty"`
	Codes    []int           `json:"codes,omitempty" yaml:"codes,omitempty"`
	MinGrade int             `json:"min_grade,omitempty" yaml:"min_grade,omitempty"`
	MaxGrade int             `json:"max_grade,omitempty" yaml:"max_grade,omitempty"`
}

func Any() Filter { return Filter{Op: OpAny} }
func Not(f Filter) Filter { return Filter{Op: OpNot, Filters: []Filter{f}} }
func And(fs ...Filter) Filter { return Filter{Op: OpAnd, Filters: fs} }
func Or(fs ...Filter) Filter { return Filter{Op: OpOr, Filters: fs} }
func CheckType(t cards.CardType) Filter { return Filter{Op: OpCheckType, Type: t} }
func CheckCode(codes ...int) Filter { return Filter{Op: OpCheckCode, Codes: codes} }
func CheckGrade(min, max int) Filter { return Filter{Op: OpCheckGrade, MinGrade: min, MaxGrade: max} }

// CheckClass matches materials sharing a class with c. A zero class matches
// materials sharing a class with the dish itself.
func CheckClass(c cards.CardClass) Filter { return Filter{Op: OpCheckClass, Class: c} }

// Match evaluates the filter for material being used in dish.
//
// Negation re-evaluates its operand with the material in both positions, so a
// dish-relative operand (check_class with no class) compares the material with
// itself. Existing recipes depend on this.
func (f Filter) Match(dish, material cards.Properties) bool {
	switch f.Op {
	case OpAny, "":
		return true
	case OpNot:
		if len(f.Filters) == 0 {
			return false
		}
		return !f.Filters[0].Match(material, material)
	case OpAnd:
		for _, sub := range f.Filters {
			if !sub.Match(dish, material) {
				return false
			}
		}
		return true
	case OpOr:
		for _, sub := range f.Filters {
			if sub.Match(dish, material) {
				return true
			}
		}
		return false
	case OpCheckType:
		return material.Type.HasAny(f.Type)
	case OpCheckCode:
		return slices.Contains(f.Codes, material.Code)
	case OpCheckGrade:
		return material.Grade >= f.MinGrade && material.Grade <= f.MaxGrade
	case OpCheckClass:
		want := f.Class
		if want == 0 {
			want = dish.Class
		}
		return material.Class.HasAny(want)
	default:
		return false
	}
}

// Validate reports structural problems such as unknown ops or a not without
// an operand.
func (f Filter) Validate() error {
	switch f.Op {
	case OpAny, "":
	case OpNot:
		if len(f.Filters) != 1 {
			return fmt.Errorf("filter not: want 1 operand, got %d", len(f.Filters))
		}
	case OpAnd, OpOr:
		if len(f.Filters) == 0 {
			return fmt.Errorf("filter %s: no operands", f.Op)
		}
	case OpCheckType:
		if f.Type == 0 {
			return fmt.Errorf("filter check_type: no type")
		}
	case OpCheckCode:
		if len(f.Codes) == 0 {
			return fmt.Errorf("filter check_code: no codes")
		}
	case OpCheckGrade:
		if f.MinGrade > f.MaxGrade {
			return fmt.Errorf("filter check_grade: min %d > max %d", f.MinGrade, f.MaxGrade)
		}
	case OpCheckClass:
	default:
		return fmt.Errorf("unknown filter op %q", f.Op)
	}
	for _, sub := range f.Filters {
		if err := sub.Validate(); err != nil {
			return err
		}
	}
	return nil
}
