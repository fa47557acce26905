package cards

// Properties are the numeric and categorical characteristics of a card.
type Properties struct {
	Code   int       `json:"code" yaml:"code"`
	Type   CardType  `json:"type" yaml:"type"`
	Class  CardClass `json:"class" yaml:"class"`
	Grade  int       `json:"grade" yaml:"grade"`
	Power  int       `json:"power" yaml:"power"`
	Health int       `json:"health" yaml:"health"`
	Shield int       `json:"shield" yaml:"shield"`
	Pierce int       `json:"pierce" yaml:"pierce"`
}

// Field returns a pointer to the property a buff of type t modifies, or nil
// for an unknown type.
func (p *Properties) Field(t BuffType) *int {
	switch t {
	case BuffPower:
		return &p.Power
	case BuffHealth:
		return &p.Health
	case BuffGrade:
		return &p.Grade
	case BuffShield:
		return &p.Shield
	case BuffPierce:
		return &p.Pierce
	default:
		return nil
	}
}

// Ability binds the Index-th registered effect of a card's code to a card
// instance and tracks which usage limits it has satisfied.
type Ability struct {
	Index int   `json:"index"`
	Used  Limit `json:"used"`
}

// Card is one physical card in a match.
type Card struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`

	// Base is the catalog snapshot and never changes after creation.
	Base Properties `json:"base"`
	// Props is the working copy that buffs are folded onto.
	Props Properties `json:"props"`

	Location Location `json:"location"`
	Column   int      `json:"column"`
	Sequence int      `json:"sequence"`

	Damage  int `json:"damage"`
	Attacks int `json:"attacks"`

	Abilities []Ability `json:"abilities,omitempty"`
	Buffs     []Buff    `json:"buffs,omitempty"`
}

// New creates a card that is not yet placed in any zone.
func New(id, owner string, base Properties) *Card {
	return &Card{
		ID:       id,
		Owner:    owner,
		Base:     base,
		Props:    base,
		Location: LocationNone,
	}
}

// Code returns the catalog code of the card.
func (c *Card) Code() int { return c.Base.Code }

// OnField reports whether the card sits in the serve or standby zone.
func (c *Card) OnField() bool { return c.Location.HasAny(LocationField) }

// RemainingHealth is the current health minus damage marked this turn.
func (c *Card) RemainingHealth() int {
	if rest := c.Props.Health - c.Damage; rest > 0 {
		return rest
	}
	return 0
}

// Ability returns the ability bound to the given effect index.
func (c *Card) Ability(index int) (*Ability, bool) {
	for i := range c.Abilities {
		if c.Abilities[i].Index == index {
			return &c.Abilities[i], true
		}
	}
	return nil, false
}

// ClearLimits forgets the satisfied limits in mask for every ability.
func (c *Card) ClearLimits(mask Limit) {
	for i := range c.Abilities {
		c.Abilities[i].Used &^= mask
	}
}

// ResetState drops everything the card accumulated while in play. Once per
// match limits survive.
func (c *Card) ResetState() {
	c.Props = c.Base
	c.Buffs = nil
	c.Damage = 0
	c.Attacks = 0
	c.ClearLimits(LimitOncePerTurn)
}

// Clone returns a deep copy of the card.
func (c *Card) Clone() *Card {
	out := *c
	out.Abilities = append([]Ability(nil), c.Abilities...)
	out.Buffs = append([]Buff(nil), c.Buffs...)
	return &out
}
