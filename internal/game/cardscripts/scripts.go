// Package cardscripts holds the abilities of every scripted card code.
package cardscripts

import (
	"github.com/cookduel/duel-server-go/internal/game/cards"
	"github.com/cookduel/duel-server-go/internal/game/choice"
	"github.com/cookduel/duel-server-go/internal/game/effects"
	"github.com/cookduel/duel-server-go/internal/game/rules"
)

// Card codes with scripted abilities.
const (
	CodeGarlicButter  = 105
	CodePepperMill    = 106
	CodeGrilledSalmon = 202
	CodeBeefStew      = 203
	CodeFruitTart     = 204
	CodeKitchenRush   = 301
)

// Options offered by Kitchen Rush.
const (
	OptionRestock = "restock"
	OptionRest    = "rest"
)

// Register adds every scripted ability to b.
func Register(b *effects.Builder) *effects.Builder {
	return b.
		Register(CodeGarlicButter, garlicButter()).
		Register(CodePepperMill, pepperMill()).
		Register(CodeGrilledSalmon, grilledSalmon()).
		Register(CodeBeefStew, beefStew()).
		Register(CodeFruitTart, fruitTartAura(), fruitTartGuard()).
		Register(CodeKitchenRush, kitchenRush())
}

// Registry builds the registry of all scripted cards.
func Registry() (*effects.Registry, error) {
	return Register(effects.NewBuilder()).Build()
}

func onField(ctx *effects.Context) bool { return ctx.Card.OnField() }

// Garlic Butter: once per turn, one of your field cards gets +2 power until
// end of turn.
func garlicButter() effects.CardEffect {
	return effects.CardEffect{
		Name:  "garlic_butter",
		Kind:  effects.KindActive,
		Limit: cards.LimitOncePerTurn,
		Condition: func(ctx *effects.Context) bool {
			return onField(ctx) && len(ctx.Own(cards.LocationField, nil)) > 0
		},
		Activate: func(ctx *effects.Context) effects.Resolution {
			switch ctx.Step {
			case 0:
				targets := effects.IDs(ctx.Own(cards.LocationField, nil))
				return ctx.Ask(1, choice.Cards(ctx.Player, "Choose a card to season", targets, 1, 1))
			default:
				target, ok := ctx.Game.Board().Card(ctx.Choice[0])
				if ok && target.OnField() {
					ctx.Game.Grant(ctx.Card, target, cards.Buff{
						Type: cards.BuffPower, Op: cards.OpAdd, Amount: 2, Resets: cards.ResetEndTurn,
					})
				}
				return ctx.Done()
			}
		},
	}
}

// Pepper Mill: when set, draw a card.
func pepperMill() effects.CardEffect {
	return effects.CardEffect{
		Name: "pepper_mill",
		Kind: effects.KindTrigger,
		Trigger: &effects.TriggerSpec{
			Event:  rules.EventSet,
			Phase:  rules.After,
			Filter: func(ctx *effects.Context) bool { return ctx.IsSelf() },
		},
		Activate: func(ctx *effects.Context) effects.Resolution {
			_, _ = ctx.Game.Draw(ctx.Player, 1)
			return ctx.Done()
		},
	}
}

// Grilled Salmon: when summoned you may sear the opponent for 2; the dish
// then loses 1 power until end of turn.
func grilledSalmon() effects.CardEffect {
	return effects.CardEffect{
		Name: "sear",
		Kind: effects.KindTrigger,
		Trigger: &effects.TriggerSpec{
			Event:  rules.EventSummon,
			Phase:  rules.After,
			Filter: func(ctx *effects.Context) bool { return ctx.IsSelf() },
		},
		Activate: func(ctx *effects.Context) effects.Resolution {
			if ctx.Step == 0 {
				return ctx.Ask(1, choice.YesNo(ctx.Player, "Sear your opponent for 2?"))
			}
			if ctx.Chose(choice.Yes) {
				ctx.Game.DamagePlayer(ctx.Opponent(), 2, ctx.Card)
				ctx.Game.Grant(ctx.Card, ctx.Card, cards.Buff{
					Type: cards.BuffPower, Op: cards.OpAdd, Amount: -1, Resets: cards.ResetEndTurn,
				})
			}
			return ctx.Done()
		},
	}
}

// Beef Stew: once per match, move to another free serve column.
func beefStew() effects.CardEffect {
	freeColumns := func(ctx *effects.Context) []string {
		var out []string
		for _, col := range ctx.Game.Board().FreeColumns(ctx.Player, cards.LocationServeZone) {
			out = append(out, choice.ZoneCandidate(cards.LocationServeZone, col))
		}
		return out
	}
	return effects.CardEffect{
		Name:  "simmer",
		Kind:  effects.KindActive,
		Limit: cards.LimitOncePerMatch,
		Condition: func(ctx *effects.Context) bool {
			return ctx.Card.Location == cards.LocationServeZone && len(freeColumns(ctx)) > 0
		},
		Activate: func(ctx *effects.Context) effects.Resolution {
			if ctx.Step == 0 {
				return ctx.Ask(1, choice.Zone(ctx.Player, "Move the stew to", freeColumns(ctx)))
			}
			loc, col, err := choice.ParseZone(ctx.Choice[0])
			if err == nil {
				_ = ctx.Game.Move([]string{ctx.Card.ID}, loc, ctx.Player, col, cards.InsertBottom)
			}
			return ctx.Done()
		},
	}
}

// Fruit Tart: when summoned, your other dishes on the field get +1 power for
// as long as the tart stays on the field.
func fruitTartAura() effects.CardEffect {
	return effects.CardEffect{
		Name: "sweet_finish",
		Kind: effects.KindTrigger,
		Trigger: &effects.TriggerSpec{
			Event:  rules.EventSummon,
			Phase:  rules.After,
			Filter: func(ctx *effects.Context) bool { return ctx.IsSelf() },
		},
		Activate: func(ctx *effects.Context) effects.Resolution {
			others := ctx.Own(cards.LocationField, func(c *cards.Card) bool {
				return c.ID != ctx.Card.ID && c.Props.Type.HasAny(cards.TypeDish)
			})
			for _, c := range others {
				ctx.Game.Grant(ctx.Card, c, cards.Buff{
					Type: cards.BuffPower, Op: cards.OpAdd, Amount: 1, Resets: cards.ResetSourceRemoved,
				})
			}
			return ctx.Done()
		},
	}
}

// Fruit Tart: before it is attacked it gains 1 shield until end of turn.
func fruitTartGuard() effects.CardEffect {
	return effects.CardEffect{
		Name: "crust",
		Kind: effects.KindTrigger,
		Trigger: &effects.TriggerSpec{
			Event:  rules.EventAttack,
			Phase:  rules.Before,
			Filter: func(ctx *effects.Context) bool { return ctx.IsSelf() && ctx.Card.OnField() },
		},
		Activate: func(ctx *effects.Context) effects.Resolution {
			ctx.Game.Grant(ctx.Card, ctx.Card, cards.Buff{
				Type: cards.BuffShield, Op: cards.OpAdd, Amount: 1, Resets: cards.ResetEndTurn | cards.ResetTargetRemoved,
			})
			return ctx.Done()
		},
	}
}

// Kitchen Rush: from hand, either draw 2 or recover 3 HP, then trash it.
func kitchenRush() effects.CardEffect {
	return effects.CardEffect{
		Name: "kitchen_rush",
		Kind: effects.KindActive,
		Condition: func(ctx *effects.Context) bool {
			return ctx.Card.Location == cards.LocationHand
		},
		Activate: func(ctx *effects.Context) effects.Resolution {
			if ctx.Step == 0 {
				if err := ctx.Game.Move([]string{ctx.Card.ID}, cards.LocationTrash, ctx.Player, 0, cards.InsertTop); err != nil {
					return ctx.Done()
				}
				return ctx.Ask(1, choice.Option(ctx.Player, "Restock or rest?", OptionRestock, OptionRest))
			}
			if ctx.Chose(OptionRestock) {
				_, _ = ctx.Game.Draw(ctx.Player, 2)
			} else {
				ctx.Game.HealPlayer(ctx.Player, 3, ctx.Card)
			}
			return ctx.Done()
		},
	}
}
