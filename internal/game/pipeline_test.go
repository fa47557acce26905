package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookduel/duel-server-go/internal/catalog"
	"github.com/cookduel/duel-server-go/internal/game/cards"
	"github.com/cookduel/duel-server-go/internal/game/choice"
	"github.com/cookduel/duel-server-go/internal/game/recipe"
	"github.com/cookduel/duel-server-go/internal/game/rules"
)

// fingerprint is the checksum of everything but the tick counter.
func fingerprint(st *State) string {
	tick := st.Tick
	st.Tick = 0
	defer func() { st.Tick = tick }()
	return Checksum(st)
}

func TestRefusedActionsLeaveStateUntouched(t *testing.T) {
	d := newDuel(t, DefaultRules(), map[string]catalog.Deck{
		alice: {Main: repeat(101, 8), Recipes: []int{201}},
	})
	beef := d.inHand(alice, 101)
	bobCard := d.cardsOf(bob, cards.LocationHand, 0)[0]

	cases := []struct {
		name   string
		sender string
		op     OpCode
		raw    string
		want   string
	}{
		{"not your turn", bob, OpGoToStrikePhase, "", rules.ReasonNotYourTurn},
		{"attack in setup", alice, OpAttack, `{"attacker_id":"` + beef.ID + `"}`, rules.ReasonWrongPhase},
		{"foreign card", alice, OpSetIngredient, `{"card_id":"` + bobCard.ID + `","column":0}`, rules.ReasonInvalidCard},
		{"bad column", alice, OpSetIngredient, `{"card_id":"` + beef.ID + `","column":7}`, rules.ReasonInvalidColumn},
		{"unknown player", "mallory", OpEndTurn, "", rules.ReasonUnknownPlayer},
		{"unknown opcode", alice, OpCode(99), "", rules.ReasonUnknownOpCode},
		{"wrong field type", alice, OpSetIngredient, `{"card_id":1}`, rules.ReasonMalformedPayload},
		{"unknown field", alice, OpSetIngredient, `{"card_id":"x","column":0,"extra":true}`, rules.ReasonMalformedPayload},
		{"trailing data", alice, OpEndTurn, `{}{}`, rules.ReasonMalformedPayload},
		{"no pending choice", alice, OpRespondChoice, `{"request_id":"r","selection":[]}`, rules.ReasonInvalidChoice},
		{"no such effect", alice, OpActivate, `{"card_id":"` + beef.ID + `","effect":0}`, rules.ReasonNoSuchEffect},
		{"materials do not fit", alice, OpCookSummon,
			`{"dish_id":"` + d.recipeCard(alice, 201).ID + `","materials":["` + beef.ID + `","` + d.cardsOf(alice, cards.LocationHand, 101)[1].ID + `"],"column":0}`,
			rules.ReasonInvalidMaterials},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := fingerprint(d.st)
			packets := d.tick(Message{SenderID: tc.sender, OpCode: tc.op, Payload: []byte(tc.raw)})
			assert.Equal(t, tc.want, errorReason(packets, tc.sender))
			assert.Equal(t, before, fingerprint(d.st))
			for _, p := range packets {
				if p.Type == PacketError {
					assert.Equal(t, tc.sender, p.Recipient, "errors go to the sender only")
				}
			}
		})
	}
}

func TestSetIngredientLimits(t *testing.T) {
	r := DefaultRules()
	r.IngredientsPerTurn = 2
	d := newDuel(t, r, map[string]catalog.Deck{
		alice: {Main: repeat(103, 8), Recipes: []int{203}},
	})
	carrots := d.cardsOf(alice, cards.LocationHand, 103)
	require.GreaterOrEqual(t, len(carrots), 3)

	packets := d.mustAct(alice, OpSetIngredient, SetIngredientAction{CardID: carrots[0].ID, Column: 1})
	assert.Equal(t, cards.LocationStandbyZone, carrots[0].Location)
	assert.Equal(t, 1, carrots[0].Column)
	sets := packetsOf(packets, PacketSet, bob)
	require.Len(t, sets, 1)
	assert.NotNil(t, sets[0].Data.(SetData).Card.Props, "the field is public")

	packets = d.act(alice, OpSetIngredient, SetIngredientAction{CardID: carrots[1].ID, Column: 1})
	assert.Equal(t, rules.ReasonColumnOccupied, errorReason(packets, alice))

	d.mustAct(alice, OpSetIngredient, SetIngredientAction{CardID: carrots[1].ID, Column: 2})
	packets = d.act(alice, OpSetIngredient, SetIngredientAction{CardID: carrots[2].ID, Column: 0})
	assert.Equal(t, rules.ReasonSetLimitReached, errorReason(packets, alice))

	d.endTurn(alice)
	d.endTurn(bob)
	d.mustAct(alice, OpSetIngredient, SetIngredientAction{CardID: carrots[2].ID, Column: 0})
	d.requireConsistent()
}

func TestCookSummonConsumesMaterials(t *testing.T) {
	d := newDuel(t, DefaultRules(), map[string]catalog.Deck{
		alice: {Main: repeat(101, 8), Recipes: []int{201}},
	})
	skewer := d.recipeCard(alice, 201)
	beef := d.inHand(alice, 101)

	packets := d.mustAct(alice, OpCookSummon, CookSummonAction{DishID: skewer.ID, Materials: []string{beef.ID}, Column: 2})
	assert.Equal(t, cards.LocationServeZone, skewer.Location)
	assert.Equal(t, 2, skewer.Column)
	assert.Equal(t, cards.LocationTrash, beef.Location)

	summons := packetsOf(packets, PacketSummon, bob)
	require.Len(t, summons, 1)
	assert.Equal(t, []string{beef.ID}, summons[0].Data.(SummonData).Materials)
	d.requireConsistent()
}

func TestCookSummonOntoConsumedMaterial(t *testing.T) {
	m := testCatalog(t)
	m.AddCard(cards.Properties{Code: 297, Type: cards.TypeDish, Class: cards.ClassMeat, Grade: 3, Power: 5, Health: 5})
	m.AddRecipe(&recipe.Recipe{Code: 297, Slots: []recipe.Slot{
		{Name: "leftovers", Min: 1, Max: 1, Condition: recipe.CheckType(cards.TypeDish)},
	}})
	m.SetDeck(alice, catalog.Deck{Main: repeat(101, 8), Recipes: []int{201, 201, 297}})
	r := DefaultRules()
	r.BoardColumns = 1
	d := startDuel(t, m, r)

	skewers := d.cardsOf(alice, cards.LocationRecipeDeck, 201)
	require.Len(t, skewers, 2)
	first := d.inHand(alice, 101)
	d.mustAct(alice, OpCookSummon, CookSummonAction{DishID: skewers[0].ID, Materials: []string{first.ID}, Column: 0})

	packets := d.act(alice, OpCookSummon, CookSummonAction{DishID: skewers[1].ID, Materials: []string{d.inHand(alice, 101).ID}, Column: 0})
	assert.Equal(t, rules.ReasonColumnOccupied, errorReason(packets, alice))

	leftovers := d.recipeCard(alice, 297)
	d.mustAct(alice, OpCookSummon, CookSummonAction{DishID: leftovers.ID, Materials: []string{skewers[0].ID}, Column: 0})
	assert.Equal(t, cards.LocationServeZone, leftovers.Location)
	assert.Equal(t, cards.LocationTrash, skewers[0].Location)
	d.requireConsistent()
}

func TestCookSummonWithoutRecipe(t *testing.T) {
	m := testCatalog(t)
	m.AddCard(cards.Properties{Code: 299, Type: cards.TypeDish, Class: cards.ClassMeat, Grade: 1, Power: 1, Health: 1})
	m.SetDeck(alice, catalog.Deck{Main: repeat(101, 8), Recipes: []int{299}})
	d := startDuel(t, m, DefaultRules())

	dish := d.recipeCard(alice, 299)
	packets := d.act(alice, OpCookSummon, CookSummonAction{DishID: dish.ID, Materials: []string{d.inHand(alice, 101).ID}, Column: 0})
	assert.Equal(t, rules.ReasonNoRecipe, errorReason(packets, alice))
	assert.Equal(t, cards.LocationRecipeDeck, dish.Location)
}

// TestChoiceRoundTrip covers a card choice: too many cards are refused and
// re-prompted, one card is accepted and the buff is applied once.
func TestChoiceRoundTrip(t *testing.T) {
	r := DefaultRules()
	r.IngredientsPerTurn = 3
	d := newDuel(t, r, map[string]catalog.Deck{
		alice: {Main: repeat(105, 8), Recipes: []int{203}},
	})
	butters := d.cardsOf(alice, cards.LocationHand, 105)
	for col := 0; col < 3; col++ {
		d.mustAct(alice, OpSetIngredient, SetIngredientAction{CardID: butters[col].ID, Column: col})
	}

	packets := d.mustAct(alice, OpActivate, ActivateAction{CardID: butters[0].ID, Effect: 0})
	pause := d.st.Pause
	require.NotNil(t, pause)
	assert.Equal(t, []string{alice}, pause.Players)
	assert.Equal(t, choice.KindCards, pause.Request.Kind)
	assert.ElementsMatch(t, []string{butters[0].ID, butters[1].ID, butters[2].ID}, pause.Request.Candidates)

	toAlice := packetsOf(packets, PacketRequestChoice, alice)
	require.Len(t, toAlice, 1)
	assert.Len(t, toAlice[0].Data.(*choice.Request).Candidates, 3)
	toBob := packetsOf(packets, PacketRequestChoice, bob)
	require.Len(t, toBob, 1)
	assert.Empty(t, toBob[0].Data.(*choice.Request).Candidates, "only the chooser sees the candidates")

	before := fingerprint(d.st)
	packets = d.act(alice, OpRespondChoice, RespondChoiceAction{
		RequestID: pause.Request.ID, Selection: []string{butters[1].ID, butters[2].ID},
	})
	assert.Equal(t, rules.ReasonInvalidChoice, errorReason(packets, alice))
	assert.Len(t, packetsOf(packets, PacketRequestChoice, alice), 1, "the prompt is re-sent")
	assert.Same(t, pause, d.st.Pause)
	assert.Equal(t, before, fingerprint(d.st))

	packets = d.act(alice, OpRespondChoice, RespondChoiceAction{RequestID: "stale", Selection: []string{butters[1].ID}})
	assert.Equal(t, rules.ReasonInvalidChoice, errorReason(packets, alice))

	d.mustAct(alice, OpRespondChoice, RespondChoiceAction{RequestID: pause.Request.ID, Selection: []string{butters[1].ID}})
	assert.Nil(t, d.st.Pause)
	assert.Equal(t, 2, butters[1].Props.Power)
	assert.Len(t, butters[1].Buffs, 1)
	assert.Equal(t, 0, butters[0].Props.Power)
	assert.Equal(t, 0, butters[2].Props.Power)

	packets = d.act(alice, OpActivate, ActivateAction{CardID: butters[0].ID, Effect: 0})
	assert.Equal(t, rules.ReasonLimitReached, errorReason(packets, alice))

	d.endTurn(alice)
	assert.Equal(t, 0, butters[1].Props.Power, "end of turn sweeps the buff")
	assert.Empty(t, butters[1].Buffs)
}

func TestChoiceFromOtherPlayerIsRefused(t *testing.T) {
	d := newDuel(t, DefaultRules(), map[string]catalog.Deck{
		alice: {Main: repeat(102, 8), Recipes: []int{202}},
	})
	salmon := d.recipeCard(alice, 202)
	d.mustAct(alice, OpCookSummon, CookSummonAction{DishID: salmon.ID, Materials: []string{d.inHand(alice, 102).ID}, Column: 0})

	pause := d.st.Pause
	require.NotNil(t, pause, "the sear trigger asks alice")
	assert.Equal(t, choice.KindYesNo, pause.Request.Kind)

	packets := d.act(alice, OpGoToStrikePhase, nil)
	assert.Equal(t, rules.ReasonResolutionPending, errorReason(packets, alice))

	packets = d.act(bob, OpRespondChoice, RespondChoiceAction{RequestID: pause.Request.ID, Selection: []string{choice.Yes}})
	assert.Equal(t, rules.ReasonNotChoosingPlayer, errorReason(packets, bob))
	assert.Len(t, packetsOf(packets, PacketRequestChoice, alice), 1)
	assert.NotNil(t, d.st.Pause)

	packets = d.act(bob, OpMessage, MessageAction{Text: "take your time"})
	assert.Len(t, packetsOf(packets, PacketMessage, alice), 1, "chat works while paused")

	packets = d.mustAct(alice, OpRespondChoice, RespondChoiceAction{RequestID: pause.Request.ID, Selection: []string{choice.Yes}})
	assert.Nil(t, d.st.Pause)
	assert.Equal(t, 18, d.st.Players[bob].HP)
	assert.Equal(t, 2, salmon.Props.Power)

	hp := packetsOf(packets, PacketUpdatePlayerHP, alice)
	require.Len(t, hp, 1)
	assert.Equal(t, HPData{Player: bob, HP: 18}, hp[0].Data)
}

func TestAvailableActionsDuringPause(t *testing.T) {
	d := newDuel(t, DefaultRules(), map[string]catalog.Deck{
		alice: {Main: repeat(301, 8), Recipes: []int{201}},
	})
	rush := d.inHand(alice, 301)

	avail := d.engine.Available(d.ctx, d.st, alice)
	assert.Contains(t, avail.Activatable, ActivationView{CardID: rush.ID, Effect: 0})
	assert.Empty(t, avail.Settable, "kitchen rush is no ingredient")

	d.mustAct(alice, OpActivate, ActivateAction{CardID: rush.ID, Effect: 0})
	require.NotNil(t, d.st.Pause)
	avail = d.engine.Available(d.ctx, d.st, alice)
	assert.False(t, avail.CanEndTurn)
	assert.Empty(t, avail.Activatable)
}
