package game

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/cookduel/duel-server-go/internal/game/rules"
)

// OpCode selects the action an inbound message carries.
type OpCode int

const (
	OpMessage OpCode = iota + 1
	OpSetIngredient
	OpCookSummon
	OpActivate
	OpGoToStrikePhase
	OpAttack
	OpEndTurn
	OpRespondChoice
	OpSurrender
	OpReady
)

var opNames = map[OpCode]string{
	OpMessage:         "message",
	OpSetIngredient:   "set_ingredient",
	OpCookSummon:      "cook_summon",
	OpActivate:        "activate",
	OpGoToStrikePhase: "go_to_strike_phase",
	OpAttack:          "attack",
	OpEndTurn:         "end_turn",
	OpRespondChoice:   "respond_choice",
	OpSurrender:       "surrender",
	OpReady:           "ready",
}

func (op OpCode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("opcode(%d)", int(op))
}

// Message is one inbound player message as queued by the host.
type Message struct {
	SenderID   string    `json:"sender_id"`
	OpCode     OpCode    `json:"op_code"`
	Payload    []byte    `json:"payload,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Action is a decoded, schema-checked player action.
type Action interface {
	OpCode() OpCode
	Validate() error
}

// MaxMessageLength bounds chat messages in bytes.
const MaxMessageLength = 512

type MessageAction struct {
	Text string `json:"text"`
}

type SetIngredientAction struct {
	CardID string `json:"card_id"`
	Column int    `json:"column"`
}

type CookSummonAction struct {
	DishID    string   `json:"dish_id"`
	Materials []string `json:"materials"`
	Column    int      `json:"column"`
}

type ActivateAction struct {
	CardID string `json:"card_id"`
	Effect int    `json:"effect"`
}

type GoToStrikeAction struct{}

// AttackAction attacks a card, or the opponent directly when TargetID is empty.
type AttackAction struct {
	AttackerID string `json:"attacker_id"`
	TargetID   string `json:"target_id,omitempty"`
}

type EndTurnAction struct{}

type RespondChoiceAction struct {
	RequestID string   `json:"request_id"`
	Selection []string `json:"selection"`
}

type SurrenderAction struct{}

type ReadyAction struct{}

func (*MessageAction) OpCode() OpCode       { return OpMessage }
func (*SetIngredientAction) OpCode() OpCode { return OpSetIngredient }
func (*CookSummonAction) OpCode() OpCode    { return OpCookSummon }
func (*ActivateAction) OpCode() OpCode      { return OpActivate }
func (*GoToStrikeAction) OpCode() OpCode    { return OpGoToStrikePhase }
func (*AttackAction) OpCode() OpCode        { return OpAttack }
func (*EndTurnAction) OpCode() OpCode       { return OpEndTurn }
func (*RespondChoiceAction) OpCode() OpCode { return OpRespondChoice }
func (*SurrenderAction) OpCode() OpCode     { return OpSurrender }
func (*ReadyAction) OpCode() OpCode         { return OpReady }

func (a *MessageAction) Validate() error {
	switch {
	case a.Text == "":
		return fmt.Errorf("text is required")
	case len(a.Text) > MaxMessageLength:
		return fmt.Errorf("text longer than %d bytes", MaxMessageLength)
	case !utf8.ValidString(a.Text):
		return fmt.Errorf("text is not valid utf-8")
	}
	return nil
}

func (a *SetIngredientAction) Validate() error {
	if a.CardID == "" {
		return fmt.Errorf("card_id is required")
	}
	return nil
}

func (a *CookSummonAction) Validate() error {
	if a.DishID == "" {
		return fmt.Errorf("dish_id is required")
	}
	if len(a.Materials) == 0 {
		return fmt.Errorf("materials are required")
	}
	for _, id := range a.Materials {
		if id == "" {
			return fmt.Errorf("empty material id")
		}
	}
	return nil
}

func (a *ActivateAction) Validate() error {
	if a.CardID == "" {
		return fmt.Errorf("card_id is required")
	}
	if a.Effect < 0 {
		return fmt.Errorf("effect must not be negative")
	}
	return nil
}

func (a *AttackAction) Validate() error {
	if a.AttackerID == "" {
		return fmt.Errorf("attacker_id is required")
	}
	return nil
}

func (a *RespondChoiceAction) Validate() error {
	if a.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}
	if a.Selection == nil {
		return fmt.Errorf("selection is required")
	}
	return nil
}

func (*GoToStrikeAction) Validate() error { return nil }
func (*EndTurnAction) Validate() error    { return nil }
func (*SurrenderAction) Validate() error  { return nil }
func (*ReadyAction) Validate() error      { return nil }

func newAction(op OpCode) (Action, bool) {
	switch op {
	case OpMessage:
		return &MessageAction{}, true
	case OpSetIngredient:
		return &SetIngredientAction{}, true
	case OpCookSummon:
		return &CookSummonAction{}, true
	case OpActivate:
		return &ActivateAction{}, true
	case OpGoToStrikePhase:
		return &GoToStrikeAction{}, true
	case OpAttack:
		return &AttackAction{}, true
	case OpEndTurn:
		return &EndTurnAction{}, true
	case OpRespondChoice:
		return &RespondChoiceAction{}, true
	case OpSurrender:
		return &SurrenderAction{}, true
	case OpReady:
		return &ReadyAction{}, true
	default:
		return nil, false
	}
}

// DecodeAction turns a payload into the action variant selected by op.
// Unknown fields, trailing data and failed validation are all rejected with
// MALFORMED_PAYLOAD; an unknown op with UNKNOWN_OPCODE. An empty payload is
// accepted as "{}".
func DecodeAction(op OpCode, payload []byte) (Action, error) {
	action, ok := newAction(op)
	if !ok {
		return nil, rules.Reject(rules.ReasonUnknownOpCode, "%s", op)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(action); err != nil {
		return nil, rules.Reject(rules.ReasonMalformedPayload, "%s: %v", op, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, rules.Reject(rules.ReasonMalformedPayload, "%s: trailing data", op)
	}
	if err := action.Validate(); err != nil {
		return nil, rules.Reject(rules.ReasonMalformedPayload, "%s: %v", op, err)
	}
	return action, nil
}
