package game

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cookduel/duel-server-go/internal/game/cards"
	"github.com/cookduel/duel-server-go/internal/game/choice"
	"github.com/cookduel/duel-server-go/internal/game/rules"
)

// PacketType names an outbound packet.
type PacketType string

const (
	PacketUpdateCard             PacketType = "update_card"
	PacketUpdateState            PacketType = "update_state"
	PacketChangeTurn             PacketType = "change_turn"
	PacketSet                    PacketType = "set"
	PacketSummon                 PacketType = "summon"
	PacketAttack                 PacketType = "attack"
	PacketRequestChoice          PacketType = "request_choice"
	PacketRespondChoice          PacketType = "respond_choice"
	PacketUpdatePlayerHP         PacketType = "update_player_hp"
	PacketUpdateAvailableActions PacketType = "update_available_actions"
	PacketEndMatch               PacketType = "end_match"
	PacketError                  PacketType = "error"
	PacketMessage                PacketType = "message"
)

// Packet is one message for one player. Data is already localized for the
// recipient.
type Packet struct {
	Recipient string     `json:"-"`
	Type      PacketType `json:"type"`
	Data      any        `json:"data"`
}

// Encode renders the packet as sent on the wire.
func (p Packet) Encode() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s packet: %w", p.Type, err)
	}
	return data, nil
}

// Dispatcher delivers packets produced by a tick to connected players.
type Dispatcher interface {
	Dispatch(ctx context.Context, matchID string, packets []Packet) error
}

// CardView is a card as one player may see it. Hidden cards carry only their
// ID and zone.
type CardView struct {
	ID        string            `json:"id"`
	Zone      cards.Location    `json:"zone"`
	Owner     string            `json:"owner,omitempty"`
	Column    *int              `json:"column,omitempty"`
	Props     *cards.Properties `json:"properties,omitempty"`
	Damage    int               `json:"damage,omitempty"`
	Attacks   int               `json:"attacks,omitempty"`
	Abilities []cards.Ability   `json:"abilities,omitempty"`
	Buffs     int               `json:"buffs,omitempty"`
}

// Hidden reports whether viewer may not see the card's face. The main deck
// is hidden from everyone; hand and recipe deck from the opponent.
func Hidden(c *cards.Card, viewer string) bool {
	if c.Location.HasAny(cards.LocationMainDeck) {
		return true
	}
	return c.Location.HasAny(cards.LocationPrivate) && c.Owner != viewer
}

// ViewCard renders c for viewer.
func ViewCard(c *cards.Card, viewer string) CardView {
	if Hidden(c, viewer) {
		return CardView{ID: c.ID, Zone: c.Location}
	}
	props := c.Props
	v := CardView{
		ID:        c.ID,
		Zone:      c.Location,
		Owner:     c.Owner,
		Props:     &props,
		Damage:    c.Damage,
		Attacks:   c.Attacks,
		Abilities: append([]cards.Ability(nil), c.Abilities...),
		Buffs:     len(c.Buffs),
	}
	if c.OnField() {
		col := c.Column
		v.Column = &col
	}
	return v
}

// PlayerView is the public part of a player's data.
type PlayerView struct {
	ID         string `json:"id"`
	HP         int    `json:"hp"`
	Connected  bool   `json:"connected"`
	Ready      bool   `json:"ready"`
	HandCount  int    `json:"hand_count"`
	DeckCount  int    `json:"deck_count"`
	MatchTimeS int64  `json:"match_time_s"`
}

// StateView is the full-state sync sent on start and on ready.
type StateView struct {
	MatchID    string          `json:"match_id"`
	Status     rules.Status    `json:"status"`
	TurnPlayer string          `json:"turn_player,omitempty"`
	TurnCount  int             `json:"turn_count"`
	Phase      rules.Phase     `json:"phase"`
	Players    []PlayerView    `json:"players"`
	Cards      []CardView      `json:"cards"`
	Pause      *PauseView      `json:"pause,omitempty"`
	EndResult  *EndResult      `json:"end_result,omitempty"`
	Request    *choice.Request `json:"request,omitempty"`
}

// PauseView tells clients who the match is waiting for.
type PauseView struct {
	Reason  string   `json:"reason"`
	Players []string `json:"players"`
}

// ViewState renders the whole state for viewer.
func ViewState(st *State, viewer string) StateView {
	v := StateView{
		MatchID:    st.MatchID,
		Status:     st.Turn.Status(),
		TurnPlayer: st.Turn.TurnPlayer(),
		TurnCount:  st.Turn.TurnCount(),
		Phase:      st.Turn.Phase(),
		EndResult:  st.EndResult,
		Players:    make([]PlayerView, 0, len(st.Order)),
	}
	for _, id := range st.Order {
		p := st.Players[id]
		v.Players = append(v.Players, PlayerView{
			ID:         id,
			HP:         p.HP,
			Connected:  p.Connected,
			Ready:      p.Ready,
			HandCount:  st.Board.Count(id, cards.LocationHand),
			DeckCount:  st.Board.Count(id, cards.LocationMainDeck),
			MatchTimeS: int64(p.MatchTime.Seconds()),
		})
	}
	all := st.Board.All()
	v.Cards = make([]CardView, 0, len(all))
	for _, c := range all {
		if c.Location != cards.LocationNone {
			v.Cards = append(v.Cards, ViewCard(c, viewer))
		}
	}
	if st.Pause != nil {
		v.Pause = &PauseView{Reason: st.Pause.Reason, Players: append([]string(nil), st.Pause.Players...)}
		v.Request = viewRequest(st.Pause.Request, viewer)
	}
	return v
}

// viewRequest shows the full request to the choosing player and only its
// header to everyone else.
func viewRequest(req *choice.Request, viewer string) *choice.Request {
	if req == nil {
		return nil
	}
	if req.Player == viewer {
		out := *req
		out.Candidates = append([]string(nil), req.Candidates...)
		return &out
	}
	return &choice.Request{ID: req.ID, Player: req.Player, Kind: req.Kind, Min: req.Min, Max: req.Max}
}

type TurnData struct {
	TurnPlayer string      `json:"turn_player"`
	TurnCount  int         `json:"turn_count"`
	Phase      rules.Phase `json:"phase"`
}

type SetData struct {
	Player string   `json:"player"`
	Card   CardView `json:"card"`
	Column int      `json:"column"`
}

type SummonData struct {
	Player    string   `json:"player"`
	Card      CardView `json:"card"`
	Materials []string `json:"materials"`
	Column    int      `json:"column"`
}

type AttackData struct {
	Player       string `json:"player"`
	AttackerID   string `json:"attacker_id"`
	TargetID     string `json:"target_id,omitempty"`
	Damage       int    `json:"damage"`
	Destroyed    bool   `json:"destroyed"`
	PlayerDamage int    `json:"player_damage"`
}

type ChoiceResponseData struct {
	RequestID string   `json:"request_id"`
	Player    string   `json:"player"`
	Selection []string `json:"selection"`
}

type HPData struct {
	Player string `json:"player"`
	HP     int    `json:"hp"`
}

type ErrorData struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

type ChatData struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// ActivationView names one activatable ability.
type ActivationView struct {
	CardID string `json:"card_id"`
	Effect int    `json:"effect"`
}

// AvailableActions lists what a player can do right now.
type AvailableActions struct {
	Settable    []string         `json:"settable"`
	Cookable    []string         `json:"cookable"`
	Activatable []ActivationView `json:"activatable"`
	Attackers   []string         `json:"attackers"`
	CanStrike   bool             `json:"can_strike"`
	CanEndTurn  bool             `json:"can_end_turn"`
}

func (st *State) send(recipient string, t PacketType, data any) {
	st.outbox = append(st.outbox, Packet{Recipient: recipient, Type: t, Data: data})
}

// broadcast sends one packet per player, rendered by view.
func (st *State) broadcast(t PacketType, view func(viewer string) any) {
	for _, id := range st.Order {
		st.send(id, t, view(id))
	}
}

// Drain returns and clears the queued packets.
func (st *State) Drain() []Packet {
	out := st.outbox
	st.outbox = nil
	return out
}
