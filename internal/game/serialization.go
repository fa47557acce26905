package game

import (
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/cookduel/duel-server-go/internal/game/cards"
)

// Checksum hashes a canonical rendering of the state. Two matches fed the
// same seed, joins and messages at the same times produce the same sequence
// of checksums, which makes divergence between runs easy to locate.
func Checksum(st *State) string {
	h, _ := blake2b.New256(nil)
	writeCanonical(h, st)
	return hex.EncodeToString(h.Sum(nil))
}

func writeCanonical(w io.Writer, st *State) {
	fmt.Fprintf(w, "MATCH:%s|%d|%s|%s|%d|%s\n",
		st.MatchID, st.Tick, st.Turn.Status(), st.Turn.Phase(), st.Turn.TurnCount(), st.Turn.TurnPlayer())

	ids := make([]string, 0, len(st.Players))
	for id := range st.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := st.Players[id]
		fmt.Fprintf(w, "PLAYER:%s|%d|%t|%t|%t|%t|%d\n",
			id, p.HP, p.Connected, p.DeckedOut, p.Surrendered, p.TimedOut, p.MatchTime)
	}

	for _, key := range st.Board.ZoneKeys() {
		list, _ := st.Board.Cards(key.Owner, key.Location, key.Column)
		fmt.Fprintf(w, "ZONE:%s|%v\n", key, list)
	}

	all := st.Board.All()
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	for _, c := range all {
		p := c.Props
		fmt.Fprintf(w, "CARD:%s|%d|%d|%d|%d|%d|%d|%d|%d|%d\n",
			c.ID, c.Sequence, p.Grade, p.Power, p.Health, p.Shield, p.Pierce, c.Damage, c.Attacks, len(c.Buffs))
		for _, a := range c.Abilities {
			fmt.Fprintf(w, " ABILITY:%d|%d\n", a.Index, a.Used)
		}
		for _, b := range c.Buffs {
			fmt.Fprintf(w, " BUFF:%s|%s|%s|%s|%d|%d\n", b.ID, b.SourceID, b.Type, b.Op, b.Amount, b.Resets)
		}
	}

	if p := st.Pause; p != nil {
		requestID := ""
		if p.Request != nil {
			requestID = p.Request.ID
		}
		fmt.Fprintf(w, "PAUSE:%s|%v|%s|%d|%s\n", p.Reason, p.Players, requestID, p.Frame.Step, p.Frame.CardID)
	}
	fmt.Fprintf(w, "PENDING:%d\n", len(st.pending))
	if st.EndResult != nil {
		fmt.Fprintf(w, "END:%s|%v\n", st.EndResult.Reason, st.EndResult.Winners)
	}
}

// ZoneSnapshot lists a zone's cards, top first.
type ZoneSnapshot struct {
	Owner    string         `json:"owner"`
	Location cards.Location `json:"location"`
	Column   int            `json:"column"`
	Cards    []string       `json:"cards"`
}

// Snapshot is an unredacted copy of the state for operators and debugging.
type Snapshot struct {
	MatchID         string         `json:"match_id"`
	Tick            int64          `json:"tick"`
	Status          string         `json:"status"`
	Phase           string         `json:"phase"`
	TurnPlayer      string         `json:"turn_player"`
	TurnCount       int            `json:"turn_count"`
	Players         []PlayerData   `json:"players"`
	Zones           []ZoneSnapshot `json:"zones"`
	Cards           []*cards.Card  `json:"cards"`
	Pause           *PauseStatus   `json:"pause,omitempty"`
	EndResult       *EndResult     `json:"end_result,omitempty"`
	PendingTriggers int            `json:"pending_triggers"`
	Checksum        string         `json:"checksum"`
}

// TakeSnapshot deep-copies st. The result shares nothing with the live state
// and may be read from another goroutine.
func TakeSnapshot(st *State) *Snapshot {
	s := &Snapshot{
		MatchID:         st.MatchID,
		Tick:            st.Tick,
		Status:          st.Turn.Status().String(),
		Phase:           st.Turn.Phase().String(),
		TurnPlayer:      st.Turn.TurnPlayer(),
		TurnCount:       st.Turn.TurnCount(),
		PendingTriggers: len(st.pending),
		Checksum:        Checksum(st),
	}
	for _, id := range st.Order {
		s.Players = append(s.Players, *st.Players[id])
	}
	for _, key := range st.Board.ZoneKeys() {
		list, _ := st.Board.Cards(key.Owner, key.Location, key.Column)
		s.Zones = append(s.Zones, ZoneSnapshot{Owner: key.Owner, Location: key.Location, Column: key.Column, Cards: list})
	}
	for _, c := range st.Board.All() {
		s.Cards = append(s.Cards, c.Clone())
	}
	s.Pause = st.Pause.clone()
	if st.EndResult != nil {
		end := *st.EndResult
		end.Winners = slices.Clone(end.Winners)
		s.EndResult = &end
	}
	return s
}
