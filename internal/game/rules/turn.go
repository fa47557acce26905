package rules

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a match.
type Status int

const (
	StatusInit Status = iota
	StatusRunning
	StatusEnded
)

var statusNames = map[Status]string{
	StatusInit:    "init",
	StatusRunning: "running",
	StatusEnded:   "ended",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS_%d", int(s))
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Phase is the part of a turn currently being played.
type Phase int

const (
	// PhaseSetup covers setting ingredients, cooking and activating abilities.
	PhaseSetup Phase = iota
	// PhaseStrike covers attacks.
	PhaseStrike
)

var phaseNames = map[Phase]string{
	PhaseSetup:  "setup",
	PhaseStrike: "strike",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// TurnManager tracks match status, the turn player and the current phase.
// Illegal transitions are programming errors and are reported wrapped in
// ErrIntegrity.
type TurnManager struct {
	status     Status
	phase      Phase
	turnCount  int
	turnPlayer string
}

// NewTurnManager creates a manager for a match that has not started.
func NewTurnManager() *TurnManager {
	return &TurnManager{status: StatusInit}
}

// RestoreTurnManager rebuilds a manager from recorded values.
func RestoreTurnManager(status Status, phase Phase, turnCount int, turnPlayer string) *TurnManager {
	return &TurnManager{status: status, phase: phase, turnCount: turnCount, turnPlayer: turnPlayer}
}

func (tm *TurnManager) Status() Status     { return tm.status }
func (tm *TurnManager) Phase() Phase       { return tm.phase }
func (tm *TurnManager) TurnCount() int     { return tm.turnCount }
func (tm *TurnManager) TurnPlayer() string { return tm.turnPlayer }

// Running reports whether the match is in progress.
func (tm *TurnManager) Running() bool { return tm.status == StatusRunning }

// Start begins turn 1 for first.
func (tm *TurnManager) Start(first string) error {
	first = strings.TrimSpace(first)
	if tm.status != StatusInit {
		return fmt.Errorf("%w: start from %s", ErrIntegrity, tm.status)
	}
	if first == "" {
		return fmt.Errorf("%w: start without a player", ErrIntegrity)
	}
	tm.status = StatusRunning
	tm.phase = PhaseSetup
	tm.turnCount = 1
	tm.turnPlayer = first
	return nil
}

// EnterStrike moves from setup to strike.
func (tm *TurnManager) EnterStrike() error {
	if tm.status != StatusRunning || tm.phase != PhaseSetup {
		return fmt.Errorf("%w: strike from %s/%s", ErrIntegrity, tm.status, tm.phase)
	}
	tm.phase = PhaseStrike
	return nil
}

// EndTurn hands the turn to next and returns to setup.
func (tm *TurnManager) EndTurn(next string) error {
	next = strings.TrimSpace(next)
	if tm.status != StatusRunning {
		return fmt.Errorf("%w: end turn while %s", ErrIntegrity, tm.status)
	}
	if next == "" {
		return fmt.Errorf("%w: end turn without next player", ErrIntegrity)
	}
	tm.turnCount++
	tm.turnPlayer = next
	tm.phase = PhaseSetup
	return nil
}

// End marks the match as finished. Ending twice is a no-op.
func (tm *TurnManager) End() {
	tm.status = StatusEnded
}
