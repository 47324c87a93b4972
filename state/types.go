package state

import (
	"time"

	"github.com/wfunc/herdparty/replicated"
	"github.com/wfunc/herdparty/score"
)

type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhasePlaying Phase = "playing"
	PhaseResults Phase = "results"
)

// Signals sent to clients on phase changes.
const (
	SignalResetReady    = "reset_ready"
	SignalShowResults   = "show_results"
	SignalReturnToLobby = "return_to_lobby"
)

type ActionType string

const (
	ActionSetReady  ActionType = "set_ready"
	ActionPlayAgain ActionType = "play_again"
)

// Action is a phase-dependent request from a client.
type Action struct {
	Type  ActionType
	Ready bool
}

// RosterEntry is one lobby row. Every field takes part in equality, so a rename or a ready toggle is
// published as a change.
type RosterEntry struct {
	ID    replicated.ClientID `json:"id"`
	Name  string              `json:"name"`
	Ready bool                `json:"ready"`
}

// RoundSummary describes a finished round.
type RoundSummary struct {
	RoundID   string        `json:"round_id"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration"`
	Won       bool          `json:"won"`
	TeamScore int           `json:"team_score"`
	Players   []score.Stats `json:"players"`
}
