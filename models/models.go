// models/models.go
package models

import (
	"time"
)

// RoundRecord 对局记录
type RoundRecord struct {
	RoundID   string         `json:"round_id"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
	Duration  time.Duration  `json:"duration"`
	Won       bool           `json:"won"`
	TeamScore int            `json:"team_score"`
	Players   []PlayerResult `json:"players"`
}

// PlayerResult 玩家信息（用于对局记录）
type PlayerResult struct {
	ClientID  uint64 `json:"client_id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Assists   int    `json:"assists"`
	Penalties int    `json:"penalties"`
}

// Outcome is "won" or "lost".
func (r RoundRecord) Outcome() string {
	if r.Won {
		return "won"
	}
	return "lost"
}
