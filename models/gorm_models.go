// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// GormRound 对局模型
type GormRound struct {
	gorm.Model
	RoundID    string    `gorm:"uniqueIndex;not null"`
	StartedAt  time.Time `gorm:"not null"`
	EndedAt    time.Time `gorm:"index;not null"`
	DurationMs int64     `gorm:"default:0"`
	Won        bool      `gorm:"default:false"`
	TeamScore  int       `gorm:"default:0"`
	Players    []GormRoundPlayer
}

// GormRoundPlayer 对局玩家模型
type GormRoundPlayer struct {
	gorm.Model
	GormRoundID uint   `gorm:"index;not null"`
	ClientID    uint64 `gorm:"not null"`
	Name        string `gorm:"not null"`
	Score       int    `gorm:"default:0"`
	Assists     int    `gorm:"default:0"`
	Penalties   int    `gorm:"default:0"`
}

func NewGormRound(r RoundRecord) GormRound {
	g := GormRound{
		RoundID:    r.RoundID,
		StartedAt:  r.StartedAt,
		EndedAt:    r.EndedAt,
		DurationMs: r.Duration.Milliseconds(),
		Won:        r.Won,
		TeamScore:  r.TeamScore,
		Players:    make([]GormRoundPlayer, 0, len(r.Players)),
	}
	for _, p := range r.Players {
		g.Players = append(g.Players, GormRoundPlayer{
			ClientID:  p.ClientID,
			Name:      p.Name,
			Score:     p.Score,
			Assists:   p.Assists,
			Penalties: p.Penalties,
		})
	}
	return g
}

func (g GormRound) Record() RoundRecord {
	r := RoundRecord{
		RoundID:   g.RoundID,
		StartedAt: g.StartedAt,
		EndedAt:   g.EndedAt,
		Duration:  time.Duration(g.DurationMs) * time.Millisecond,
		Won:       g.Won,
		TeamScore: g.TeamScore,
		Players:   make([]PlayerResult, 0, len(g.Players)),
	}
	for _, p := range g.Players {
		r.Players = append(r.Players, PlayerResult{
			ClientID:  p.ClientID,
			Name:      p.Name,
			Score:     p.Score,
			Assists:   p.Assists,
			Penalties: p.Penalties,
		})
	}
	return r
}
