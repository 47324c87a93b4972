// Package score aggregates the team score and per-player progress.
package score

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/wfunc/herdparty/replicated"
)

// DefaultName is the display name used until a player reports one.
func DefaultName(id replicated.ClientID) string {
	return fmt.Sprintf("Player %d", id)
}

// Player is the replicated progress record of one connected participant.
type Player struct {
	ID        replicated.ClientID
	Name      *replicated.Value[string]
	Score     *replicated.Value[int]
	Assists   *replicated.Value[int]
	Penalties *replicated.Value[int]

	// LastPenalty is server-local bookkeeping and is not replicated.
	LastPenalty time.Time
}

// DisplayName returns the player's name, or the default when it is blank.
func (p *Player) DisplayName() string {
	if n := strings.TrimSpace(p.Name.Get()); n != "" {
		return n
	}
	return DefaultName(p.ID)
}

// Stats is a plain copy of a player's numbers.
type Stats struct {
	ID        replicated.ClientID `json:"id"`
	Name      string              `json:"name"`
	Score     int                 `json:"score"`
	Assists   int                 `json:"assists"`
	Penalties int                 `json:"penalties"`
}

type Board struct {
	store   *replicated.Store
	team    *replicated.Value[int]
	players map[replicated.ClientID]*Player
}

func NewBoard(store *replicated.Store) *Board {
	return &Board{
		store:   store,
		team:    replicated.NewValue(store, "team_score", 0),
		players: make(map[replicated.ClientID]*Player),
	}
}

func (b *Board) Team() int { return b.team.Get() }

func (b *Board) AddTeam(delta int) {
	b.team.Update(func(v int) int { return v + delta })
}

func (b *Board) ResetTeam() {
	b.team.Set(0)
}

// Join returns the record for id, creating it with the default name.
func (b *Board) Join(id replicated.ClientID) *Player {
	if p, ok := b.players[id]; ok {
		return p
	}
	if !b.store.IsServer() {
		return nil
	}
	prefix := "player." + id.String() + "."
	p := &Player{
		ID:        id,
		Name:      replicated.NewValue(b.store, prefix+"name", ""),
		Score:     replicated.NewValue(b.store, prefix+"score", 0),
		Assists:   replicated.NewValue(b.store, prefix+"assists", 0),
		Penalties: replicated.NewValue(b.store, prefix+"penalties", 0),
	}
	p.Name.Set(DefaultName(id))
	b.players[id] = p
	return p
}

// Leave drops the record of a disconnected player.
func (b *Board) Leave(id replicated.ClientID) {
	if !b.store.IsServer() {
		return
	}
	delete(b.players, id)
}

func (b *Board) Player(id replicated.ClientID) (*Player, bool) {
	p, ok := b.players[id]
	return p, ok
}

// IDs returns connected player ids in ascending order.
func (b *Board) IDs() []replicated.ClientID {
	ids := make([]replicated.ClientID, 0, len(b.players))
	for id := range b.players {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (b *Board) SetName(id replicated.ClientID, name string) bool {
	p, ok := b.players[id]
	if !ok {
		return false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName(id)
	}
	return p.Name.Set(name)
}

func (b *Board) AddScore(id replicated.ClientID, delta int) {
	if p, ok := b.players[id]; ok {
		p.Score.Update(func(v int) int { return v + delta })
	}
}

func (b *Board) AddAssist(id replicated.ClientID) {
	if p, ok := b.players[id]; ok {
		p.Assists.Update(func(v int) int { return v + 1 })
	}
}

func (b *Board) AddPenalty(id replicated.ClientID, at time.Time) {
	if p, ok := b.players[id]; ok {
		p.Penalties.Update(func(v int) int { return v + 1 })
		p.LastPenalty = at
	}
}

func (b *Board) ResetAssists() {
	for _, p := range b.players {
		p.Assists.Set(0)
	}
}

// Snapshot copies every player's stats, ordered by id.
func (b *Board) Snapshot() []Stats {
	out := make([]Stats, 0, len(b.players))
	for _, id := range b.IDs() {
		p := b.players[id]
		out = append(out, Stats{
			ID:        id,
			Name:      p.DisplayName(),
			Score:     p.Score.Get(),
			Assists:   p.Assists.Get(),
			Penalties: p.Penalties.Get(),
		})
	}
	return out
}
