// Package pit turns pit entries into scoring: penalties for players, captures for animals.
package pit

import (
	"fmt"
	"strings"
	"time"

	"github.com/wfunc/herdparty/arena"
	"github.com/wfunc/herdparty/ledger"
	"github.com/wfunc/herdparty/logger"
	"github.com/wfunc/herdparty/replicated"
	"github.com/wfunc/herdparty/score"
	"github.com/wfunc/herdparty/timer"
)

type Outcome int

const (
	Ignored Outcome = iota
	Debounced
	Penalized
	Captured
)

func (o Outcome) String() string {
	switch o {
	case Debounced:
		return "debounced"
	case Penalized:
		return "penalized"
	case Captured:
		return "captured"
	}
	return "ignored"
}

type Config struct {
	PointsPerAnimal int
	RespawnDelay    time.Duration
	PenaltyCooldown time.Duration
}

func DefaultConfig() Config {
	return Config{
		PointsPerAnimal: 5,
		RespawnDelay:    2 * time.Second,
		PenaltyCooldown: time.Second,
	}
}

// Player is a pit entrant controlled by a connected client.
type Player interface {
	arena.Entity
	Owner() replicated.ClientID
}

// Animal is a pit entrant that can be captured.
type Animal interface {
	arena.Entity
	Kind() string
	Ledger() *ledger.Ledger
}

type Notifier interface {
	Toast(msg string)
}

type Scheduler interface {
	AddTimer(delay time.Duration, interval time.Duration, callback func()) int64
	RemoveTimer(timerId int64) bool
}

type Spawner interface {
	SpawnOne() bool
}

type Remover interface {
	Despawn(id uint64) bool
}

type Deps struct {
	Store     *replicated.Store
	Board     *score.Board
	World     Remover
	Notifier  Notifier
	Scheduler Scheduler
	Spawner   Spawner
	Clock     timer.Clock
}

type Handler struct {
	cfg  Config
	deps Deps

	// pending holds respawn timers that have not fired yet.
	pending map[int64]struct{}
}

func NewHandler(cfg Config, deps Deps) *Handler {
	if deps.Clock == nil {
		deps.Clock = timer.SystemClock{}
	}
	return &Handler{cfg: cfg, deps: deps, pending: make(map[int64]struct{})}
}

func (h *Handler) Config() Config { return h.cfg }

// OnEnter applies the consequences of e entering a pit.
func (h *Handler) OnEnter(e arena.Entity) Outcome {
	if !h.deps.Store.IsServer() {
		return Ignored
	}
	switch v := e.(type) {
	case Player:
		return h.penalize(v)
	case Animal:
		return h.capture(v)
	}
	return Ignored
}

func (h *Handler) penalize(e Player) Outcome {
	p, ok := h.deps.Board.Player(e.Owner())
	if !ok {
		return Ignored
	}
	now := h.deps.Clock.Now()
	if !p.LastPenalty.IsZero() && now.Sub(p.LastPenalty) < h.cfg.PenaltyCooldown {
		return Debounced
	}

	h.deps.Board.AddPenalty(p.ID, now)
	h.deps.Board.AddScore(p.ID, -1)
	h.deps.Board.AddTeam(-1)
	h.toast(fmt.Sprintf("%s fell into the pit! -1 point.", p.DisplayName()))
	logger.Log.Infow("player fell into pit", "client", p.ID, "penalties", p.Penalties.Get())
	return Penalized
}

func (h *Handler) capture(a Animal) Outcome {
	var contributors []replicated.ClientID
	if l := a.Ledger(); l != nil {
		contributors = l.Recent()
	}

	names := make([]string, 0, len(contributors))
	for _, id := range contributors {
		p, ok := h.deps.Board.Player(id)
		if !ok {
			continue
		}
		h.deps.Board.AddAssist(id)
		h.deps.Board.AddScore(id, h.cfg.PointsPerAnimal)
		names = append(names, p.DisplayName())
	}

	who := "Team"
	if len(names) > 0 {
		who = strings.Join(names, ", ")
	}
	h.toast(fmt.Sprintf("%s corralled the %s! +%d points.", who, a.Kind(), h.cfg.PointsPerAnimal))

	if h.deps.World != nil {
		h.deps.World.Despawn(a.EntityID())
	}
	if l := a.Ledger(); l != nil {
		l.Clear()
	}
	h.deps.Board.AddTeam(h.cfg.PointsPerAnimal)

	if h.deps.Scheduler != nil && h.deps.Spawner != nil {
		spawner := h.deps.Spawner
		var id int64
		id = h.deps.Scheduler.AddTimer(h.cfg.RespawnDelay, 0, func() {
			delete(h.pending, id)
			spawner.SpawnOne()
		})
		h.pending[id] = struct{}{}
	}
	logger.Log.Infow("animal captured", "id", a.EntityID(), "kind", a.Kind(), "contributors", len(names))
	return Captured
}

// PendingRespawns is the number of scheduled respawns that have not fired.
func (h *Handler) PendingRespawns() int { return len(h.pending) }

// CancelRespawns drops every scheduled respawn, so a round never inherits spawns from the one before.
func (h *Handler) CancelRespawns() int {
	n := 0
	for id := range h.pending {
		if h.deps.Scheduler.RemoveTimer(id) {
			n++
		}
		delete(h.pending, id)
	}
	return n
}

func (h *Handler) toast(msg string) {
	if h.deps.Notifier != nil {
		h.deps.Notifier.Toast(msg)
	}
}
