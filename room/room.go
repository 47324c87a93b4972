// room/room.go
package room

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/wfunc/herdparty/arena"
	"github.com/wfunc/herdparty/logger"
	"github.com/wfunc/herdparty/motion"
	"github.com/wfunc/herdparty/network"
	"github.com/wfunc/herdparty/pit"
	"github.com/wfunc/herdparty/replicated"
	"github.com/wfunc/herdparty/score"
	"github.com/wfunc/herdparty/spawner"
	"github.com/wfunc/herdparty/state"
	"github.com/wfunc/herdparty/timer"
)

var ErrRoomClosed = errors.New("room closed")

const (
	DefaultTickRate     = 30
	DefaultSnapshotRate = 10
	inboxSize           = 256
)

type Config struct {
	TickRate     int
	SnapshotRate int
	Role         replicated.Role
	TargetAlive  int
	Seed         int64

	Layout arena.Layout
	Arena  arena.Config
	Motion motion.Config
	Pit    pit.Config
	Rules  state.Config
}

func DefaultConfig() Config {
	return Config{
		TickRate:     DefaultTickRate,
		SnapshotRate: DefaultSnapshotRate,
		Role:         replicated.RoleServer,
		TargetAlive:  spawner.DefaultTargetAlive,
		Seed:         1,
		Layout:       arena.DefaultLayout(),
		Arena:        arena.DefaultConfig(),
		Motion:       motion.DefaultConfig(),
		Pit:          pit.DefaultConfig(),
		Rules:        state.DefaultConfig(),
	}
}

type Deps struct {
	Broadcaster Broadcaster
	Metrics     Metrics
	Clock       timer.Clock

	// OnRoundEnd receives every finished round, e.g. for the archive and the journal.
	OnRoundEnd func(state.RoundSummary)
}

// Room 是唯一的权威模拟协程, 拥有全部游戏状态
type Room struct {
	Inbox chan any

	cfg     Config
	deps    Deps
	dt      time.Duration
	every   uint64
	tick    uint64
	players map[replicated.ClientID]struct{}
	done    chan struct{}

	store   *replicated.Store
	timers  *timer.TimerManager
	world   *arena.World
	board   *score.Board
	ctrl    *state.Controller
	pits    *pit.Handler
	spawner *spawner.Spawner
}

func New(cfg Config, deps Deps) *Room {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	if cfg.SnapshotRate <= 0 || cfg.SnapshotRate > cfg.TickRate {
		cfg.SnapshotRate = cfg.TickRate
	}
	if deps.Clock == nil {
		deps.Clock = timer.SystemClock{}
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if len(cfg.Rules.LobbySpawns) == 0 {
		cfg.Rules.LobbySpawns = points(cfg.Layout.LobbySpawns)
	}
	if len(cfg.Rules.GameSpawns) == 0 {
		cfg.Rules.GameSpawns = points(cfg.Layout.GameSpawns)
	}

	r := &Room{
		Inbox:   make(chan any, inboxSize),
		cfg:     cfg,
		deps:    deps,
		dt:      time.Second / time.Duration(cfg.TickRate),
		every:   uint64(cfg.TickRate / cfg.SnapshotRate),
		players: make(map[replicated.ClientID]struct{}),
		done:    make(chan struct{}),
	}

	var pub replicated.Publisher
	if deps.Broadcaster != nil {
		pub = deps.Broadcaster
	}
	r.store = replicated.NewStore(cfg.Role, pub)
	r.timers = timer.NewTimerManager(deps.Clock)
	r.world = arena.NewWorld(cfg.Layout, cfg.Arena)
	r.board = score.NewBoard(r.store)
	r.spawner = spawner.New(r.world, r.store, cfg.Motion, cfg.TargetAlive, deps.Clock, rand.New(rand.NewSource(cfg.Seed)))

	var notifier pit.Notifier
	var signaler state.Signaler
	if deps.Broadcaster != nil {
		notifier, signaler = deps.Broadcaster, deps.Broadcaster
	}
	r.pits = pit.NewHandler(cfg.Pit, pit.Deps{
		Store:     r.store,
		Board:     r.board,
		World:     r.world,
		Notifier:  notifier,
		Scheduler: r.timers,
		Spawner:   r.spawner,
		Clock:     deps.Clock,
	})
	r.ctrl = state.NewController(cfg.Rules, state.Deps{
		Store:        r.store,
		Board:        r.board,
		World:        r.world,
		Spawner:      r.spawner,
		Signaler:     signaler,
		Timers:       r.timers,
		Clock:        deps.Clock,
		OnRoundStart: r.roundStarted,
		OnRoundEnd:   r.roundEnded,
	})
	r.ctrl.Start()
	return r
}

func points(ps []arena.Point) []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(ps))
	for i, p := range ps {
		out[i] = p.Vec()
	}
	return out
}

func (r *Room) Controller() *state.Controller { return r.ctrl }
func (r *Room) World() *arena.World           { return r.world }
func (r *Room) Board() *score.Board           { return r.board }
func (r *Room) Tick() uint64                  { return r.tick }

// Run drains the inbox and steps the simulation until ctx is cancelled.
func (r *Room) Run(ctx context.Context) error {
	defer close(r.done)
	ticker := time.NewTicker(r.dt)
	defer ticker.Stop()

	logger.Log.Infow("room running", "tick_rate", r.cfg.TickRate, "role", r.store.Role())
	for {
		select {
		case <-ctx.Done():
			logger.Log.Infow("room stopped", "tick", r.tick)
			return nil
		case cmd := <-r.Inbox:
			r.handleCommand(cmd)
		case <-ticker.C:
			r.step()
		}
	}
}

// Submit hands a command to the room goroutine.
func (r *Room) Submit(ctx context.Context, cmd any) error {
	select {
	case <-r.done:
		return ErrRoomClosed
	default:
	}
	select {
	case r.Inbox <- cmd:
		return nil
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join registers a client and waits for the room to accept it.
func (r *Room) Join(ctx context.Context, id replicated.ClientID, name string) (JoinResult, error) {
	reply := make(chan JoinResult, 1)
	if err := r.Submit(ctx, Join{ClientID: id, Name: name, Reply: reply}); err != nil {
		return JoinResult{}, err
	}
	select {
	case res := <-reply:
		return res, nil
	case <-r.done:
		return JoinResult{}, ErrRoomClosed
	case <-ctx.Done():
		return JoinResult{}, ctx.Err()
	}
}

// Snapshot asks the room goroutine for the current world state.
func (r *Room) Snapshot(ctx context.Context) (network.WorldSnapshot, error) {
	reply := make(chan network.WorldSnapshot, 1)
	if err := r.Submit(ctx, Query{Reply: reply}); err != nil {
		return network.WorldSnapshot{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-r.done:
		return network.WorldSnapshot{}, ErrRoomClosed
	case <-ctx.Done():
		return network.WorldSnapshot{}, ctx.Err()
	}
}

func (r *Room) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case Join:
		r.handleJoin(c)
	case Leave:
		r.handleLeave(c.ClientID)
	case SetName:
		r.ctrl.SetName(c.ClientID, c.Name)
	case ReportName:
		r.ctrl.ReportName(c.ClientID, c.Name)
	case SetReady:
		r.reject(c.ClientID, r.ctrl.SetReadyRequest(c.ClientID, c.Ready))
	case PlayAgain:
		r.reject(c.ClientID, r.ctrl.PlayAgain(c.ClientID))
	case Input:
		if ch := r.world.Character(c.ClientID); ch != nil {
			ch.SetInput(c.Input)
		}
	case Query:
		c.Reply <- r.snapshot()
	default:
		logger.Log.Warnw("unknown room command", "type", cmd)
	}
}

func (r *Room) handleJoin(c Join) {
	if _, ok := r.players[c.ClientID]; !ok {
		r.players[c.ClientID] = struct{}{}
		r.world.AddCharacter(c.ClientID)
		r.ctrl.OnConnect(c.ClientID)
		if c.Name != "" {
			r.ctrl.SetName(c.ClientID, c.Name)
		}
		r.deps.Metrics.SetOnlinePlayers(len(r.players))
	}
	if c.Reply != nil {
		c.Reply <- JoinResult{ClientID: c.ClientID, Phase: string(r.ctrl.Phase())}
	}
}

func (r *Room) handleLeave(id replicated.ClientID) {
	if _, ok := r.players[id]; !ok {
		return
	}
	delete(r.players, id)
	r.ctrl.OnDisconnect(id)
	r.world.RemoveCharacter(id)
	r.deps.Metrics.SetOnlinePlayers(len(r.players))
}

// reject tells the sender why an intent was refused.
func (r *Room) reject(id replicated.ClientID, err error) {
	if err == nil {
		return
	}
	logger.Log.Debugw("intent rejected", "client", id, "phase", r.ctrl.Phase(), "err", err)
	if r.deps.Broadcaster == nil {
		return
	}
	data, _ := json.Marshal(network.ErrorMessage{Error: err.Error()})
	if err := r.deps.Broadcaster.SendTo(id, network.MsgTypeError, data); err != nil {
		logger.Log.Debugw("failed to send error", "client", id, "err", err)
	}
}

// step advances the simulation by one fixed tick.
func (r *Room) step() {
	start := time.Now()
	r.timers.Advance()

	for _, a := range r.world.Animals() {
		agent := a.Agent()
		if agent == nil {
			continue
		}
		if rep := agent.Tick(r.dt); rep.Impulse {
			r.deps.Metrics.IncHerdImpulses()
		}
	}

	for _, ev := range r.world.Step(r.dt.Seconds()) {
		switch r.pits.OnEnter(ev.Entity) {
		case pit.Penalized:
			r.deps.Metrics.IncPitPenalties()
		case pit.Captured:
			r.deps.Metrics.IncAnimalsCaptured()
			r.ctrl.CheckWin()
		}
	}
	r.ctrl.Update()

	r.tick++
	if r.deps.Broadcaster != nil && r.tick%r.every == 0 {
		r.deps.Broadcaster.Snapshot(r.snapshot())
	}
	r.deps.Metrics.SetActiveAnimals(r.world.AliveAnimals())
	r.deps.Metrics.ObserveTick(time.Since(start))
}

func (r *Room) snapshot() network.WorldSnapshot {
	s := network.WorldSnapshot{
		Tick:      r.tick,
		Phase:     string(r.ctrl.Phase()),
		Seconds:   r.ctrl.SecondsRemaining(),
		TeamScore: r.board.Team(),
		Players:   make([]network.EntityState, 0, len(r.players)),
		Animals:   make([]network.EntityState, 0, r.world.AliveAnimals()),
	}
	for _, c := range r.world.Characters() {
		s.Players = append(s.Players, network.EntityState{
			ID:       c.EntityID(),
			Owner:    uint64(c.Owner()),
			Kind:     "player",
			Position: c.Position(),
		})
	}
	for _, a := range r.world.Animals() {
		e := network.EntityState{
			ID:       a.EntityID(),
			Kind:     a.Kind(),
			Position: a.Position(),
		}
		if agent := a.Agent(); agent != nil {
			e.Mode = agent.Mode().String()
			e.Status = string(agent.Status())
		}
		s.Animals = append(s.Animals, e)
	}
	return s
}

func (r *Room) roundStarted(id string) {
	r.pits.CancelRespawns()
	r.deps.Metrics.IncRoundsStarted()
}

func (r *Room) roundEnded(s state.RoundSummary) {
	if n := r.pits.CancelRespawns(); n > 0 {
		logger.Log.Debugw("pending respawns cancelled", "round", s.RoundID, "count", n)
	}
	r.deps.Metrics.IncRoundsFinished(s.Won)
	if r.deps.OnRoundEnd != nil {
		r.deps.OnRoundEnd(s)
	}
}
