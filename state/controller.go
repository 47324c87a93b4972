// Package state runs the lobby, playing and results phases of a session on top of a small
// transition-checked state machine.
package state

import (
	"errors"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/wfunc/herdparty/logger"
	"github.com/wfunc/herdparty/replicated"
	"github.com/wfunc/herdparty/score"
	"github.com/wfunc/herdparty/timer"
)

var ErrNotStarted = errors.New("phase controller not started")

type Config struct {
	WinPoints     int
	RoundDuration time.Duration
	TickInterval  time.Duration
	LobbySpawns   []mgl64.Vec3
	GameSpawns    []mgl64.Vec3
}

func DefaultConfig() Config {
	return Config{
		WinPoints:     100,
		RoundDuration: 300 * time.Second,
		TickInterval:  time.Second,
	}
}

type Deps struct {
	Store    *replicated.Store
	Board    *score.Board
	World    World
	Spawner  Spawner
	Signaler Signaler
	Timers   *timer.TimerManager
	Clock    timer.Clock

	// OnRoundStart and OnRoundEnd are optional observers.
	OnRoundStart func(roundID string)
	OnRoundEnd   func(RoundSummary)
}

// Controller owns the replicated round state and the lobby roster.
type Controller struct {
	cfg  Config
	deps Deps

	phase   *replicated.Value[Phase]
	seconds *replicated.Value[int]
	won     *replicated.Value[bool]
	roster  *replicated.List[RosterEntry]

	machine   *BaseStateMachine
	lobby     *lobbyState
	playing   *playingState
	results   *resultsState
	countdown *timer.Countdown

	roundID   string
	startedAt time.Time
}

func NewController(cfg Config, deps Deps) *Controller {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if deps.Clock == nil {
		deps.Clock = timer.SystemClock{}
	}
	c := &Controller{
		cfg:       cfg,
		deps:      deps,
		phase:     replicated.NewValue(deps.Store, "phase", PhaseLobby),
		seconds:   replicated.NewValue(deps.Store, "seconds_remaining", 0),
		won:       replicated.NewValue(deps.Store, "round_won", false),
		roster:    replicated.NewList[RosterEntry](deps.Store, "lobby_players"),
		countdown: timer.NewCountdown(deps.Timers),
	}
	c.lobby = &lobbyState{phaseBase{id: string(PhaseLobby), c: c}}
	c.playing = &playingState{phaseBase{id: string(PhasePlaying), c: c}}
	c.results = &resultsState{phaseBase{id: string(PhaseResults), c: c}}
	return c
}

// Start enters the lobby. It does nothing outside the server role.
func (c *Controller) Start() {
	if !c.deps.Store.IsServer() || c.machine != nil {
		return
	}
	c.machine = NewBaseStateMachine(c.lobby)
	c.machine.AddTransition(c.lobby, c.playing, c.allReady)
	c.machine.AddTransition(c.playing, c.results, nil)
	c.machine.AddTransition(c.results, c.lobby, nil)
	logger.Log.Infow("phase controller started", "win_points", c.cfg.WinPoints, "round", c.cfg.RoundDuration)
}

func (c *Controller) Phase() Phase                { return c.phase.Get() }
func (c *Controller) SecondsRemaining() int       { return c.seconds.Get() }
func (c *Controller) RoundWon() bool              { return c.won.Get() }
func (c *Controller) Roster() []RosterEntry       { return c.roster.Items() }
func (c *Controller) RoundID() string             { return c.roundID }
func (c *Controller) Countdown() *timer.Countdown { return c.countdown }

// Update runs the per-tick hook of the current phase.
func (c *Controller) Update() {
	if c.machine != nil {
		c.machine.GetCurrentState().OnUpdate()
	}
}

// OnConnect creates the player's score record and lobby row and moves the player to the lobby.
func (c *Controller) OnConnect(id replicated.ClientID) {
	if !c.deps.Store.IsServer() {
		return
	}
	p := c.deps.Board.Join(id)
	c.upsertRosterName(id, p.DisplayName())
	c.placeAt(id, c.cfg.LobbySpawns)
	logger.Log.Infow("client connected", "client", id, "phase", c.Phase())
}

// OnDisconnect drops the player's lobby row and score record. Ready aggregation is not re-evaluated.
func (c *Controller) OnDisconnect(id replicated.ClientID) {
	if !c.deps.Store.IsServer() {
		return
	}
	for i := c.roster.Len() - 1; i >= 0; i-- {
		if c.roster.At(i).ID == id {
			c.roster.RemoveAt(i)
		}
	}
	c.deps.Board.Leave(id)
	logger.Log.Infow("client disconnected", "client", id, "phase", c.Phase())
}

// SetReadyRequest applies a ready toggle sent by a client. sender comes from the transport.
func (c *Controller) SetReadyRequest(sender replicated.ClientID, ready bool) error {
	return c.handle(sender, Action{Type: ActionSetReady, Ready: ready})
}

// SetReadyLocal applies a ready toggle from the hosting process itself.
func (c *Controller) SetReadyLocal(id replicated.ClientID, ready bool) error {
	if !c.deps.Store.IsServer() {
		return nil
	}
	return c.handle(id, Action{Type: ActionSetReady, Ready: ready})
}

// PlayAgain returns everyone from the results screen to the lobby.
func (c *Controller) PlayAgain(sender replicated.ClientID) error {
	return c.handle(sender, Action{Type: ActionPlayAgain})
}

func (c *Controller) handle(sender replicated.ClientID, a Action) error {
	if !c.deps.Store.IsServer() {
		return nil
	}
	if c.machine == nil {
		return ErrNotStarted
	}
	return c.machine.GetCurrentState().HandleAction(sender, a)
}

// SetName changes the display name and the lobby row of a connected player.
func (c *Controller) SetName(id replicated.ClientID, name string) {
	if !c.deps.Store.IsServer() {
		return
	}
	p, ok := c.deps.Board.Player(id)
	if !ok {
		return
	}
	c.deps.Board.SetName(id, name)
	c.upsertRosterName(id, p.DisplayName())
}

// ReportName updates the lobby row only. A blank name falls back to the default.
func (c *Controller) ReportName(id replicated.ClientID, name string) {
	if !c.deps.Store.IsServer() {
		return
	}
	i := c.rosterIndex(id)
	if i < 0 {
		return
	}
	row := c.roster.At(i)
	row.Name = rosterName(id, name)
	c.roster.Set(i, row)
}

// CheckWin ends the round as won once the team score reaches the threshold.
func (c *Controller) CheckWin() bool {
	if !c.deps.Store.IsServer() || c.Phase() != PhasePlaying {
		return false
	}
	if c.deps.Board.Team() < c.cfg.WinPoints {
		return false
	}
	c.endRound(true)
	return true
}

func (c *Controller) endRound(won bool) {
	c.won.Set(won)
	if err := c.machine.ChangeState(c.results); err != nil {
		logger.Log.Warnw("failed to end round", "err", err)
	}
}

func (c *Controller) allReady() bool {
	if c.roster.Len() == 0 {
		return false
	}
	for _, row := range c.roster.Items() {
		if !row.Ready {
			return false
		}
	}
	return true
}

func (c *Controller) setReady(id replicated.ClientID, ready bool) {
	i := c.rosterIndex(id)
	if i < 0 {
		return
	}
	row := c.roster.At(i)
	row.Ready = ready
	c.roster.Set(i, row)
}

func (c *Controller) clearReady() {
	for i := 0; i < c.roster.Len(); i++ {
		row := c.roster.At(i)
		row.Ready = false
		c.roster.Set(i, row)
	}
}

func (c *Controller) rosterIndex(id replicated.ClientID) int {
	return c.roster.IndexFunc(func(e RosterEntry) bool { return e.ID == id })
}

func (c *Controller) upsertRosterName(id replicated.ClientID, name string) {
	name = rosterName(id, name)
	if i := c.rosterIndex(id); i >= 0 {
		row := c.roster.At(i)
		row.Name = name
		c.roster.Set(i, row)
		return
	}
	c.roster.Append(RosterEntry{ID: id, Name: name})
}

func rosterName(id replicated.ClientID, name string) string {
	if strings.TrimSpace(name) == "" {
		return score.DefaultName(id)
	}
	return name
}

func (c *Controller) placeAt(id replicated.ClientID, spawns []mgl64.Vec3) {
	if c.deps.World == nil || len(spawns) == 0 {
		return
	}
	c.deps.World.Teleport(id, spawns[uint64(id)%uint64(len(spawns))])
}

func (c *Controller) placeAll(spawns []mgl64.Vec3) {
	for _, id := range c.deps.Board.IDs() {
		c.placeAt(id, spawns)
	}
}

func (c *Controller) signal(name string) {
	if c.deps.Signaler != nil {
		c.deps.Signaler.Signal(name)
	}
}

func (c *Controller) setSpawner(on bool) {
	if c.deps.Spawner == nil {
		return
	}
	c.deps.Spawner.SetEnabled(on)
	if on {
		c.deps.Spawner.EnsureTarget()
	}
}
