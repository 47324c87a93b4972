package state

import (
	"errors"

	"github.com/google/uuid"

	"github.com/wfunc/herdparty/logger"
	"github.com/wfunc/herdparty/replicated"
)

// 大厅状态
type lobbyState struct {
	phaseBase
}

func (s *lobbyState) OnEnter() {
	c := s.c
	c.phase.Set(PhaseLobby)
	c.seconds.Set(0)
	c.won.Set(false)
	c.setSpawner(false)
	c.placeAll(c.cfg.LobbySpawns)
	for _, id := range c.deps.Board.IDs() {
		if p, ok := c.deps.Board.Player(id); ok {
			c.upsertRosterName(id, p.DisplayName())
		}
	}
	logger.Log.Infow("entered lobby", "players", c.roster.Len())
}

// HandleAction evaluates the ready check after every single ready update.
func (s *lobbyState) HandleAction(sender replicated.ClientID, action Action) error {
	if action.Type != ActionSetReady {
		return ErrActionNotAllowed
	}
	c := s.c
	c.setReady(sender, action.Ready)
	err := c.machine.ChangeState(c.playing)
	if errors.Is(err, ErrTransitionNotAllowed) {
		return nil
	}
	return err
}

// 游戏进行状态
type playingState struct {
	phaseBase
}

func (s *playingState) OnEnter() {
	c := s.c
	c.roundID = uuid.NewString()
	c.startedAt = c.deps.Clock.Now()

	c.phase.Set(PhasePlaying)
	c.deps.Board.ResetTeam()
	c.seconds.Set(int(c.cfg.RoundDuration.Seconds()))
	c.won.Set(false)
	c.clearReady()
	c.signal(SignalResetReady)
	c.placeAll(c.cfg.GameSpawns)
	c.setSpawner(true)
	c.countdown.Start(c.cfg.TickInterval, s.tick)

	logger.Log.Infow("round started", "round", c.roundID, "players", c.roster.Len(), "seconds", c.seconds.Get())
	if c.deps.OnRoundStart != nil {
		c.deps.OnRoundStart(c.roundID)
	}
}

func (s *playingState) OnExit() {
	s.c.countdown.Stop()
}

func (s *playingState) OnUpdate() {
	s.c.CheckWin()
}

func (s *playingState) tick() {
	c := s.c
	if c.CheckWin() {
		return
	}
	c.seconds.Update(func(v int) int { return v - 1 })
	if c.seconds.Get() <= 0 {
		c.endRound(c.deps.Board.Team() >= c.cfg.WinPoints)
	}
}

// 结算状态
type resultsState struct {
	phaseBase
}

func (s *resultsState) OnEnter() {
	c := s.c
	c.phase.Set(PhaseResults)
	c.setSpawner(false)
	c.signal(SignalShowResults)

	now := c.deps.Clock.Now()
	summary := RoundSummary{
		RoundID:   c.roundID,
		StartedAt: c.startedAt,
		EndedAt:   now,
		Duration:  now.Sub(c.startedAt),
		Won:       c.won.Get(),
		TeamScore: c.deps.Board.Team(),
		Players:   c.deps.Board.Snapshot(),
	}
	logger.Log.Infow("round finished", "round", summary.RoundID, "won", summary.Won, "team_score", summary.TeamScore)
	if c.deps.OnRoundEnd != nil {
		c.deps.OnRoundEnd(summary)
	}
}

func (s *resultsState) HandleAction(sender replicated.ClientID, action Action) error {
	if action.Type != ActionPlayAgain {
		return ErrActionNotAllowed
	}
	c := s.c
	c.deps.Board.ResetAssists()
	c.deps.Board.ResetTeam()
	c.signal(SignalResetReady)
	c.clearReady()
	if c.deps.World != nil {
		c.deps.World.DespawnAll()
	}
	c.placeAll(c.cfg.LobbySpawns)
	if err := c.machine.ChangeState(c.lobby); err != nil {
		return err
	}
	c.signal(SignalReturnToLobby)
	logger.Log.Infow("returned to lobby", "requested_by", sender)
	return nil
}
