package state

import (
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/wfunc/herdparty/replicated"
	"github.com/wfunc/herdparty/score"
	"github.com/wfunc/herdparty/timer"
)

// MockState is a test double for the State interface.
// It helps us track which methods have been called.
type MockState struct {
	ID             string
	OnEnterCalled  bool
	OnExitCalled   bool
	OnUpdateCalled bool
}

func (m *MockState) OnEnter() {
	m.OnEnterCalled = true
}

func (m *MockState) OnExit() {
	m.OnExitCalled = true
}

func (m *MockState) OnUpdate() {
	m.OnUpdateCalled = true
}

func (m *MockState) GetID() string {
	return m.ID
}

func (m *MockState) HandleAction(sender replicated.ClientID, action Action) error {
	return nil
}

// reset clears the call tracking flags.
func (m *MockState) reset() {
	m.OnEnterCalled = false
	m.OnExitCalled = false
	m.OnUpdateCalled = false
}

func TestStateMachine_InitialState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	sm := NewBaseStateMachine(initialState)

	if !initialState.OnEnterCalled {
		t.Error("Expected OnEnter to be called on the initial state")
	}

	if sm.GetCurrentState() != initialState {
		t.Error("GetCurrentState should return the initial state")
	}
}

func TestStateMachine_ChangeState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	nextState := &MockState{ID: "next"}

	sm := NewBaseStateMachine(initialState)
	sm.AddTransition(initialState, nextState, nil)
	initialState.reset() // Reset after initialization

	err := sm.ChangeState(nextState)
	if err != nil {
		t.Fatalf("ChangeState should not return an error, but got: %v", err)
	}

	if !initialState.OnExitCalled {
		t.Error("Expected OnExit to be called on the old state")
	}

	if !nextState.OnEnterCalled {
		t.Error("Expected OnEnter to be called on the new state")
	}

	if sm.GetCurrentState() != nextState {
		t.Error("GetCurrentState should return the new state")
	}
}

func TestStateMachine_UnregisteredTransitionRefused(t *testing.T) {
	stateA := &MockState{ID: "A"}
	stateB := &MockState{ID: "B"}

	sm := NewBaseStateMachine(stateA)
	if err := sm.ChangeState(stateB); !errors.Is(err, ErrTransitionNotAllowed) {
		t.Fatalf("Expected ErrTransitionNotAllowed, but got: %v", err)
	}
	if sm.GetCurrentState() != stateA || stateA.OnExitCalled || stateB.OnEnterCalled {
		t.Error("A refused transition must not run any hook")
	}
}

func TestStateMachine_AddAndUseTransition(t *testing.T) {
	stateA := &MockState{ID: "A"}
	stateB := &MockState{ID: "B"}
	stateC := &MockState{ID: "C"}

	sm := NewBaseStateMachine(stateA)

	// Add a valid transition from A to B
	err := sm.AddTransition(stateA, stateB, func() bool { return true })
	if err != nil {
		t.Fatalf("AddTransition failed: %v", err)
	}

	// Add a blocked transition from B to C
	err = sm.AddTransition(stateB, stateC, func() bool { return false })
	if err != nil {
		t.Fatalf("AddTransition failed: %v", err)
	}

	// --- Test valid transition ---
	stateA.reset()
	err = sm.ChangeState(stateB)
	if err != nil {
		t.Errorf("Expected transition from A to B to be allowed, but got error: %v", err)
	}
	if sm.GetCurrentState().GetID() != "B" {
		t.Errorf("Expected current state to be B, but got %s", sm.GetCurrentState().GetID())
	}

	// --- Test blocked transition ---
	stateB.reset()
	err = sm.ChangeState(stateC)
	if err != ErrTransitionNotAllowed {
		t.Errorf("Expected ErrTransitionNotAllowed, but got: %v", err)
	}
	if sm.GetCurrentState().GetID() != "B" {
		t.Errorf("Expected current state to remain B after a blocked transition, but got %s", sm.GetCurrentState().GetID())
	}
	if stateB.OnExitCalled {
		t.Error("OnExit should not be called on the current state if transition is blocked")
	}
	if stateC.OnEnterCalled {
		t.Error("OnEnter should not be called on the new state if transition is blocked")
	}
}

// MockWorld records teleports and despawns.
type MockWorld struct {
	positions   map[replicated.ClientID]mgl64.Vec3
	despawnAlls int
}

func (m *MockWorld) Teleport(owner replicated.ClientID, p mgl64.Vec3) bool {
	m.positions[owner] = p
	return true
}

func (m *MockWorld) DespawnAll() int {
	m.despawnAlls++
	return 0
}

// MockSpawner records enable toggles.
type MockSpawner struct {
	enabled bool
	ensured int
}

func (m *MockSpawner) SetEnabled(on bool) { m.enabled = on }

func (m *MockSpawner) EnsureTarget() int {
	m.ensured++
	return 0
}

// MockSignaler records signals in order.
type MockSignaler struct {
	signals []string
}

func (m *MockSignaler) Signal(name string) { m.signals = append(m.signals, name) }

type fixture struct {
	ctrl      *Controller
	board     *score.Board
	world     *MockWorld
	spawner   *MockSpawner
	signaler  *MockSignaler
	timers    *timer.TimerManager
	clock     *timer.ManualClock
	summaries []RoundSummary
}

var (
	lobbySpawns = []mgl64.Vec3{{-10, 0, 0}, {-10, 0, 2}}
	gameSpawns  = []mgl64.Vec3{{0, 0, -3}, {0, 0, 0}, {0, 0, 3}}
)

func newFixture(role replicated.Role) *fixture {
	clock := timer.NewManualClock(time.Unix(500, 0))
	store := replicated.NewStore(role, nil)
	f := &fixture{
		board:    score.NewBoard(store),
		world:    &MockWorld{positions: make(map[replicated.ClientID]mgl64.Vec3)},
		spawner:  &MockSpawner{},
		signaler: &MockSignaler{},
		timers:   timer.NewTimerManager(clock),
		clock:    clock,
	}
	cfg := Config{
		WinPoints:     100,
		RoundDuration: 5 * time.Second,
		TickInterval:  time.Second,
		LobbySpawns:   lobbySpawns,
		GameSpawns:    gameSpawns,
	}
	f.ctrl = NewController(cfg, Deps{
		Store:      store,
		Board:      f.board,
		World:      f.world,
		Spawner:    f.spawner,
		Signaler:   f.signaler,
		Timers:     f.timers,
		Clock:      clock,
		OnRoundEnd: func(s RoundSummary) { f.summaries = append(f.summaries, s) },
	})
	f.ctrl.Start()
	return f
}

func (f *fixture) second() {
	f.clock.Advance(time.Second)
	f.timers.Advance()
}

// startRound connects ids and readies all of them.
func (f *fixture) startRound(t *testing.T, ids ...replicated.ClientID) {
	t.Helper()
	for _, id := range ids {
		f.ctrl.OnConnect(id)
	}
	for _, id := range ids {
		if err := f.ctrl.SetReadyRequest(id, true); err != nil {
			t.Fatalf("SetReadyRequest(%d) failed: %v", id, err)
		}
	}
	if f.ctrl.Phase() != PhasePlaying {
		t.Fatalf("Expected playing after all ready, got %v", f.ctrl.Phase())
	}
}

func TestController_StartEntersLobby(t *testing.T) {
	f := newFixture(replicated.RoleServer)
	if f.ctrl.Phase() != PhaseLobby || f.ctrl.SecondsRemaining() != 0 || f.ctrl.RoundWon() {
		t.Errorf("Unexpected initial round state: %v %d %v", f.ctrl.Phase(), f.ctrl.SecondsRemaining(), f.ctrl.RoundWon())
	}
	if f.spawner.enabled {
		t.Error("Spawner must be disabled in the lobby")
	}
}

func TestController_ConnectPlacesAndListsPlayer(t *testing.T) {
	f := newFixture(replicated.RoleServer)
	f.ctrl.OnConnect(3)

	roster := f.ctrl.Roster()
	if len(roster) != 1 || roster[0] != (RosterEntry{ID: 3, Name: "Player 3"}) {
		t.Fatalf("Unexpected roster: %+v", roster)
	}
	if f.world.positions[3] != lobbySpawns[1] {
		t.Errorf("Expected lobby spawn 3 mod 2, got %v", f.world.positions[3])
	}

	f.ctrl.OnDisconnect(3)
	if len(f.ctrl.Roster()) != 0 {
		t.Error("Roster row should be removed on disconnect")
	}
	if _, ok := f.board.Player(3); ok {
		t.Error("Score record should be removed on disconnect")
	}
}

func TestController_ReadyAggregation(t *testing.T) {
	f := newFixture(replicated.RoleServer)

	if err := f.ctrl.SetReadyRequest(9, true); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if f.ctrl.Phase() != PhaseLobby {
		t.Fatal("An empty roster must never start a round")
	}

	f.ctrl.OnConnect(1)
	f.ctrl.OnConnect(2)
	f.ctrl.SetReadyRequest(1, true)
	if f.ctrl.Phase() != PhaseLobby {
		t.Fatal("Round started before every player was ready")
	}
	f.board.AddTeam(7)
	f.ctrl.SetReadyLocal(2, true)

	if f.ctrl.Phase() != PhasePlaying {
		t.Fatalf("Expected playing, got %v", f.ctrl.Phase())
	}
	if f.board.Team() != 0 || f.ctrl.SecondsRemaining() != 5 || f.ctrl.RoundWon() {
		t.Errorf("Round entry should reset score and timer, got team=%d seconds=%d", f.board.Team(), f.ctrl.SecondsRemaining())
	}
	for _, row := range f.ctrl.Roster() {
		if row.Ready {
			t.Errorf("Ready flag of %d should be cleared at round start", row.ID)
		}
	}
	if len(f.signaler.signals) != 1 || f.signaler.signals[0] != SignalResetReady {
		t.Errorf("Expected reset_ready signal, got %v", f.signaler.signals)
	}
	if !f.spawner.enabled || f.spawner.ensured != 1 {
		t.Errorf("Spawner should be enabled and topped up, got enabled=%v ensured=%d", f.spawner.enabled, f.spawner.ensured)
	}
	if f.world.positions[1] != gameSpawns[1] || f.world.positions[2] != gameSpawns[2] {
		t.Errorf("Players should be at game spawns, got %v", f.world.positions)
	}
	if !f.ctrl.Countdown().Running() || f.ctrl.RoundID() == "" {
		t.Error("Countdown should run with a round id")
	}
}

func TestController_NoRetroactiveTransitionOnDisconnect(t *testing.T) {
	f := newFixture(replicated.RoleServer)
	f.ctrl.OnConnect(1)
	f.ctrl.OnConnect(2)
	f.ctrl.SetReadyRequest(1, true)

	f.ctrl.OnDisconnect(2)
	if f.ctrl.Phase() != PhaseLobby {
		t.Fatal("Disconnect must not re-evaluate the ready check")
	}

	f.ctrl.SetReadyRequest(1, true)
	if f.ctrl.Phase() != PhasePlaying {
		t.Errorf("Next ready update should start the round, got %v", f.ctrl.Phase())
	}
}

func TestController_ReadyIgnoredOutsideLobby(t *testing.T) {
	f := newFixture(replicated.RoleServer)
	f.startRound(t, 1)

	if err := f.ctrl.SetReadyRequest(1, true); !errors.Is(err, ErrActionNotAllowed) {
		t.Errorf("Expected ErrActionNotAllowed while playing, got %v", err)
	}
	if f.ctrl.Roster()[0].Ready {
		t.Error("Ready flag must not change while playing")
	}
	if err := f.ctrl.PlayAgain(1); !errors.Is(err, ErrActionNotAllowed) {
		t.Errorf("Expected ErrActionNotAllowed for play again while playing, got %v", err)
	}
}

func TestController_CountdownEndsRound(t *testing.T) {
	f := newFixture(replicated.RoleServer)
	f.startRound(t, 1)

	for i := 0; i < 4; i++ {
		f.second()
	}
	if f.ctrl.Phase() != PhasePlaying || f.ctrl.SecondsRemaining() != 1 {
		t.Fatalf("Expected 1 second left, got %v %d", f.ctrl.Phase(), f.ctrl.SecondsRemaining())
	}

	f.second()
	if f.ctrl.Phase() != PhaseResults || f.ctrl.RoundWon() {
		t.Fatalf("Expected a lost round in results, got %v won=%v", f.ctrl.Phase(), f.ctrl.RoundWon())
	}
	if f.spawner.enabled {
		t.Error("Spawner must be disabled in results")
	}
	if f.ctrl.Countdown().Running() {
		t.Error("Countdown must be cancelled")
	}
	if len(f.summaries) != 1 || f.summaries[0].Won || f.summaries[0].Duration != 5*time.Second {
		t.Errorf("Unexpected round summary: %+v", f.summaries)
	}
	if last := f.signaler.signals[len(f.signaler.signals)-1]; last != SignalShowResults {
		t.Errorf("Expected show_results signal, got %v", f.signaler.signals)
	}
}

func TestController_WinEndsRoundImmediately(t *testing.T) {
	f := newFixture(replicated.RoleServer)
	f.startRound(t, 1, 2)
	f.second()

	f.board.AddTeam(100)
	if !f.ctrl.CheckWin() {
		t.Fatal("CheckWin should report the win")
	}
	if f.ctrl.Phase() != PhaseResults || !f.ctrl.RoundWon() {
		t.Fatalf("Expected a won round in results, got %v won=%v", f.ctrl.Phase(), f.ctrl.RoundWon())
	}
	if f.ctrl.SecondsRemaining() != 4 {
		t.Errorf("Timer should stop where it was, got %d", f.ctrl.SecondsRemaining())
	}

	f.second()
	f.second()
	if f.ctrl.SecondsRemaining() != 4 {
		t.Error("Cancelled countdown kept ticking")
	}
	if len(f.summaries) != 1 || !f.summaries[0].Won || f.summaries[0].TeamScore != 100 || len(f.summaries[0].Players) != 2 {
		t.Errorf("Unexpected round summary: %+v", f.summaries)
	}
}

func TestController_WinCheckedBeforeDecrement(t *testing.T) {
	f := newFixture(replicated.RoleServer)
	f.startRound(t, 1)
	f.board.AddTeam(120)

	f.second()
	if f.ctrl.Phase() != PhaseResults || !f.ctrl.RoundWon() || f.ctrl.SecondsRemaining() != 5 {
		t.Errorf("Expected the tick to end the round before decrementing, got %v won=%v seconds=%d",
			f.ctrl.Phase(), f.ctrl.RoundWon(), f.ctrl.SecondsRemaining())
	}
}

func TestController_PlayAgainResets(t *testing.T) {
	f := newFixture(replicated.RoleServer)
	f.startRound(t, 1, 2)
	f.board.AddAssist(1)
	f.board.AddAssist(2)
	f.board.AddTeam(100)
	f.ctrl.CheckWin()

	if err := f.ctrl.SetReadyRequest(1, true); !errors.Is(err, ErrActionNotAllowed) {
		t.Errorf("Ready toggles are ignored in results, got %v", err)
	}

	f.signaler.signals = nil
	if err := f.ctrl.PlayAgain(2); err != nil {
		t.Fatalf("PlayAgain failed: %v", err)
	}

	if f.ctrl.Phase() != PhaseLobby || f.ctrl.RoundWon() || f.ctrl.SecondsRemaining() != 0 {
		t.Errorf("Expected a fresh lobby, got %v won=%v seconds=%d", f.ctrl.Phase(), f.ctrl.RoundWon(), f.ctrl.SecondsRemaining())
	}
	if f.board.Team() != 0 {
		t.Errorf("Team score should be reset, got %d", f.board.Team())
	}
	for _, s := range f.board.Snapshot() {
		if s.Assists != 0 {
			t.Errorf("Assists of %d should be reset", s.ID)
		}
	}
	for _, row := range f.ctrl.Roster() {
		if row.Ready {
			t.Errorf("Ready flag of %d should be reset", row.ID)
		}
	}
	if f.world.despawnAlls != 1 {
		t.Errorf("Remaining animals should be despawned once, got %d", f.world.despawnAlls)
	}
	if f.world.positions[1] != lobbySpawns[1] || f.world.positions[2] != lobbySpawns[0] {
		t.Errorf("Players should be back at lobby spawns, got %v", f.world.positions)
	}
	want := []string{SignalResetReady, SignalReturnToLobby}
	if len(f.signaler.signals) != 2 || f.signaler.signals[0] != want[0] || f.signaler.signals[1] != want[1] {
		t.Errorf("Expected signals %v, got %v", want, f.signaler.signals)
	}

	if err := f.ctrl.PlayAgain(2); !errors.Is(err, ErrActionNotAllowed) {
		t.Errorf("Play again in the lobby should be refused, got %v", err)
	}
}

func TestController_SecondRoundCountsFromScratch(t *testing.T) {
	f := newFixture(replicated.RoleServer)
	f.startRound(t, 1)
	firstGen := f.ctrl.Countdown().Generation()
	firstRound := f.ctrl.RoundID()
	f.clock.Advance(500 * time.Millisecond)
	f.board.AddTeam(100)
	f.ctrl.CheckWin()
	f.ctrl.PlayAgain(1)
	f.ctrl.SetReadyRequest(1, true)

	if f.ctrl.Countdown().Generation() <= firstGen {
		t.Error("Restarting the countdown must bump its generation")
	}
	if f.ctrl.RoundID() == firstRound {
		t.Error("Each round needs its own id")
	}

	f.clock.Advance(500 * time.Millisecond)
	f.timers.Advance()
	if f.ctrl.SecondsRemaining() != 5 {
		t.Fatalf("A tick of the first round leaked into the second, seconds=%d", f.ctrl.SecondsRemaining())
	}
	f.clock.Advance(500 * time.Millisecond)
	f.timers.Advance()
	if f.ctrl.SecondsRemaining() != 4 {
		t.Errorf("Expected exactly one tick, seconds=%d", f.ctrl.SecondsRemaining())
	}
}

func TestController_Names(t *testing.T) {
	f := newFixture(replicated.RoleServer)
	f.ctrl.OnConnect(1)

	f.ctrl.SetName(1, "Ann")
	p, _ := f.board.Player(1)
	if p.DisplayName() != "Ann" || f.ctrl.Roster()[0].Name != "Ann" {
		t.Errorf("SetName should update both names, got %q and %q", p.DisplayName(), f.ctrl.Roster()[0].Name)
	}

	f.ctrl.ReportName(1, "Annie")
	if p.DisplayName() != "Ann" || f.ctrl.Roster()[0].Name != "Annie" {
		t.Errorf("ReportName should update only the roster, got %q and %q", p.DisplayName(), f.ctrl.Roster()[0].Name)
	}

	f.ctrl.ReportName(1, "   ")
	if f.ctrl.Roster()[0].Name != "Player 1" {
		t.Errorf("Blank name should fall back to the default, got %q", f.ctrl.Roster()[0].Name)
	}

	f.ctrl.ReportName(8, "Ghost")
	if len(f.ctrl.Roster()) != 1 {
		t.Error("ReportName must not create rows")
	}
}

func TestController_ClientRoleIsInert(t *testing.T) {
	f := newFixture(replicated.RoleClient)
	f.ctrl.OnConnect(1)
	if len(f.ctrl.Roster()) != 0 {
		t.Error("Client role must not create roster rows")
	}
	if err := f.ctrl.SetReadyLocal(1, true); err != nil {
		t.Errorf("Client-side ready should be a silent no-op, got %v", err)
	}
	if f.ctrl.CheckWin() {
		t.Error("Client role cannot end a round")
	}
}
