package pit

import (
	"testing"
	"time"

	"github.com/wfunc/herdparty/ledger"
	"github.com/wfunc/herdparty/replicated"
	"github.com/wfunc/herdparty/score"
	"github.com/wfunc/herdparty/timer"
)

// MockNotifier records toasts.
type MockNotifier struct {
	toasts []string
}

func (m *MockNotifier) Toast(msg string) { m.toasts = append(m.toasts, msg) }

// MockSpawner counts spawn requests.
type MockSpawner struct {
	spawned int
}

func (m *MockSpawner) SpawnOne() bool {
	m.spawned++
	return true
}

// MockWorld records despawned ids.
type MockWorld struct {
	despawned []uint64
}

func (m *MockWorld) Despawn(id uint64) bool {
	m.despawned = append(m.despawned, id)
	return true
}

type fakePlayer struct {
	id    uint64
	owner replicated.ClientID
}

func (f fakePlayer) EntityID() uint64           { return f.id }
func (f fakePlayer) Owner() replicated.ClientID { return f.owner }

type fakeAnimal struct {
	id     uint64
	kind   string
	ledger *ledger.Ledger
}

func (f fakeAnimal) EntityID() uint64       { return f.id }
func (f fakeAnimal) Kind() string           { return f.kind }
func (f fakeAnimal) Ledger() *ledger.Ledger { return f.ledger }

type fakeCrate struct{}

func (fakeCrate) EntityID() uint64 { return 99 }

type fixture struct {
	handler  *Handler
	board    *score.Board
	notifier *MockNotifier
	spawner  *MockSpawner
	world    *MockWorld
	timers   *timer.TimerManager
	clock    *timer.ManualClock
}

func newFixture(role replicated.Role) *fixture {
	clock := timer.NewManualClock(time.Unix(1000, 0))
	store := replicated.NewStore(role, nil)
	f := &fixture{
		board:    score.NewBoard(store),
		notifier: &MockNotifier{},
		spawner:  &MockSpawner{},
		world:    &MockWorld{},
		timers:   timer.NewTimerManager(clock),
		clock:    clock,
	}
	f.handler = NewHandler(DefaultConfig(), Deps{
		Store:     store,
		Board:     f.board,
		World:     f.world,
		Notifier:  f.notifier,
		Scheduler: f.timers,
		Spawner:   f.spawner,
		Clock:     clock,
	})
	return f
}

func TestPlayerPenaltyWithCooldown(t *testing.T) {
	f := newFixture(replicated.RoleServer)
	f.board.Join(4)
	f.board.SetName(4, "Bea")
	p := fakePlayer{id: 10, owner: 4}

	if got := f.handler.OnEnter(p); got != Penalized {
		t.Fatalf("Expected Penalized, got %v", got)
	}
	f.clock.Advance(999 * time.Millisecond)
	if got := f.handler.OnEnter(p); got != Debounced {
		t.Fatalf("Expected Debounced inside the cooldown, got %v", got)
	}
	f.clock.Advance(time.Millisecond)
	if got := f.handler.OnEnter(p); got != Penalized {
		t.Fatalf("Expected Penalized once the cooldown elapsed, got %v", got)
	}

	pl, _ := f.board.Player(4)
	if pl.Penalties.Get() != 2 || pl.Score.Get() != -2 {
		t.Errorf("Expected 2 penalties and score -2, got %d and %d", pl.Penalties.Get(), pl.Score.Get())
	}
	if f.board.Team() != -2 {
		t.Errorf("Expected team score -2, got %d", f.board.Team())
	}
	if len(f.notifier.toasts) != 2 || f.notifier.toasts[0] != "Bea fell into the pit! -1 point." {
		t.Errorf("Unexpected toasts: %q", f.notifier.toasts)
	}
}

func TestPlayerNotConnectedIsIgnored(t *testing.T) {
	f := newFixture(replicated.RoleServer)
	if got := f.handler.OnEnter(fakePlayer{id: 10, owner: 4}); got != Ignored {
		t.Errorf("Expected Ignored, got %v", got)
	}
}

func TestAnimalCaptureCreditsConnectedContributors(t *testing.T) {
	f := newFixture(replicated.RoleServer)
	f.board.Join(1)
	f.board.Join(2)
	f.board.SetName(1, "Ann")

	l := ledger.New(5*time.Second, f.clock)
	l.Record(2)
	l.Record(1)
	l.Record(3) // disconnected
	a := fakeAnimal{id: 42, kind: "Ox", ledger: l}

	if got := f.handler.OnEnter(a); got != Captured {
		t.Fatalf("Expected Captured, got %v", got)
	}

	want := "Ann, Player 2 corralled the Ox! +5 points."
	if len(f.notifier.toasts) != 1 || f.notifier.toasts[0] != want {
		t.Errorf("Expected toast %q, got %q", want, f.notifier.toasts)
	}
	for _, id := range []replicated.ClientID{1, 2} {
		p, _ := f.board.Player(id)
		if p.Assists.Get() != 1 || p.Score.Get() != 5 {
			t.Errorf("Player %d: expected 1 assist and 5 points, got %d and %d", id, p.Assists.Get(), p.Score.Get())
		}
	}
	if f.board.Team() != 5 {
		t.Errorf("Expected team score 5, got %d", f.board.Team())
	}
	if l.Len() != 0 {
		t.Error("Ledger should be cleared after capture")
	}
	if len(f.world.despawned) != 1 || f.world.despawned[0] != 42 {
		t.Errorf("Expected animal 42 despawned, got %v", f.world.despawned)
	}

	f.clock.Advance(1900 * time.Millisecond)
	f.timers.Advance()
	if f.spawner.spawned != 0 {
		t.Fatal("Respawn fired before the delay")
	}
	f.clock.Advance(100 * time.Millisecond)
	f.timers.Advance()
	if f.spawner.spawned != 1 {
		t.Errorf("Expected one respawn after the delay, got %d", f.spawner.spawned)
	}
}

func TestAnimalCaptureWithoutContributors(t *testing.T) {
	f := newFixture(replicated.RoleServer)
	a := fakeAnimal{id: 5, kind: "Dragon", ledger: ledger.New(0, f.clock)}

	f.handler.OnEnter(a)
	if want := "Team corralled the Dragon! +5 points."; f.notifier.toasts[0] != want {
		t.Errorf("Expected toast %q, got %q", want, f.notifier.toasts[0])
	}
}

func TestExpiredContributorGetsNoCredit(t *testing.T) {
	f := newFixture(replicated.RoleServer)
	f.board.Join(1)
	l := ledger.New(5*time.Second, f.clock)
	l.Record(1)
	f.clock.Advance(5 * time.Second)

	f.handler.OnEnter(fakeAnimal{id: 5, kind: "Pig", ledger: l})
	p, _ := f.board.Player(1)
	if p.Assists.Get() != 0 {
		t.Error("Contribution at exactly the window edge must have expired")
	}
}

func TestMissingSpawnerSkipsRespawn(t *testing.T) {
	f := newFixture(replicated.RoleServer)
	h := NewHandler(DefaultConfig(), Deps{Store: replicated.NewStore(replicated.RoleServer, nil), Board: f.board, Scheduler: f.timers, Clock: f.clock})
	if got := h.OnEnter(fakeAnimal{id: 1, kind: "Rat"}); got != Captured {
		t.Fatalf("Expected Captured, got %v", got)
	}
	if f.timers.Pending() != 0 {
		t.Error("No respawn may be scheduled without a spawner")
	}
}

func TestIgnoredEntrants(t *testing.T) {
	f := newFixture(replicated.RoleServer)
	if got := f.handler.OnEnter(fakeCrate{}); got != Ignored {
		t.Errorf("Expected Ignored for a crate, got %v", got)
	}

	c := newFixture(replicated.RoleClient)
	if got := c.handler.OnEnter(fakeAnimal{id: 1, kind: "Ox"}); got != Ignored {
		t.Errorf("Expected Ignored on the client, got %v", got)
	}
	if len(c.notifier.toasts) != 0 {
		t.Error("Client role must not toast")
	}
}

func TestCancelRespawnsDropsPendingTimers(t *testing.T) {
	f := newFixture(replicated.RoleServer)
	f.handler.OnEnter(fakeAnimal{id: 1, kind: "Ox"})
	f.handler.OnEnter(fakeAnimal{id: 2, kind: "Dog"})
	if f.handler.PendingRespawns() != 2 || f.timers.Pending() != 2 {
		t.Fatalf("Expected 2 pending respawns, got %d (timers %d)", f.handler.PendingRespawns(), f.timers.Pending())
	}

	if n := f.handler.CancelRespawns(); n != 2 {
		t.Errorf("Expected 2 cancelled respawns, got %d", n)
	}
	f.clock.Advance(DefaultConfig().RespawnDelay)
	f.timers.Advance()
	if f.spawner.spawned != 0 {
		t.Errorf("Cancelled respawns must not spawn, got %d", f.spawner.spawned)
	}

	f.handler.OnEnter(fakeAnimal{id: 3, kind: "Rat"})
	f.clock.Advance(DefaultConfig().RespawnDelay)
	f.timers.Advance()
	if f.spawner.spawned != 1 || f.handler.PendingRespawns() != 0 {
		t.Errorf("A fired respawn should leave nothing pending, spawned=%d pending=%d", f.spawner.spawned, f.handler.PendingRespawns())
	}
}
