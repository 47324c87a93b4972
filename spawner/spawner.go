// Package spawner keeps the arena populated with animals.
package spawner

import (
	"math/rand"

	"github.com/wfunc/herdparty/arena"
	"github.com/wfunc/herdparty/logger"
	"github.com/wfunc/herdparty/motion"
	"github.com/wfunc/herdparty/replicated"
	"github.com/wfunc/herdparty/timer"
)

const DefaultTargetAlive = 10

type Spawner struct {
	world   *arena.World
	store   *replicated.Store
	motion  motion.Config
	clock   timer.Clock
	rng     *rand.Rand
	target  int
	enabled bool
}

func New(world *arena.World, store *replicated.Store, cfg motion.Config, target int, clock timer.Clock, rng *rand.Rand) *Spawner {
	if target <= 0 {
		target = DefaultTargetAlive
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Spawner{
		world:  world,
		store:  store,
		motion: cfg,
		clock:  clock,
		rng:    rng,
		target: target,
	}
}

func (s *Spawner) Target() int        { return s.target }
func (s *Spawner) Enabled() bool      { return s.enabled }
func (s *Spawner) SetEnabled(on bool) { s.enabled = on }

// SpawnOne places one animal of a random kind at a random spawn point. It refuses outside the
// server role, while disabled, and once the alive count has reached the target.
func (s *Spawner) SpawnOne() bool {
	if !s.store.IsServer() || !s.enabled || s.world.AliveAnimals() >= s.target {
		return false
	}
	layout := s.world.Layout()
	if len(layout.AnimalSpawns) == 0 || len(layout.AnimalKinds) == 0 {
		return false
	}
	at := layout.AnimalSpawns[s.rng.Intn(len(layout.AnimalSpawns))].Vec()
	kind := layout.AnimalKinds[s.rng.Intn(len(layout.AnimalKinds))]

	a := s.world.SpawnAnimal(kind, at)
	agent := motion.NewAgent(a.EntityID(), kind, s.motion, motion.Deps{
		Transform: a,
		Nav:       a.Nav(),
		Body:      a.Body(),
		Sensor:    s.world.SensorFor(a),
		Mesh:      s.world,
		Clock:     s.clock,
		Rand:      rand.New(rand.NewSource(s.rng.Int63())),
		Store:     s.store,
	})
	a.SetAgent(agent)
	agent.Spawn()
	logger.Log.Debugw("animal spawned", "id", a.EntityID(), "kind", kind, "x", at.X(), "z", at.Z())
	return true
}

// EnsureTarget spawns until the alive count reaches the target and returns how many it spawned.
func (s *Spawner) EnsureTarget() int {
	n := 0
	for s.world.AliveAnimals() < s.target {
		if !s.SpawnOne() {
			break
		}
		n++
	}
	return n
}
