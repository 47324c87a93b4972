// Package arena is the in-process physical world: floor, pits, walkable ground, player characters
// and animal bodies. It implements the navigation and sensing collaborators of package motion.
package arena

import (
	"maps"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/wfunc/herdparty/motion"
	"github.com/wfunc/herdparty/replicated"
)

// Entity is anything that can enter a pit.
type Entity interface {
	EntityID() uint64
}

// PitEvent reports that an entity entered a pit during a step.
type PitEvent struct {
	Pit    int
	Entity Entity
}

type World struct {
	layout Layout
	cfg    Config

	nextID     uint64
	characters map[replicated.ClientID]*Character
	animals    map[uint64]*Animal
	inPit      map[uint64]bool
}

func NewWorld(layout Layout, cfg Config) *World {
	return &World{
		layout:     layout,
		cfg:        cfg,
		characters: make(map[replicated.ClientID]*Character),
		animals:    make(map[uint64]*Animal),
		inPit:      make(map[uint64]bool),
	}
}

func (w *World) Layout() Layout { return w.layout }
func (w *World) Config() Config { return w.cfg }

func (w *World) newID() uint64 {
	w.nextID++
	return w.nextID
}

// AddCharacter creates the character of a player, or returns the existing one.
func (w *World) AddCharacter(owner replicated.ClientID) *Character {
	if c, ok := w.characters[owner]; ok {
		return c
	}
	c := &Character{id: w.newID(), owner: owner, grounded: true}
	w.characters[owner] = c
	return c
}

func (w *World) RemoveCharacter(owner replicated.ClientID) bool {
	c, ok := w.characters[owner]
	if !ok {
		return false
	}
	delete(w.characters, owner)
	delete(w.inPit, c.id)
	return true
}

func (w *World) Character(owner replicated.ClientID) *Character {
	return w.characters[owner]
}

// Characters returns all characters ordered by owner id.
func (w *World) Characters() []*Character {
	out := make([]*Character, 0, len(w.characters))
	for _, id := range slices.Sorted(maps.Keys(w.characters)) {
		out = append(out, w.characters[id])
	}
	return out
}

// Teleport moves a character and stops it.
func (w *World) Teleport(owner replicated.ClientID, p mgl64.Vec3) bool {
	c, ok := w.characters[owner]
	if !ok {
		return false
	}
	c.pos = p
	c.vel = mgl64.Vec3{}
	c.grounded = w.grounded(p)
	return true
}

// SpawnAnimal places a new animal body. Both drivers start disabled until an agent takes over.
func (w *World) SpawnAnimal(kind string, p mgl64.Vec3) *Animal {
	a := &Animal{id: w.newID(), kind: kind, pos: p}
	a.nav = Navigator{world: w, animal: a}
	w.animals[a.id] = a
	return a
}

func (w *World) Animal(id uint64) *Animal {
	return w.animals[id]
}

// Animals returns all live animals ordered by id.
func (w *World) Animals() []*Animal {
	out := make([]*Animal, 0, len(w.animals))
	for _, id := range slices.Sorted(maps.Keys(w.animals)) {
		out = append(out, w.animals[id])
	}
	return out
}

func (w *World) AliveAnimals() int { return len(w.animals) }

func (w *World) Despawn(id uint64) bool {
	if _, ok := w.animals[id]; !ok {
		return false
	}
	delete(w.animals, id)
	delete(w.inPit, id)
	return true
}

// DespawnAll removes every animal and returns how many were removed.
func (w *World) DespawnAll() int {
	n := len(w.animals)
	for id := range w.animals {
		w.Despawn(id)
	}
	return n
}

// GroundHeight is the floor height at a point: zero on the field, the pit bottom inside a pit.
func (w *World) GroundHeight(x, z float64) float64 {
	p := mgl64.Vec3{x, 0, z}
	for _, pit := range w.layout.Pits {
		if pit.horizontalDistance(p) < pit.Radius {
			return -pit.Depth
		}
	}
	return 0
}

// Walkable reports whether a point lies on navigable ground.
func (w *World) Walkable(x, z float64) bool {
	inside := false
	for _, r := range w.layout.Walkable {
		if r.Contains(x, z) {
			inside = true
			break
		}
	}
	if !inside {
		return false
	}
	p := mgl64.Vec3{x, 0, z}
	for _, pit := range w.layout.Pits {
		if pit.horizontalDistance(p) < pit.Radius+w.cfg.NavMargin {
			return false
		}
	}
	return true
}

// SamplePosition finds the nearest navigable point within maxDistance of p.
func (w *World) SamplePosition(p mgl64.Vec3, maxDistance float64) (mgl64.Vec3, bool) {
	best, bestDist := mgl64.Vec3{}, math.Inf(1)
	try := func(c mgl64.Vec3) {
		if !w.Walkable(c[0], c[2]) {
			return
		}
		if d := c.Sub(p).Len(); d < bestDist {
			best, bestDist = c, d
		}
	}

	try(mgl64.Vec3{p[0], 0, p[2]})
	for _, r := range w.layout.Walkable {
		try(mgl64.Vec3{mgl64.Clamp(p[0], r.MinX, r.MaxX), 0, mgl64.Clamp(p[2], r.MinZ, r.MaxZ)})
	}
	for _, pit := range w.layout.Pits {
		d := horizontal(p.Sub(mgl64.Vec3{pit.X, 0, pit.Z}))
		if d.LenSqr() < 1e-9 {
			d = mgl64.Vec3{1, 0, 0}
		}
		edge := d.Normalize().Mul(pit.Radius + w.cfg.NavMargin + 1e-6)
		try(mgl64.Vec3{pit.X + edge[0], 0, pit.Z + edge[2]})
	}

	if bestDist > maxDistance {
		return mgl64.Vec3{}, false
	}
	return best, true
}

func (w *World) grounded(p mgl64.Vec3) bool {
	return p[1]-w.GroundHeight(p[0], p[2]) <= w.cfg.GroundProbe
}

// SensorFor returns the ground probe and overlap query of one animal. The animal never sees itself.
func (w *World) SensorFor(a *Animal) motion.Sensor {
	return &sensor{world: w, self: a.id}
}

type sensor struct {
	world *World
	self  uint64
}

func (s *sensor) Grounded(p mgl64.Vec3) bool { return s.world.grounded(p) }

// Overlap returns every collider within radius. Characters carry two colliders each, so callers must
// deduplicate by root.
func (s *sensor) Overlap(p mgl64.Vec3, radius float64) []motion.Contact {
	var out []motion.Contact
	for _, c := range s.world.Characters() {
		for _, h := range []float64{bodyColliderHeight, headColliderHeight} {
			if c.pos.Add(mgl64.Vec3{0, h, 0}).Sub(p).Len() <= radius {
				out = append(out, motion.Contact{Root: c.id, Position: c.pos, Player: true, Owner: c.owner})
			}
		}
	}
	for _, a := range s.world.Animals() {
		if a.id == s.self {
			continue
		}
		if a.pos.Add(mgl64.Vec3{0, animalColliderHeight, 0}).Sub(p).Len() <= radius {
			out = append(out, motion.Contact{Root: a.id, Position: a.pos})
		}
	}
	return out
}

// Step integrates every character and every animal driver by dt and returns the pit entries it caused.
func (w *World) Step(dt float64) []PitEvent {
	var events []PitEvent

	for _, c := range w.Characters() {
		c.step(w.cfg, dt)
		c.pos, c.vel, c.grounded = w.resolve(c.pos, c.vel, characterRadius)
		events = w.detectPit(c, c.pos, events)
	}

	for _, a := range w.Animals() {
		switch {
		case a.body.simulated:
			a.body.vel[1] += w.cfg.Gravity * dt
			a.pos = a.pos.Add(a.body.vel.Mul(dt))
			var onGround bool
			a.pos, a.body.vel, onGround = w.resolve(a.pos, a.body.vel, animalRadius)
			if onGround {
				k := max(0, 1-w.cfg.GroundDrag*dt)
				a.body.vel[0] *= k
				a.body.vel[2] *= k
			}
		case a.nav.enabled:
			a.nav.step(dt)
		}
		events = w.detectPit(a, a.pos, events)
	}
	return events
}

// resolve keeps a body above the ground, inside pit walls once below the rim, and inside the floor.
func (w *World) resolve(p, v mgl64.Vec3, radius float64) (mgl64.Vec3, mgl64.Vec3, bool) {
	f := w.layout.Floor
	if p[0] < f.MinX || p[0] > f.MaxX {
		p[0] = mgl64.Clamp(p[0], f.MinX, f.MaxX)
		v[0] = 0
	}
	if p[2] < f.MinZ || p[2] > f.MaxZ {
		p[2] = mgl64.Clamp(p[2], f.MinZ, f.MaxZ)
		v[2] = 0
	}

	if p[1] < -rimTolerance {
		for _, pit := range w.layout.Pits {
			d := horizontal(p.Sub(mgl64.Vec3{pit.X, 0, pit.Z}))
			limit := pit.Radius - radius
			if d.Len() < pit.Radius+radius && d.Len() > limit && limit > 0 {
				d = d.Normalize().Mul(limit)
				p[0], p[2] = pit.X+d[0], pit.Z+d[2]
				v[0], v[2] = 0, 0
			}
		}
	}

	ground := w.GroundHeight(p[0], p[2])
	onGround := false
	if p[1] <= ground {
		p[1] = ground
		if v[1] < 0 {
			v[1] = 0
		}
		onGround = true
	}
	return p, v, onGround || p[1]-ground <= w.cfg.GroundProbe && v[1] <= 0
}

func (w *World) detectPit(e Entity, p mgl64.Vec3, events []PitEvent) []PitEvent {
	id := e.EntityID()
	for i, pit := range w.layout.Pits {
		if pit.horizontalDistance(p) < pit.Radius && p[1] < w.cfg.PitTriggerHeight {
			if !w.inPit[id] {
				w.inPit[id] = true
				events = append(events, PitEvent{Pit: i, Entity: e})
			}
			return events
		}
	}
	w.inPit[id] = false
	return events
}
