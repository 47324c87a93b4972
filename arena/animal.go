package arena

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/wfunc/herdparty/ledger"
	"github.com/wfunc/herdparty/motion"
)

// Animal is an AI-controlled body. Its position is moved either by its Navigator or by its Body,
// whichever the attached motion.Agent has enabled.
type Animal struct {
	id    uint64
	kind  string
	pos   mgl64.Vec3
	body  Body
	nav   Navigator
	agent *motion.Agent
}

func (a *Animal) EntityID() uint64         { return a.id }
func (a *Animal) Kind() string             { return a.kind }
func (a *Animal) Position() mgl64.Vec3     { return a.pos }
func (a *Animal) Body() *Body              { return &a.body }
func (a *Animal) Nav() *Navigator          { return &a.nav }
func (a *Animal) Agent() *motion.Agent     { return a.agent }
func (a *Animal) SetAgent(m *motion.Agent) { a.agent = m }

// Ledger returns the contributors of the attached agent, or nil when none is attached.
func (a *Animal) Ledger() *ledger.Ledger {
	if a.agent == nil {
		return nil
	}
	return a.agent.Ledger()
}

// Velocity is the velocity of whichever driver currently moves the animal.
func (a *Animal) Velocity() mgl64.Vec3 {
	if a.body.simulated {
		return a.body.vel
	}
	return a.nav.vel
}

// Body is the rigid-body driver of an animal.
type Body struct {
	simulated bool
	vel       mgl64.Vec3
}

func (b *Body) Simulated() bool                 { return b.simulated }
func (b *Body) SetSimulated(on bool)            { b.simulated = on }
func (b *Body) Velocity() mgl64.Vec3            { return b.vel }
func (b *Body) SetVelocity(v mgl64.Vec3)        { b.vel = v }
func (b *Body) AddVelocityChange(dv mgl64.Vec3) { b.vel = b.vel.Add(dv) }

// Navigator is the navigation driver of an animal. It walks straight toward its destination over
// navigable ground and gives up its path when the next step would leave it.
type Navigator struct {
	world   *World
	animal  *Animal
	enabled bool
	stopped bool
	hasPath bool
	dest    mgl64.Vec3
	speed   float64
	vel     mgl64.Vec3
}

func (n *Navigator) Enabled() bool                   { return n.enabled }
func (n *Navigator) SetEnabled(on bool)              { n.enabled = on }
func (n *Navigator) HasPath() bool                   { return n.hasPath }
func (n *Navigator) StoppingDistance() float64       { return n.world.cfg.StoppingDistance }
func (n *Navigator) ResetPath()                      { n.hasPath = false }
func (n *Navigator) SetStopped(stopped bool)         { n.stopped = stopped }
func (n *Navigator) SetSpeed(speed float64)          { n.speed = speed }
func (n *Navigator) ClearVelocity()                  { n.vel = mgl64.Vec3{} }
func (n *Navigator) Speed() float64                  { return n.speed }
func (n *Navigator) Destination() (mgl64.Vec3, bool) { return n.dest, n.hasPath }

func (n *Navigator) OnNavMesh() bool {
	p := n.animal.pos
	return n.enabled && n.world.Walkable(p[0], p[2]) && p[1] > -motion.NavMeshSnap && p[1] < motion.NavMeshSnap
}

func (n *Navigator) RemainingDistance() float64 {
	if !n.hasPath {
		return 0
	}
	return horizontal(n.dest.Sub(n.animal.pos)).Len()
}

func (n *Navigator) SetDestination(p mgl64.Vec3) {
	n.dest = p
	n.hasPath = true
}

func (n *Navigator) Warp(p mgl64.Vec3) {
	n.animal.pos = p
	n.vel = mgl64.Vec3{}
}

func (n *Navigator) step(dt float64) {
	n.vel = mgl64.Vec3{}
	if !n.enabled || n.stopped || !n.hasPath {
		return
	}
	d := horizontal(n.dest.Sub(n.animal.pos))
	dist := d.Len()
	if dist <= n.world.cfg.StoppingDistance {
		return
	}
	dir := d.Mul(1 / dist)
	next := n.animal.pos.Add(dir.Mul(min(n.speed*dt, dist)))
	if !n.world.Walkable(next[0], next[2]) {
		n.hasPath = false
		return
	}
	next[1] = 0
	n.animal.pos = next
	n.vel = dir.Mul(n.speed)
}

func horizontal(v mgl64.Vec3) mgl64.Vec3 {
	v[1] = 0
	return v
}
