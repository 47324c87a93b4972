// Package motion decides, every tick, whether an animal is driven by navigation or by physics,
// and steers it away from the players herding it.
package motion

import (
	"math"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/wfunc/herdparty/ledger"
	"github.com/wfunc/herdparty/replicated"
	"github.com/wfunc/herdparty/timer"
)

type Mode int

const (
	ModeNavigating Mode = iota
	ModePhysics
)

func (m Mode) String() string {
	if m == ModePhysics {
		return "physics"
	}
	return "navigating"
}

// Status is the observable behaviour of an animal.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusAirborne  Status = "airborne"
	StatusWandering Status = "wandering"
	StatusHerdKick  Status = "herd_kick"
	StatusFullSpeed Status = "full_speed"
	StatusSlow      Status = "slow"
)

type Deps struct {
	Transform Transform
	Nav       NavAgent
	Body      RigidBody
	Sensor    Sensor
	Mesh      NavMesh
	Clock     timer.Clock
	Rand      *rand.Rand
	Store     *replicated.Store
}

// Report describes what one tick did.
type Report struct {
	Mode    Mode
	Status  Status
	Impulse bool
	Nearby  int
	Aligned int
}

type Agent struct {
	id   uint64
	kind string
	cfg  Config

	tf     Transform
	nav    NavAgent
	body   RigidBody
	sensor Sensor
	mesh   NavMesh
	clock  timer.Clock
	rng    *rand.Rand
	store  *replicated.Store
	ledger *ledger.Ledger

	mode             Mode
	status           Status
	grounded         bool
	lastTickWasKick  bool
	nextImpulseAt    time.Time
	physicsLockUntil time.Time
	wanderTimer      time.Duration
	stuckTimer       time.Duration
	lastPos          mgl64.Vec3
}

func NewAgent(id uint64, kind string, cfg Config, deps Deps) *Agent {
	if deps.Clock == nil {
		deps.Clock = timer.SystemClock{}
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(int64(id)))
	}
	return &Agent{
		id:     id,
		kind:   kind,
		cfg:    cfg,
		tf:     deps.Transform,
		nav:    deps.Nav,
		body:   deps.Body,
		sensor: deps.Sensor,
		mesh:   deps.Mesh,
		clock:  deps.Clock,
		rng:    deps.Rand,
		store:  deps.Store,
		ledger: ledger.New(cfg.AssistWindow, deps.Clock),
		status: StatusIdle,
	}
}

func (a *Agent) ID() uint64                  { return a.id }
func (a *Agent) Kind() string                { return a.kind }
func (a *Agent) Mode() Mode                  { return a.mode }
func (a *Agent) Status() Status              { return a.status }
func (a *Agent) Ledger() *ledger.Ledger      { return a.ledger }
func (a *Agent) Position() mgl64.Vec3        { return a.tf.Position() }
func (a *Agent) Grounded() bool              { return a.grounded }
func (a *Agent) Kicking() bool               { return a.lastTickWasKick }
func (a *Agent) PhysicsLockUntil() time.Time { return a.physicsLockUntil }

// Drivers reports which drivers are currently enabled.
func (a *Agent) Drivers() (nav, physics bool) {
	return a.nav.Enabled(), a.body.Simulated()
}

// Spawn hands the freshly placed animal to navigation.
func (a *Agent) Spawn() {
	if !a.store.IsServer() {
		return
	}
	a.enterNavigating()
	a.nav.SetSpeed(a.cfg.BaseSpeed)
	a.lastPos = a.tf.Position()
}

// Tick runs perception and steering once. It does nothing outside the server role.
func (a *Agent) Tick(dt time.Duration) Report {
	if !a.store.IsServer() {
		return Report{Mode: a.mode, Status: a.status}
	}

	rep := Report{}
	pos := a.tf.Position()
	a.grounded = a.sensor.Grounded(pos)

	// Airborne: physics owns the animal, no perception.
	if !a.grounded {
		a.enterPhysics()
		a.status = StatusAirborne
		a.lastPos = pos
		rep.Mode, rep.Status = a.mode, a.status
		return rep
	}

	// The kick flag survives airborne ticks and is cleared by any perceived tick without a herd.
	wasKick := a.lastTickWasKick
	a.lastTickWasKick = false

	contacts := a.sensor.Overlap(pos, a.cfg.InfluenceRadius)
	if len(contacts) == 0 {
		if a.mode == ModePhysics {
			a.tryExitPhysics(true)
		}
		a.wander(dt)
	} else {
		a.herd(pos, contacts, wasKick, dt, &rep)
	}

	// Anti-stuck only while navigation drives.
	cur := a.tf.Position()
	if a.mode == ModeNavigating {
		if cur.Sub(a.lastPos).Len() < a.cfg.MinMoveDistance {
			a.stuckTimer += dt
			if a.stuckTimer >= a.cfg.StuckRepathTime {
				a.pickRandomDestination()
				a.stuckTimer = 0
			}
		} else {
			a.stuckTimer = 0
		}
	}
	a.lastPos = cur

	rep.Mode, rep.Status = a.mode, a.status
	return rep
}

func (a *Agent) wander(dt time.Duration) {
	if a.mode == ModePhysics {
		return
	}
	a.ensureNavigating()
	a.status = StatusWandering
	a.nav.SetSpeed(a.cfg.BaseSpeed)

	a.wanderTimer += dt
	if a.wanderTimer >= a.cfg.WanderInterval || a.reachedDestination() {
		a.wanderTimer = 0
		a.pickRandomDestination()
	}
}

func (a *Agent) herd(pos mgl64.Vec3, contacts []Contact, wasKick bool, dt time.Duration, rep *Report) {
	seen := make(map[uint64]struct{}, len(contacts))
	players := make([]Contact, 0, len(contacts))
	pushes := make([]mgl64.Vec3, 0, len(contacts))

	for _, c := range contacts {
		if _, dup := seen[c.Root]; dup {
			continue
		}
		if a.cfg.RequirePlayerRoot && !c.Player {
			continue
		}
		seen[c.Root] = struct{}{}
		players = append(players, c)
		pushes = append(pushes, awayOnPlane(pos, c.Position))
	}

	rep.Nearby = len(players)
	if len(players) == 0 {
		if a.mode == ModePhysics {
			a.tryExitPhysics(true)
		}
		a.wander(dt)
		return
	}

	a.recordContributors(players)

	var sum mgl64.Vec3
	for _, d := range pushes {
		sum = sum.Add(d)
	}
	if sum.LenSqr() < negligibleSumSqr {
		if a.mode == ModePhysics {
			a.tryExitPhysics(false)
		}
		a.wander(dt)
		return
	}
	dominant := sum.Normalize()

	cosThreshold := math.Cos(mgl64.DegToRad(a.cfg.AlignAngleDegrees))
	aligned := 0
	for _, d := range pushes {
		if dominant.Dot(d) >= cosThreshold {
			aligned++
		}
	}
	rep.Aligned = aligned

	if len(players) >= 2 && aligned >= 2 {
		a.recordContributors(players)
		a.enterPhysics()
		a.status = StatusHerdKick

		// Impulse only on the rising edge of the herd condition, and never inside the cooldown.
		now := a.clock.Now()
		if !wasKick && !now.Before(a.nextImpulseAt) {
			a.body.AddVelocityChange(dominant.Mul(a.cfg.ImpulseStrength))
			a.nextImpulseAt = now.Add(a.cfg.ImpulseCooldown)
			rep.Impulse = true
		}
		a.lastTickWasKick = true
		return
	}

	if a.mode == ModePhysics {
		a.tryExitPhysics(false)
	}

	speed := a.cfg.BaseSpeed
	a.status = StatusFullSpeed
	if aligned < 2 {
		speed *= a.cfg.SlowMultiplier
		a.status = StatusSlow
	}
	a.nav.SetSpeed(speed)

	target := pos.Add(dominant.Mul(steerStep))
	a.ensureNavigating()
	if a.nav.Enabled() && a.nav.OnNavMesh() {
		if hit, ok := a.mesh.SamplePosition(target, steerSampleRange); ok {
			a.nav.SetDestination(hit)
		} else {
			a.nav.SetDestination(pos.Add(dominant))
		}
	}
}

func (a *Agent) recordContributors(players []Contact) {
	for _, p := range players {
		if p.Player {
			a.ledger.Record(p.Owner)
		}
	}
	a.ledger.Prune()
}

// awayOnPlane is the horizontal unit vector from player to animal, or zero when degenerate.
func awayOnPlane(animal, player mgl64.Vec3) mgl64.Vec3 {
	d := animal.Sub(player)
	d[1] = 0
	if d.LenSqr() > degeneratePushSqr {
		return d.Normalize()
	}
	return mgl64.Vec3{}
}

func (a *Agent) reachedDestination() bool {
	if !a.nav.Enabled() || !a.nav.OnNavMesh() {
		return false
	}
	if !a.nav.HasPath() {
		return true
	}
	return a.nav.RemainingDistance() <= a.nav.StoppingDistance()
}

func (a *Agent) pickRandomDestination() {
	if !a.nav.Enabled() || !a.nav.OnNavMesh() {
		return
	}
	pos := a.tf.Position()
	for i := 0; i < wanderAttempts; i++ {
		p := pos.Add(a.insideUnitSphere().Mul(a.cfg.WanderRadius))
		p[1] = pos[1]
		if hit, ok := a.mesh.SamplePosition(p, wanderSample); ok {
			a.nav.SetDestination(hit)
			return
		}
	}
}

func (a *Agent) insideUnitSphere() mgl64.Vec3 {
	for {
		v := mgl64.Vec3{a.rng.Float64()*2 - 1, a.rng.Float64()*2 - 1, a.rng.Float64()*2 - 1}
		if v.LenSqr() <= 1 {
			return v
		}
	}
}

// enterPhysics stops navigation completely before physics takes over. Velocity is kept.
func (a *Agent) enterPhysics() {
	if a.mode == ModePhysics {
		return
	}
	if a.nav.Enabled() {
		if a.nav.OnNavMesh() {
			a.nav.SetStopped(true)
			a.nav.ResetPath()
		}
		a.nav.ClearVelocity()
		a.nav.SetEnabled(false)
	}
	a.body.SetSimulated(true)

	a.mode = ModePhysics
	a.physicsLockUntil = a.clock.Now().Add(a.cfg.PhysicsReenableCooldown)
}

// tryExitPhysics hands back to navigation once the lock expired, the animal is grounded and it
// has settled. force skips all three checks.
func (a *Agent) tryExitPhysics(force bool) {
	if !force {
		if a.clock.Now().Before(a.physicsLockUntil) {
			return
		}
		if !a.grounded {
			return
		}
		if a.body.Velocity().Len() > a.cfg.ReenableVelocityThreshold {
			return
		}
	}
	a.enterNavigating()
}

// enterNavigating refuses to leave physics when no walkable ground is within snapping distance.
func (a *Agent) enterNavigating() bool {
	hit, ok := a.mesh.SamplePosition(a.tf.Position(), NavMeshSnap)
	if !ok {
		a.nav.SetEnabled(false)
		a.body.SetSimulated(true)
		a.mode = ModePhysics
		a.physicsLockUntil = a.clock.Now().Add(a.cfg.PhysicsReenableCooldown)
		return false
	}

	a.body.SetVelocity(mgl64.Vec3{})
	a.body.SetSimulated(false)

	a.nav.SetEnabled(true)
	a.nav.Warp(hit)
	a.nav.SetStopped(false)
	a.mode = ModeNavigating
	return true
}

func (a *Agent) ensureNavigating() {
	if a.mode == ModeNavigating && (!a.nav.Enabled() || !a.nav.OnNavMesh()) {
		a.enterNavigating()
	}
}
