package motion

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/wfunc/herdparty/replicated"
)

// Transform exposes the position shared by both drivers.
type Transform interface {
	Position() mgl64.Vec3
}

// NavAgent is the navigation driver. While enabled it owns position integration.
type NavAgent interface {
	Enabled() bool
	SetEnabled(on bool)
	OnNavMesh() bool
	HasPath() bool
	RemainingDistance() float64
	StoppingDistance() float64
	SetDestination(p mgl64.Vec3)
	ResetPath()
	SetStopped(stopped bool)
	SetSpeed(speed float64)
	ClearVelocity()
	Warp(p mgl64.Vec3)
}

// RigidBody is the physics driver. While simulated it owns position integration.
type RigidBody interface {
	Simulated() bool
	SetSimulated(on bool)
	Velocity() mgl64.Vec3
	SetVelocity(v mgl64.Vec3)
	AddVelocityChange(dv mgl64.Vec3)
}

// NavMesh answers "nearest walkable point" queries.
type NavMesh interface {
	SamplePosition(p mgl64.Vec3, maxDistance float64) (mgl64.Vec3, bool)
}

// Contact is one collider found by an overlap query.
type Contact struct {
	Root     uint64
	Position mgl64.Vec3
	Player   bool
	Owner    replicated.ClientID
}

// Sensor runs the ground probe and the player overlap query.
type Sensor interface {
	Grounded(p mgl64.Vec3) bool
	Overlap(p mgl64.Vec3, radius float64) []Contact
}
