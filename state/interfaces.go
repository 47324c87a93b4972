// state/interfaces.go
package state

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/wfunc/herdparty/replicated"
)

// World is the part of the arena the phase controller moves players and animals through.
type World interface {
	Teleport(owner replicated.ClientID, p mgl64.Vec3) bool
	DespawnAll() int
}

// Spawner is switched on for the duration of a round.
type Spawner interface {
	SetEnabled(on bool)
	EnsureTarget() int
}

// Signaler delivers one-shot UI signals to every client.
type Signaler interface {
	Signal(name string)
}
