package room

import (
	"time"

	"github.com/wfunc/herdparty/network"
	"github.com/wfunc/herdparty/replicated"
)

// Broadcaster delivers everything the room publishes. It is defined here to break the import cycle
// between room and broadcast.
type Broadcaster interface {
	replicated.Publisher
	Toast(msg string)
	Signal(name string)
	Snapshot(s network.WorldSnapshot)
	SendTo(clientID replicated.ClientID, msgID uint16, data []byte) error
}

// Metrics is the subset of the monitor the room reports to.
type Metrics interface {
	SetOnlinePlayers(n int)
	SetActiveAnimals(n int)
	IncRoundsStarted()
	IncRoundsFinished(won bool)
	IncAnimalsCaptured()
	IncPitPenalties()
	IncHerdImpulses()
	ObserveTick(d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) SetOnlinePlayers(int)        {}
func (nopMetrics) SetActiveAnimals(int)        {}
func (nopMetrics) IncRoundsStarted()           {}
func (nopMetrics) IncRoundsFinished(bool)      {}
func (nopMetrics) IncAnimalsCaptured()         {}
func (nopMetrics) IncPitPenalties()            {}
func (nopMetrics) IncHerdImpulses()            {}
func (nopMetrics) ObserveTick(d time.Duration) {}
