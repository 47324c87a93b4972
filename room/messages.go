package room

import (
	"github.com/wfunc/herdparty/arena"
	"github.com/wfunc/herdparty/network"
	"github.com/wfunc/herdparty/replicated"
)

// Join is issued once after the hello packet has been parsed.
type Join struct {
	ClientID replicated.ClientID
	Name     string
	Reply    chan<- JoinResult
}

type JoinResult struct {
	ClientID replicated.ClientID
	Phase    string
}

// Leave is issued on disconnect.
type Leave struct {
	ClientID replicated.ClientID
}

type SetName struct {
	ClientID replicated.ClientID
	Name     string
}

// ReportName updates only the lobby row of the sender.
type ReportName struct {
	ClientID replicated.ClientID
	Name     string
}

type SetReady struct {
	ClientID replicated.ClientID
	Ready    bool
}

type PlayAgain struct {
	ClientID replicated.ClientID
}

// Input carries the latest movement intent of a player.
type Input struct {
	ClientID replicated.ClientID
	Input    arena.Input
}

// Query asks the room goroutine for a snapshot of the world.
type Query struct {
	Reply chan<- network.WorldSnapshot
}
