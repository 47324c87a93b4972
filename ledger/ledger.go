// Package ledger tracks which players recently pushed an animal so a capture can be credited.
package ledger

import (
	"slices"
	"time"

	"github.com/wfunc/herdparty/replicated"
	"github.com/wfunc/herdparty/timer"
)

const DefaultWindow = 5 * time.Second

// Ledger is owned by one animal and only touched from the simulation goroutine.
type Ledger struct {
	window  time.Duration
	clock   timer.Clock
	entries map[replicated.ClientID]time.Time
}

func New(window time.Duration, clock timer.Clock) *Ledger {
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = timer.SystemClock{}
	}
	return &Ledger{
		window:  window,
		clock:   clock,
		entries: make(map[replicated.ClientID]time.Time),
	}
}

// Record upserts id with the current time.
func (l *Ledger) Record(id replicated.ClientID) {
	l.entries[id] = l.clock.Now()
}

// Prune drops entries whose window has closed. An entry recorded at T is gone from T+window on.
func (l *Ledger) Prune() {
	now := l.clock.Now()
	for id, at := range l.entries {
		if !now.Before(at.Add(l.window)) {
			delete(l.entries, id)
		}
	}
}

// Recent prunes and returns the surviving ids in ascending order.
func (l *Ledger) Recent() []replicated.ClientID {
	l.Prune()
	ids := make([]replicated.ClientID, 0, len(l.entries))
	for id := range l.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (l *Ledger) Clear() {
	clear(l.entries)
}

// Len counts entries without pruning.
func (l *Ledger) Len() int { return len(l.entries) }

func (l *Ledger) Window() time.Duration { return l.window }
