// services/round_service.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/herdparty/logger"
	"github.com/wfunc/herdparty/models"
	"github.com/wfunc/herdparty/persistence"
	"github.com/wfunc/herdparty/state"
)

const (
	DefaultQueueSize    = 64
	DefaultWriteTimeout = 5 * time.Second
)

// RoundService archives finished rounds from its own goroutine so the room never waits on storage.
type RoundService struct {
	db      persistence.Database
	timeout time.Duration
	queue   chan models.RoundRecord

	closeOnce sync.Once
	done      chan struct{}
}

func NewRoundService(db persistence.Database, queueSize int, timeout time.Duration) *RoundService {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	s := &RoundService{
		db:      db,
		timeout: timeout,
		queue:   make(chan models.RoundRecord, queueSize),
		done:    make(chan struct{}),
	}
	go s.loop()
	return s
}

// NewRecord converts a finished round into its archive form.
func NewRecord(s state.RoundSummary) models.RoundRecord {
	rec := models.RoundRecord{
		RoundID:   s.RoundID,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
		Duration:  s.Duration,
		Won:       s.Won,
		TeamScore: s.TeamScore,
		Players:   make([]models.PlayerResult, 0, len(s.Players)),
	}
	for _, p := range s.Players {
		rec.Players = append(rec.Players, models.PlayerResult{
			ClientID:  uint64(p.ID),
			Name:      p.Name,
			Score:     p.Score,
			Assists:   p.Assists,
			Penalties: p.Penalties,
		})
	}
	return rec
}

// Enqueue hands a finished round to the writer. It never blocks; a full queue drops the round.
func (s *RoundService) Enqueue(summary state.RoundSummary) bool {
	rec := NewRecord(summary)
	select {
	case s.queue <- rec:
		return true
	default:
		logger.Log.Warnw("round archive queue full, dropping round", "round", rec.RoundID)
		return false
	}
}

// Load reads an archived round back for admin tooling.
func (s *RoundService) Load(ctx context.Context, roundID string) (models.RoundRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.db.LoadRound(ctx, roundID)
}

// Close drains the queue, waits for the writer and closes the database.
func (s *RoundService) Close() error {
	s.closeOnce.Do(func() { close(s.queue) })
	<-s.done
	return s.db.Close()
}

func (s *RoundService) loop() {
	defer close(s.done)
	for rec := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if err := s.db.SaveRound(ctx, rec); err != nil {
			logger.Log.Errorw("failed to archive round", "round", rec.RoundID, "err", err)
		} else {
			logger.Log.Infow("round archived", "round", rec.RoundID, "outcome", rec.Outcome(), "players", len(rec.Players))
		}
		cancel()
	}
}
