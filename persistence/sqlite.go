// persistence/sqlite.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wfunc/herdparty/models"
)

// SQLite 本地单文件归档
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty sqlite path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS rounds (
			round_id TEXT PRIMARY KEY,
			started_at_ms INTEGER NOT NULL,
			ended_at_ms INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			won INTEGER NOT NULL,
			team_score INTEGER NOT NULL,
			players TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_ended_at ON rounds(ended_at_ms);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) SaveRound(ctx context.Context, rec models.RoundRecord) error {
	players, err := json.Marshal(rec.Players)
	if err != nil {
		return fmt.Errorf("marshal players: %w", err)
	}
	won := 0
	if rec.Won {
		won = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rounds (round_id, started_at_ms, ended_at_ms, duration_ms, won, team_score, players)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (round_id) DO UPDATE SET
			ended_at_ms = excluded.ended_at_ms,
			duration_ms = excluded.duration_ms,
			won = excluded.won,
			team_score = excluded.team_score,
			players = excluded.players`,
		rec.RoundID, rec.StartedAt.UnixMilli(), rec.EndedAt.UnixMilli(), rec.Duration.Milliseconds(), won, rec.TeamScore, string(players))
	return err
}

func (s *SQLite) LoadRound(ctx context.Context, roundID string) (models.RoundRecord, error) {
	var (
		rec                      models.RoundRecord
		startMs, endMs, duration int64
		won                      int
		players                  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT round_id, started_at_ms, ended_at_ms, duration_ms, won, team_score, players FROM rounds WHERE round_id = ?`,
		roundID).Scan(&rec.RoundID, &startMs, &endMs, &duration, &won, &rec.TeamScore, &players)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, ErrRecordNotFound
		}
		return rec, err
	}
	rec.StartedAt = time.UnixMilli(startMs)
	rec.EndedAt = time.UnixMilli(endMs)
	rec.Duration = time.Duration(duration) * time.Millisecond
	rec.Won = won != 0
	if err := json.Unmarshal([]byte(players), &rec.Players); err != nil {
		return rec, fmt.Errorf("unmarshal players: %w", err)
	}
	return rec, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
