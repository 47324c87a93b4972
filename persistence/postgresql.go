// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/herdparty/models"
)

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(dsn string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init postgres tables: %w", err)
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS rounds (
            id SERIAL PRIMARY KEY,
            round_id VARCHAR(64) UNIQUE NOT NULL,
            started_at TIMESTAMPTZ NOT NULL,
            ended_at TIMESTAMPTZ NOT NULL,
            duration_ms BIGINT NOT NULL,
            won BOOLEAN NOT NULL,
            team_score INTEGER NOT NULL,
            players JSONB NOT NULL,
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_rounds_ended_at ON rounds(ended_at)`)
	return err
}

// SaveRound 保存对局记录, 重复的 round_id 覆盖旧记录
func (p *PostgreSQL) SaveRound(ctx context.Context, rec models.RoundRecord) error {
	players, err := json.Marshal(rec.Players)
	if err != nil {
		return fmt.Errorf("marshal players: %w", err)
	}

	query := `
        INSERT INTO rounds (round_id, started_at, ended_at, duration_ms, won, team_score, players)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (round_id)
        DO UPDATE SET ended_at = $3, duration_ms = $4, won = $5, team_score = $6, players = $7
    `
	_, err = p.db.ExecContext(ctx, query,
		rec.RoundID, rec.StartedAt, rec.EndedAt, rec.Duration.Milliseconds(), rec.Won, rec.TeamScore, players)
	return err
}

// LoadRound 加载对局记录
func (p *PostgreSQL) LoadRound(ctx context.Context, roundID string) (models.RoundRecord, error) {
	var (
		rec        models.RoundRecord
		durationMs int64
		players    []byte
	)
	query := `SELECT round_id, started_at, ended_at, duration_ms, won, team_score, players FROM rounds WHERE round_id = $1`
	err := p.db.QueryRowContext(ctx, query, roundID).
		Scan(&rec.RoundID, &rec.StartedAt, &rec.EndedAt, &durationMs, &rec.Won, &rec.TeamScore, &players)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, ErrRecordNotFound
		}
		return rec, err
	}
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	if err := json.Unmarshal(players, &rec.Players); err != nil {
		return rec, fmt.Errorf("unmarshal players: %w", err)
	}
	return rec, nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
