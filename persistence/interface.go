// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/herdparty/models"
)

// Database 对局归档接口
type Database interface {
	SaveRound(ctx context.Context, rec models.RoundRecord) error
	LoadRound(ctx context.Context, roundID string) (models.RoundRecord, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrUnknownDriver   = errors.New("unknown archive driver")
	ErrArchiveDisabled = errors.New("archive disabled")
)

// Open picks an implementation by driver name. An empty driver disables the archive.
func Open(driver, dsn string) (Database, error) {
	var (
		db  Database
		err error
	)
	switch driver {
	case "", "none":
		return Nop{}, nil
	case "gorm":
		db, err = NewGormPostgreSQL(dsn)
	case "postgres":
		db, err = NewPostgreSQL(dsn)
	case "sqlite":
		db, err = NewSQLite(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Nop discards every round.
type Nop struct{}

func (Nop) SaveRound(context.Context, models.RoundRecord) error { return nil }
func (Nop) Close() error                                        { return nil }

func (Nop) LoadRound(context.Context, string) (models.RoundRecord, error) {
	return models.RoundRecord{}, ErrArchiveDisabled
}
