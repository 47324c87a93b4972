// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/herdparty/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(dsn string) (*GormPostgreSQL, error) {
	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,   // 慢SQL阈值
			LogLevel:      logger.Silent, // 日志级别
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.GormRound{}, &models.GormRoundPlayer{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &GormPostgreSQL{db: db}, nil
}

// SaveRound 在一个事务里保存对局和玩家成绩, 重复的 round_id 覆盖旧记录
func (p *GormPostgreSQL) SaveRound(ctx context.Context, rec models.RoundRecord) error {
	round := models.NewGormRound(rec)
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.GormRound
		err := tx.Where("round_id = ?", rec.RoundID).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Unscoped().Where("gorm_round_id = ?", existing.ID).Delete(&models.GormRoundPlayer{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Delete(&existing).Error; err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		// 玩家成绩随关联一起创建
		return tx.Create(&round).Error
	})
}

// LoadRound 加载对局记录
func (p *GormPostgreSQL) LoadRound(ctx context.Context, roundID string) (models.RoundRecord, error) {
	var round models.GormRound
	err := p.db.WithContext(ctx).Preload("Players").Where("round_id = ?", roundID).First(&round).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RoundRecord{}, ErrRecordNotFound
		}
		return models.RoundRecord{}, err
	}
	return round.Record(), nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
