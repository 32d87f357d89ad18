package orm

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Driver      string `mapstructure:"driver"` // mysql / sqlite
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"` // 秒
	LogLevel    string `mapstructure:"log_level"`    // silent / error / warn / info
}

// Open 按驱动打开 gorm，sqlite 主要给测试和单机演示用
func Open(c *Config) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch c.Driver {
	case "", "mysql":
		dial = mysql.Open(c.DSN)
	case "sqlite":
		dsn := c.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		dial = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("orm: unsupported driver %q", c.Driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger:                 logger.Default.LogMode(parseLevel(c.LogLevel)),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("orm: open %s: %w", c.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// 连接池
	if c.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(c.MaxIdle)
	}
	if c.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(c.MaxOpen)
	}
	if c.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(c.MaxLifetime) * time.Second)
	}
	// :memory: 每个连接都是一个独立的库，只能用单连接
	if c.Driver == "sqlite" && (c.DSN == "" || c.DSN == ":memory:") {
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func parseLevel(s string) logger.LogLevel {
	switch s {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
