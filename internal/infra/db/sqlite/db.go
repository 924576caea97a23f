// Package sqlite is the single-file storage backend, built on GORM with the
// pure Go SQLite driver. It is meant for small deployments that do not run
// Postgres.
package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenSQLite opens (or creates) the database at path, applies PRAGMAs and
// migrates the schema.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	} {
		if err := db.Exec(p).Error; err != nil {
			return nil, fmt.Errorf("sqlite %s: %w", p, err)
		}
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetMaxIdleConns(4)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&userConfigRow{}, &userChannelRow{})
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type userConfigRow struct {
	UserID          int64 `gorm:"primaryKey;autoIncrement:false"`
	APIURL          *string
	APIKey          *string
	ServiceID       *string
	DefaultQuantity *int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (userConfigRow) TableName() string { return "user_configs" }

type userChannelRow struct {
	UserID   int64  `gorm:"primaryKey;autoIncrement:false"`
	Channel  string `gorm:"primaryKey;index:idx_user_channels_channel"`
	Position int
	AddedAt  time.Time
}

func (userChannelRow) TableName() string { return "user_channels" }
