package storage

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nuanyu/companion/backend/internal/model/chat"
	"github.com/nuanyu/companion/backend/internal/model/companion"
	"github.com/nuanyu/companion/backend/internal/model/progress"
)

// Open connects to the sqlite database and migrates the engine's tables.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 静默模式，避免SQL日志干扰
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the table schema.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&companion.Companion{},
		&chat.Message{},
		&DailyMessageQuota{},
		&progress.RelationshipProgress{},
		&progress.MemoryFragment{},
	)
	if err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	return nil
}
