package db

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/openclaw/agentops/internal/models"
)

// AllModels returns every GORM model in dependency order: sessions first,
// since every other table references it.
func AllModels() []interface{} {
	return []interface{}{
		&models.Session{},
		&models.Step{},
		&models.LlmCall{},
		&models.ToolCall{},
		&models.SkillUsage{},
	}
}

// msEpochBound separates millisecond epochs (|v| < 1e15, within ±31000
// years) from nanosecond ones (about 1.7e18 today).
const msEpochBound int64 = 1_000_000_000_000_000

// migrations lists schema changes in the order they were introduced.
func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "001_core_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Session{}, &models.Step{}, &models.LlmCall{}, &models.ToolCall{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("tool_calls", "llm_calls", "steps", "sessions")
			},
		},
		{
			ID: "002_skill_usages",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.SkillUsage{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("skill_usages")
			},
		},
		{
			// Epochs were stored in milliseconds before this migration.
			ID: "003_start_time_epoch_nanos",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec("UPDATE sessions SET start_time_epoch = start_time_epoch * 1000000 WHERE start_time_epoch BETWEEN ? AND ?",
					-msEpochBound, msEpochBound).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("UPDATE sessions SET start_time_epoch = start_time_epoch / 1000000").Error
			},
		},
	}
}

// Migrate applies every pending migration.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations())
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}

// Reset drops every agentops table, including the migration ledger, and
// migrates again from scratch.
func Reset(db *gorm.DB) error {
	tables := []string{"skill_usages", "tool_calls", "llm_calls", "steps", "sessions", gormigrate.DefaultOptions.TableName}
	for _, t := range tables {
		if err := db.Migrator().DropTable(t); err != nil {
			return fmt.Errorf("db: drop %s: %w", t, err)
		}
	}
	return Migrate(db)
}
