// Package dbtest opens migrated in-memory sqlite databases for tests.
package dbtest

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openclaw/agentops/internal/db"
)

// Open returns a migrated in-memory database that is closed when the test
// ends. The pool is pinned to one connection because every sqlite
// ":memory:" connection is its own database.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(db.SQLiteDSN(":memory:")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("test db pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return gdb
}
