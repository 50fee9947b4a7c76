package db

import (
	"fmt"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openclaw/agentops/internal/config"
)

// MySQLDSN builds a go-sql-driver DSN from discrete connection settings.
func MySQLDSN(cfg config.DatabaseConfig) string {
	mc := mysqldrv.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.Name
	mc.ParseTime = true
	return mc.FormatDSN()
}

// PostgresDSN builds a libpq keyword/value DSN from discrete connection settings.
func PostgresDSN(cfg config.DatabaseConfig) string {
	parts := []string{
		fmt.Sprintf("host=%s", cfg.Host),
		fmt.Sprintf("port=%d", cfg.Port),
		fmt.Sprintf("dbname=%s", cfg.Name),
		"sslmode=disable",
	}
	if cfg.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", cfg.User))
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}
	return strings.Join(parts, " ")
}

// SQLiteDSN returns a mattn/go-sqlite3 DSN for path with foreign keys
// enforced, so session deletes cascade.
func SQLiteDSN(path string) string {
	params := "_foreign_keys=on&_busy_timeout=5000"
	if path != ":memory:" && !strings.HasPrefix(path, "file::memory:") {
		params += "&_journal_mode=WAL"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params
}

// Dialector returns the gorm dialector for the configured driver.
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite", "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = SQLiteDSN(cfg.Path)
		}
		return sqlite.Open(dsn), nil
	case "mysql":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = MySQLDSN(cfg)
		}
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = PostgresDSN(cfg)
		}
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}

// Connect opens a GORM connection for cfg and sizes its pool. Driver
// errors for duplicate keys and foreign keys are translated to gorm's
// portable sentinels.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	level := logger.Silent
	if cfg.LogQueries {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db: pool: %w", err)
	}
	maxConns := cfg.MaxOpenConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	return db, nil
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("db: close: %w", err)
	}
	return sqlDB.Close()
}
