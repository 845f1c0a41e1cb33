package database

import (
	"fmt"
	"strings"
	"time"

	pkgLogger "github.com/sjperalta/fintera-installments/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqlitePrefix selects the embedded driver, e.g. "sqlite:file:dev.db"
const sqlitePrefix = "sqlite:"

// Options tune the connection pool and SQL logging
type Options struct {
	LogLevel      logger.LogLevel
	SlowThreshold time.Duration
	MaxOpenConns  int
	MaxIdleConns  int
}

// DefaultOptions mirrors the production pool settings
func DefaultOptions(production bool) Options {
	level := logger.Info
	if production {
		level = logger.Silent
	}
	return Options{
		LogLevel:      level,
		SlowThreshold: 200 * time.Millisecond,
		MaxOpenConns:  50,
		MaxIdleConns:  5,
	}
}

// Connect opens PostgreSQL, or SQLite when the URL starts with "sqlite:"
func Connect(databaseURL string, opts Options) (*gorm.DB, error) {
	gormLogger := pkgLogger.NewGormLogger(opts.LogLevel, opts.SlowThreshold)

	dialector := postgres.Open(databaseURL)
	isSQLite := strings.HasPrefix(databaseURL, sqlitePrefix)
	if isSQLite {
		dialector = sqlite.Open(strings.TrimPrefix(databaseURL, sqlitePrefix))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            !isSQLite,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
	if isSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
