package testutil

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/xenophobed/demi-provenance/internal/data/db"
	"github.com/xenophobed/demi-provenance/internal/platform/logger"
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.Nop()
}

// DB opens a fresh embedded database in the test's temp dir and migrates the
// full schema. Each test gets its own file, so tests that exercise
// repo-internal transactions (upsert demotion, cleanup, backfill) can commit
// without bleeding into each other.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "provenance_test.db")
	handle, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}
	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`PRAGMA foreign_keys=ON;`,
	} {
		if err := handle.Exec(pragma).Error; err != nil {
			tb.Fatalf("failed to apply %s: %v", pragma, err)
		}
	}
	if err := db.AutoMigrateAll(handle); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}
	if err := db.EnsureGraphIndexes(handle); err != nil {
		tb.Fatalf("failed to create indexes: %v", err)
	}
	tb.Cleanup(func() {
		if sqlDB, err := handle.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return handle
}

// Tx wraps a test in a transaction rolled back at cleanup.
func Tx(tb testing.TB, handle *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := handle.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
