package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/xenophobed/demi-provenance/internal/platform/envutil"
	"github.com/xenophobed/demi-provenance/internal/platform/logger"
)

// SQLiteService owns the embedded database handle for the process. The graph
// store is a single shared file; WAL keeps readers unblocked by writers.
type SQLiteService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSQLiteService(logg *logger.Logger) (*SQLiteService, error) {
	serviceLog := logg.With("service", "SQLiteService")

	path := envutil.String("PROVENANCE_DB_PATH", "provenance.db")
	return newSQLiteService(serviceLog, path)
}

// NewSQLiteServiceAt opens the store at an explicit path; used by CLIs and
// tests that point at a scratch database.
func NewSQLiteServiceAt(logg *logger.Logger, path string) (*SQLiteService, error) {
	return newSQLiteService(logg.With("service", "SQLiteService"), path)
}

func newSQLiteService(serviceLog *logger.Logger, path string) (*SQLiteService, error) {
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store at %s: %w", path, err)
	}

	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`PRAGMA foreign_keys=ON;`,
	} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	serviceLog.Info("opened embedded store", "path", path)
	return &SQLiteService{db: db, log: serviceLog}, nil
}

func (s *SQLiteService) DB() *gorm.DB { return s.db }

func (s *SQLiteService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
