package dbtest

import (
	"exam_tracker_backend/pkg/database"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewTestDB returns a migrated in-memory sqlite database private to tb.
func NewTestDB(tb testing.TB) *gorm.DB {
	tb.Helper()

	db, err := database.Open(sqlite.Open("file::memory:"), gormlogger.Silent)
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("test db handle: %v", err)
	}
	// every pooled connection would otherwise get its own empty in-memory database
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		tb.Fatalf("enable foreign keys: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		tb.Fatalf("migrate test db: %v", err)
	}
	return db
}
