package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"inkwell-server-go/internal/platform/storage/migrations"
)

// Global database instance shared by the repositories.
var db *gorm.DB

// InitDatabase opens the SQLite database at the given path and applies
// migrations. Safe to call more than once; only the first call opens.
// Pass ":memory:" for an ephemeral database.
func InitDatabase(path string) error {
	if db != nil {
		return nil
	}

	if path == "" {
		path = filepath.Join("data", "inkwell.db")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	var err error
	db, err = gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// Every sqlite connection gets its own memory database; pin the
		// pool to one so migrations and queries share it.
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	} else if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.AutoMigrate(&AttachmentRecord{}, &UploadEvent{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	migrationManager := NewMigrationManager(db)
	migrationManager.AddMigration(&migrations.Migration001Attachments{})

	if err := migrationManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// GetDB returns the global database instance.
func GetDB() *gorm.DB {
	if db == nil {
		panic("database not initialized, call InitDatabase() first")
	}
	return db
}

// ResetForTest drops the global handle so tests can reopen a fresh database.
func ResetForTest() {
	db = nil
}

// AttachmentRecord is the GORM model behind attachment persistence.
type AttachmentRecord struct {
	ID        string         `gorm:"type:varchar(36);primaryKey"`
	SessionID string         `gorm:"type:varchar(64);index"`
	FileName  string         `gorm:"not null"`
	Format    string         `gorm:"type:varchar(16)"`
	Size      int64          `gorm:"not null"`
	Hash      string         `gorm:"type:varchar(64);index"`
	URL       string         `gorm:"type:varchar(512)"`
	Metadata  datatypes.JSON `gorm:"type:json"`
	CreatedAt time.Time      `gorm:"index"`
}

// UploadEvent is the journal row behind the event bus persistence.
type UploadEvent struct {
	ID           uint           `gorm:"primaryKey;autoIncrement"`
	EventType    string         `gorm:"type:varchar(64);index;not null"`
	SessionID    string         `gorm:"type:varchar(64);index"`
	AttachmentID string         `gorm:"type:varchar(36)"`
	Data         datatypes.JSON `gorm:"type:json"`
	CreatedAt    time.Time      `gorm:"not null"`
}
