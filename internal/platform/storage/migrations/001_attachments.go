package migrations

import (
	"gorm.io/gorm"
)

// Migration001Attachments creates the attachment tables.
type Migration001Attachments struct{}

func (m *Migration001Attachments) Version() string {
	return "001_attachments"
}

func (m *Migration001Attachments) Description() string {
	return "Create attachment and upload event tables"
}

func (m *Migration001Attachments) Up(db *gorm.DB) error {
	// Raw SQL keeps the schema exact; AutoMigrate is too loose for migrations.
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS attachment_records (
			id VARCHAR(36) PRIMARY KEY,
			session_id VARCHAR(64),
			file_name VARCHAR(255) NOT NULL,
			format VARCHAR(16),
			size INTEGER NOT NULL,
			hash VARCHAR(64),
			url VARCHAR(512),
			metadata JSON,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return err
	}

	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS upload_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type VARCHAR(64) NOT NULL,
			session_id VARCHAR(64),
			attachment_id VARCHAR(36),
			data JSON,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return err
	}

	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_attachment_records_session_id ON attachment_records(session_id)`).Error; err != nil {
		return err
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_attachment_records_hash ON attachment_records(hash)`).Error; err != nil {
		return err
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_attachment_records_created_at ON attachment_records(created_at)`).Error; err != nil {
		return err
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_upload_events_event_type ON upload_events(event_type)`).Error; err != nil {
		return err
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_upload_events_session_id ON upload_events(session_id)`).Error; err != nil {
		return err
	}

	return nil
}

func (m *Migration001Attachments) Down(db *gorm.DB) error {
	if err := db.Exec(`DROP TABLE IF EXISTS upload_events`).Error; err != nil {
		return err
	}
	if err := db.Exec(`DROP TABLE IF EXISTS attachment_records`).Error; err != nil {
		return err
	}

	return nil
}
