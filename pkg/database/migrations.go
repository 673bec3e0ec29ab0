package database

import (
	"gorm.io/gorm"

	"github.com/accession-studio/engine/internal/models"
)

// registerModels returns all models that need migration
func registerModels() []interface{} {
	return []interface{}{
		&models.AccessionRecord{},
		&models.AccessionOperation{},
	}
}

// Migrate brings the accession schema up to date. It is idempotent.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(registerModels()...); err != nil {
		return err
	}
	return runCustomMigrations(db)
}

// runCustomMigrations handles schema changes AutoMigrate can't handle
func runCustomMigrations(db *gorm.DB) error {
	migrations := []func(*gorm.DB) error{
		addActiveHashIndex,
		addActiveAccessionIndex,
	}

	for _, migration := range migrations {
		if err := migration(db); err != nil {
			return err
		}
	}

	return nil
}

// addActiveHashIndex is the storage-level guarantee that no two active records
// share a hash. Both SQLite and Postgres support partial indexes.
func addActiveHashIndex(db *gorm.DB) error {
	return db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_accession_records_active_hash
		ON accession_records(hash)
		WHERE active
	`).Error
}

// addActiveAccessionIndex speeds up lookups of the current version.
func addActiveAccessionIndex(db *gorm.DB) error {
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_accession_records_active_accession
		ON accession_records(accession)
		WHERE active
	`).Error
}
