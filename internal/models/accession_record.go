package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AccessionRecord stores one version of an accessioned object. Rows are never
// deleted: superseded, deprecated and merged versions stay with Active=false.
type AccessionRecord struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Accession string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_accession_records_accession_version,priority:1" json:"accession" validate:"required"`
	Version   int            `gorm:"not null;uniqueIndex:idx_accession_records_accession_version,priority:2" json:"version" validate:"gte=1"`
	Hash      string         `gorm:"type:varchar(128);not null;index" json:"hash" validate:"required"`
	Active    bool           `gorm:"not null;default:false" json:"active"`
	Data      datatypes.JSON `gorm:"not null" json:"data"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName implements the gorm tabler interface.
func (AccessionRecord) TableName() string { return "accession_records" }

// BeforeCreate assigns a primary key when the caller left it empty.
func (r *AccessionRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
