package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OperationType is the terminal lifecycle annotation recorded for a lineage.
type OperationType string

const (
	OperationDeprecated OperationType = "deprecated"
	OperationMerged     OperationType = "merged"
)

// LifecycleState is derived from an accession's records and its operation, if any.
type LifecycleState string

const (
	StateActive     LifecycleState = "ACTIVE"
	StateDeprecated LifecycleState = "DEPRECATED"
	StateMerged     LifecycleState = "MERGED"
)

// AccessionOperation annotates a lineage as deprecated or merged. A lineage
// carries at most one operation; the unique index makes concurrent
// deprecate/merge attempts conflict at commit. For merges it is the MergeLink
// (Accession -> MergeInto).
type AccessionOperation struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Accession string        `gorm:"type:varchar(255);not null;uniqueIndex" json:"accession" validate:"required"`
	Type      OperationType `gorm:"type:varchar(32);not null;index" json:"type" validate:"required,oneof=deprecated merged"`
	MergeInto string        `gorm:"type:varchar(255);index" json:"merge_into,omitempty"`
	Reason    string        `gorm:"type:text" json:"reason"`
	CreatedAt time.Time     `gorm:"not null" json:"created_at"`
}

// TableName implements the gorm tabler interface.
func (AccessionOperation) TableName() string { return "accession_operations" }

// BeforeCreate assigns a primary key when the caller left it empty.
func (o *AccessionOperation) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// State maps the operation onto the lineage lifecycle.
func (o *AccessionOperation) State() LifecycleState {
	if o == nil {
		return StateActive
	}
	switch o.Type {
	case OperationMerged:
		return StateMerged
	case OperationDeprecated:
		return StateDeprecated
	}
	return StateActive
}
