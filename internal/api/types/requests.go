package types

import "github.com/accession-studio/engine/internal/models"

// SubmitRequest carries a batch of documents for get-or-create or lookup by content.
type SubmitRequest struct {
	Documents []models.Document `json:"documents" validate:"required,min=1,dive,required"`
}

// DocumentRequest carries a single document for patch and update.
type DocumentRequest struct {
	Document models.Document `json:"document" validate:"required"`
}

type DeprecateRequest struct {
	Reason string `json:"reason" validate:"required,max=1024"`
}

type MergeRequest struct {
	Target string `json:"target" validate:"required,max=255"`
	Reason string `json:"reason" validate:"required,max=1024"`
}
