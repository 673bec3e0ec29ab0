package types

import (
	"github.com/accession-studio/engine/internal/models"
	"github.com/accession-studio/engine/internal/services"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type Meta struct {
	RequestID string `json:"request_id,omitempty"`
	Total     int64  `json:"total,omitempty"`
}

// AccessionsResponse is the body of batch endpoints.
type AccessionsResponse struct {
	Accessions services.Result[models.Document] `json:"accessions"`
}

// HistoryResponse is the body of the lineage endpoint.
type HistoryResponse struct {
	Accession string                                  `json:"accession"`
	Versions  []services.Accessioned[models.Document] `json:"versions"`
	MergedIn  []services.MergeLink                    `json:"merged_in,omitempty"`
}
