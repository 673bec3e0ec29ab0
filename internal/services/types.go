package services

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/accession-studio/engine/internal/models"
	appErr "github.com/accession-studio/engine/pkg/errors"
)

// Accessioned is one stored version of an object together with its accession.
type Accessioned[M any] struct {
	Accession string    `json:"accession"`
	Hash      string    `json:"hash"`
	Version   int       `json:"version"`
	Active    bool      `json:"active"`
	Data      M         `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// History is the full version list of a lineage, oldest first.
type History[M any] struct {
	Accession string           `json:"accession"`
	Versions  []Accessioned[M] `json:"versions"`
}

// Latest returns the head version.
func (h *History[M]) Latest() Accessioned[M] {
	return h.Versions[len(h.Versions)-1]
}

// Lifecycle describes the state of a lineage, including deprecated and merged ones.
type Lifecycle struct {
	Accession  string                `json:"accession"`
	State      models.LifecycleState `json:"state"`
	MergedInto string                `json:"merged_into,omitempty"`
	Reason     string                `json:"reason,omitempty"`
	Versions   int                   `json:"versions"`
	ChangedAt  *time.Time            `json:"changed_at,omitempty"`
}

// MergeLink records that Source was merged into Target.
type MergeLink struct {
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Result is the outcome of a batch call: one entry per distinct content hash
// (or accession, for lookups by accession) in the order first submitted.
type Result[M any] []Accessioned[M]

// ByAccession maps each accession to its object.
func (r Result[M]) ByAccession() map[string]M {
	out := make(map[string]M, len(r))
	for _, a := range r {
		out[a.Accession] = a.Data
	}
	return out
}

// ByHash maps each content hash to its accession.
func (r Result[M]) ByHash() map[string]string {
	out := make(map[string]string, len(r))
	for _, a := range r {
		out[a.Hash] = a.Accession
	}
	return out
}

// Accessions lists the accessions in result order.
func (r Result[M]) Accessions() []string {
	out := make([]string, len(r))
	for i, a := range r {
		out[i] = a.Accession
	}
	return out
}

func encodeData[M any](data M) (datatypes.JSON, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "object is not serializable")
	}
	return datatypes.JSON(b), nil
}

func decodeRecord[M any](rec models.AccessionRecord) (Accessioned[M], error) {
	var data M
	if len(rec.Data) > 0 {
		if err := json.Unmarshal(rec.Data, &data); err != nil {
			return Accessioned[M]{}, appErr.Wrap(err, appErr.CodeInternal, "stored object is corrupt").
				WithMeta(appErr.MetaAccession, rec.Accession)
		}
	}
	return Accessioned[M]{
		Accession: rec.Accession,
		Hash:      rec.Hash,
		Version:   rec.Version,
		Active:    rec.Active,
		Data:      data,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func decodeRecords[M any](recs []models.AccessionRecord) ([]Accessioned[M], error) {
	out := make([]Accessioned[M], 0, len(recs))
	for _, rec := range recs {
		a, err := decodeRecord[M](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
