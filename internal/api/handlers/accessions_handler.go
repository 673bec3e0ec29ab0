package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/accession-studio/engine/internal/api/types"
	"github.com/accession-studio/engine/internal/models"
	"github.com/accession-studio/engine/internal/services"
)

const maxLookupAccessions = 1000

type AccessionsHandler struct {
	accessioning services.AccessioningService[models.Document]
	database     services.DatabaseService[models.Document]
	validate     *validator.Validate
}

func NewAccessionsHandler(accessioning services.AccessioningService[models.Document], database services.DatabaseService[models.Document], v *validator.Validate) *AccessionsHandler {
	if v == nil {
		v = validator.New()
	}
	return &AccessionsHandler{accessioning: accessioning, database: database, validate: v}
}

// Submit gets or creates accessions for a batch of documents.
func (h *AccessionsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req types.SubmitRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	res, err := h.accessioning.GetOrCreateAccessions(r.Context(), req.Documents)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, types.AccessionsResponse{Accessions: res})
}

// Search looks documents up by content without creating accessions.
func (h *AccessionsHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req types.SubmitRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	res, err := h.accessioning.GetAccessions(r.Context(), req.Documents)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, types.AccessionsResponse{Accessions: res})
}

// List returns the active version of each accession named by ?id=. Ids may be
// repeated or comma separated.
func (h *AccessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, v := range r.URL.Query()["id"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		writeErrorStr(w, r, "at least one id is required")
		return
	}
	if len(ids) > maxLookupAccessions {
		writeErrorStr(w, r, "too many ids")
		return
	}
	res, err := h.accessioning.GetByAccessions(r.Context(), ids)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, types.AccessionsResponse{Accessions: res})
}

// Get returns the version history of an accession and the accessions merged into it.
func (h *AccessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	accession := chi.URLParam(r, "accession")
	history, err := h.database.FindAccession(r.Context(), accession)
	if err != nil {
		writeError(w, r, err)
		return
	}
	links, err := h.database.FindMergedInto(r.Context(), accession)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, types.HistoryResponse{Accession: history.Accession, Versions: history.Versions, MergedIn: links})
}

func (h *AccessionsHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	version, ok := versionParam(w, r)
	if !ok {
		return
	}
	out, err := h.database.FindAccessionVersion(r.Context(), chi.URLParam(r, "accession"), version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, out)
}

// Status reports the lifecycle of an accession, including deprecated and merged ones.
func (h *AccessionsHandler) Status(w http.ResponseWriter, r *http.Request) {
	lc, err := h.database.FindLifecycle(r.Context(), chi.URLParam(r, "accession"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, lc)
}

// Patch appends a new version.
func (h *AccessionsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var req types.DocumentRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	out, err := h.accessioning.Patch(r.Context(), chi.URLParam(r, "accession"), req.Document)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, out)
}

// Update rewrites an existing version in place.
func (h *AccessionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	version, ok := versionParam(w, r)
	if !ok {
		return
	}
	var req types.DocumentRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	out, err := h.accessioning.Update(r.Context(), chi.URLParam(r, "accession"), version, req.Document)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, out)
}

func (h *AccessionsHandler) Deprecate(w http.ResponseWriter, r *http.Request) {
	var req types.DeprecateRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	accession := chi.URLParam(r, "accession")
	if err := h.accessioning.Deprecate(r.Context(), accession, req.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	h.Status(w, r)
}

func (h *AccessionsHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req types.MergeRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	accession := chi.URLParam(r, "accession")
	if err := h.accessioning.Merge(r.Context(), accession, req.Target, req.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	h.Status(w, r)
}

func versionParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		writeErrorStr(w, r, "version must be a positive integer")
		return 0, false
	}
	return version, true
}
