package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/accession-studio/engine/internal/api/types"
	"github.com/accession-studio/engine/internal/queue"
	appErr "github.com/accession-studio/engine/pkg/errors"
)

type BatchesHandler struct {
	queue    queue.BatchQueue
	validate *validator.Validate
	maxBatch int
}

func NewBatchesHandler(q queue.BatchQueue, v *validator.Validate, maxBatch int) *BatchesHandler {
	if v == nil {
		v = validator.New()
	}
	return &BatchesHandler{queue: q, validate: v, maxBatch: maxBatch}
}

// Submit enqueues a batch for asynchronous get-or-create.
func (h *BatchesHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req types.SubmitRequest
	if !decode(w, r, h.validate, &req) {
		return
	}
	if h.maxBatch > 0 && len(req.Documents) > h.maxBatch {
		writeError(w, r, appErr.New(appErr.CodeInvalid, "batch exceeds the maximum size"))
		return
	}
	info, err := h.queue.EnqueueBatch(r.Context(), req.Documents)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/batches/"+info.ID)
	writeData(w, r, http.StatusAccepted, info)
}

func (h *BatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := h.queue.GetBatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, info)
}
