package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/accession-studio/engine/internal/models"
	"github.com/accession-studio/engine/internal/services"
	appErr "github.com/accession-studio/engine/pkg/errors"
	"github.com/accession-studio/engine/pkg/logger"
)

// TypeAccessionBatch is the asynq task type for asynchronous get-or-create batches.
const TypeAccessionBatch = "accession:batch"

// AccessionBatchPayload is the task payload for a submitted batch.
type AccessionBatchPayload struct {
	Documents []models.Document `json:"documents"`
}

// AccessionBatchResult is written to the task result once the batch is accessioned.
type AccessionBatchResult struct {
	Accessions services.Result[models.Document] `json:"accessions"`
}

// NewAccessionBatchTask builds the task for a batch of documents.
func NewAccessionBatchTask(docs []models.Document, opts ...asynq.Option) (*asynq.Task, error) {
	if len(docs) == 0 {
		return nil, appErr.New(appErr.CodeInvalid, "batch has no documents")
	}
	b, err := json.Marshal(AccessionBatchPayload{Documents: docs})
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "batch is not serializable")
	}
	return asynq.NewTask(TypeAccessionBatch, b, opts...), nil
}

// AccessionBatchHandler runs submitted batches through the accessioning service.
type AccessionBatchHandler struct {
	accessioning services.AccessioningService[models.Document]
}

func NewAccessionBatchHandler(accessioning services.AccessioningService[models.Document]) *AccessionBatchHandler {
	return &AccessionBatchHandler{accessioning: accessioning}
}

// HandleAccessionBatch accessions the batch and stores the assignments as the
// task result. Malformed or invalid batches are not retried; allocator
// outages and contention are.
func (h *AccessionBatchHandler) HandleAccessionBatch(ctx context.Context, t *asynq.Task) error {
	var p AccessionBatchPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid accession batch payload", zap.Error(err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	taskID := ""
	if w := t.ResultWriter(); w != nil {
		taskID = w.TaskID()
	}
	logger.L().Info("handling accession batch", zap.String("task_id", taskID), zap.Int("documents", len(p.Documents)))

	res, err := h.accessioning.GetOrCreateAccessions(ctx, p.Documents)
	if err != nil {
		logger.L().Error("accession batch failed", zap.String("task_id", taskID), zap.Error(err))
		if appErr.IsCode(err, appErr.CodeInvalid) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	if w := t.ResultWriter(); w != nil {
		b, err := json.Marshal(AccessionBatchResult{Accessions: res})
		if err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "encode batch result failed")
		}
		if _, err := w.Write(b); err != nil {
			return appErr.Wrap(err, appErr.CodeUnavailable, "write batch result failed")
		}
	}

	logger.L().Info("accession batch completed", zap.String("task_id", taskID), zap.Int("accessions", len(res)))
	return nil
}
