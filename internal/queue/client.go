// Package queue submits accession batches to the asynq worker and reports on them.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/accession-studio/engine/internal/models"
	"github.com/accession-studio/engine/internal/queue/tasks"
	appErr "github.com/accession-studio/engine/pkg/errors"
	"github.com/accession-studio/engine/pkg/logger"
)

const (
	DefaultQueue     = "accessions"
	defaultRetention = 24 * time.Hour
	defaultMaxRetry  = 5
)

// BatchInfo is the externally visible state of a submitted batch.
type BatchInfo struct {
	ID          string                      `json:"id"`
	State       string                      `json:"state"`
	Retried     int                         `json:"retried"`
	MaxRetry    int                         `json:"max_retry"`
	LastError   string                      `json:"last_error,omitempty"`
	CompletedAt *time.Time                  `json:"completed_at,omitempty"`
	Result      *tasks.AccessionBatchResult `json:"result,omitempty"`
}

// BatchQueue is what the HTTP layer needs from the queue.
type BatchQueue interface {
	EnqueueBatch(ctx context.Context, docs []models.Document) (*BatchInfo, error)
	GetBatch(ctx context.Context, id string) (*BatchInfo, error)
}

// Client enqueues batches with asynq and reads their state back through the inspector.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
	retention time.Duration
	maxRetry  int
}

func NewClient(opt asynq.RedisConnOpt) *Client {
	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		queue:     DefaultQueue,
		retention: defaultRetention,
		maxRetry:  defaultMaxRetry,
	}
}

var _ BatchQueue = (*Client)(nil)

func (c *Client) EnqueueBatch(ctx context.Context, docs []models.Document) (*BatchInfo, error) {
	task, err := tasks.NewAccessionBatchTask(docs,
		asynq.Queue(c.queue),
		asynq.MaxRetry(c.maxRetry),
		asynq.Retention(c.retention),
	)
	if err != nil {
		return nil, err
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		logger.L().Error("enqueue accession batch failed", zap.Error(err))
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "enqueue accession batch failed")
	}
	logger.L().Info("accession batch enqueued", zap.String("task_id", info.ID), zap.Int("documents", len(docs)))
	return batchInfoFrom(info)
}

func (c *Client) GetBatch(ctx context.Context, id string) (*BatchInfo, error) {
	info, err := c.inspector.GetTaskInfo(c.queue, id)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, appErr.New(appErr.CodeNotFound, "batch not found").WithMeta("id", id)
		}
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "inspect accession batch failed")
	}
	return batchInfoFrom(info)
}

// Close releases the redis connections.
func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}

func batchInfoFrom(info *asynq.TaskInfo) (*BatchInfo, error) {
	out := &BatchInfo{
		ID:        info.ID,
		State:     info.State.String(),
		Retried:   info.Retried,
		MaxRetry:  info.MaxRetry,
		LastError: info.LastErr,
	}
	if !info.CompletedAt.IsZero() {
		completed := info.CompletedAt
		out.CompletedAt = &completed
	}
	if len(info.Result) > 0 {
		var res tasks.AccessionBatchResult
		if err := json.Unmarshal(info.Result, &res); err != nil {
			return nil, appErr.Wrap(err, appErr.CodeInternal, "decode batch result failed")
		}
		out.Result = &res
	}
	return out, nil
}
