package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"pdfchat/internal/model"
)

// Handler executes one ingestion job. A nil return completes the job; any
// error fails it with the error text preserved as the failure reason. The
// handler is never allowed to take the worker process down.
type Handler func(ctx context.Context, task model.IngestTask) error

// Worker consumes ingestion tasks with bounded concurrency. Jobs for the
// same user may run and complete out of order.
type Worker struct {
	server  *asynq.Server
	handler Handler
}

func NewWorker(cfg Config, handler Handler) *Worker {
	cfg.Normalize()
	server := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{QueueName: 1},
	})
	return &Worker{server: server, handler: handler}
}

// Run blocks until Shutdown is called.
func (w *Worker) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeIngestFile, w.handleIngest)
	return w.server.Run(mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleIngest(ctx context.Context, t *asynq.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ingest job panic: %v", r)
			logutil.GetLogger(ctx).Error("ingest job panicked", zap.Any("panic", r))
		}
	}()

	var task model.IngestTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("decode ingest task: %w", err)
	}
	if task.UserID == "" {
		return fmt.Errorf("missing user id in job payload")
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("job_id", task.JobID),
		zap.String("user_id", task.UserID),
		zap.String("filename", task.OriginalFilename),
	)
	logger.Info("ingest job started")
	if err := w.handler(ctx, task); err != nil {
		logger.Error("ingest job failed", zap.Error(err))
		return err
	}
	logger.Info("ingest job completed")
	return nil
}
