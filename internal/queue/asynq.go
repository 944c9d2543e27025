package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"pdfchat/internal/model"
	apperr "pdfchat/internal/pkg/errors"
)

// asynqQueue adapts the asynq task states to the ingestion job state
// machine. Jobs run with MaxRetry(0): the first handler error is terminal
// and the task moves straight to the archived (failed) set.
type asynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	retention time.Duration
}

func NewAsynq(cfg Config) Queue {
	cfg.Normalize()
	opt := redisOpt(cfg)
	return &asynqQueue{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		retention: time.Duration(cfg.RetentionHours) * time.Hour,
	}
}

func redisOpt(cfg Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

func (q *asynqQueue) Enqueue(ctx context.Context, task model.IngestTask) (string, error) {
	if task.JobID == "" {
		task.JobID = uuid.NewString()
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("encode ingest task: %w", err)
	}
	_, err = q.client.EnqueueContext(ctx,
		asynq.NewTask(TypeIngestFile, payload),
		asynq.Queue(QueueName),
		asynq.TaskID(task.JobID),
		asynq.MaxRetry(0),
		asynq.Retention(q.retention),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue ingest task: %w", err)
	}
	return task.JobID, nil
}

func (q *asynqQueue) Status(ctx context.Context, jobID string) (model.JobState, error) {
	_ = ctx
	info, err := q.inspector.GetTaskInfo(QueueName, jobID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return "", apperr.ErrNotFound
		}
		return "", err
	}
	return stateOf(info.State), nil
}

func (q *asynqQueue) Close() error {
	return q.client.Close()
}

// CleanFinished deletes terminal tasks older than the cutoff, both completed
// and failed. The client is responsible for removing finished jobs from its
// own view; the server reclaims them on a schedule.
func (q *asynqQueue) CleanFinished(ctx context.Context, olderThan time.Duration) (int, error) {
	_ = ctx
	cutoff := time.Now().Add(-olderThan)
	deleted := 0

	completed, err := q.inspector.ListCompletedTasks(QueueName, asynq.PageSize(500))
	if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
		return deleted, err
	}
	for _, info := range completed {
		if info.CompletedAt.IsZero() || info.CompletedAt.After(cutoff) {
			continue
		}
		if err := q.inspector.DeleteTask(QueueName, info.ID); err == nil {
			deleted++
		}
	}

	archived, err := q.inspector.ListArchivedTasks(QueueName, asynq.PageSize(500))
	if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
		return deleted, err
	}
	for _, info := range archived {
		if info.LastFailedAt.IsZero() || info.LastFailedAt.After(cutoff) {
			continue
		}
		if err := q.inspector.DeleteTask(QueueName, info.ID); err == nil {
			deleted++
		}
	}
	return deleted, nil
}

// stateOf maps queue substrate states onto the job state machine. Retry and
// archived both read as failed: with MaxRetry(0) a task never actually sits
// in retry, but the mapping stays total.
func stateOf(state asynq.TaskState) model.JobState {
	switch state {
	case asynq.TaskStateActive:
		return model.JobStateProcessing
	case asynq.TaskStateCompleted:
		return model.JobStateCompleted
	case asynq.TaskStateRetry, asynq.TaskStateArchived:
		return model.JobStateFailed
	default:
		// pending, scheduled, aggregating
		return model.JobStatePending
	}
}
