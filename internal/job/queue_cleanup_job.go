package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"pdfchat/internal/queue"
)

// QueueCleanupJob prunes finished ingestion jobs so the status endpoint
// reports "not found" for them instead of keeping terminal records forever.
type QueueCleanupJob struct {
	cleaner queue.Cleaner
	maxAge  time.Duration
}

func NewQueueCleanupJob(cleaner queue.Cleaner, maxAge time.Duration) *QueueCleanupJob {
	return &QueueCleanupJob{cleaner: cleaner, maxAge: maxAge}
}

func (j *QueueCleanupJob) Name() string {
	return "queue_cleanup"
}

func (j *QueueCleanupJob) Run(ctx context.Context) error {
	if j.cleaner == nil {
		return nil
	}
	maxAge := j.maxAge
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	deleted, err := j.cleaner.CleanFinished(ctx, maxAge)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logutil.GetLogger(ctx).Info("finished jobs reclaimed", zap.Int("count", deleted))
	}
	return nil
}
