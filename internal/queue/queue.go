package queue

import (
	"context"
	"time"

	"pdfchat/internal/model"
)

// Task type and queue name on the wire. One task = one ingestion job.
const (
	TypeIngestFile = "ingest:file"
	QueueName      = "upload"
)

// Queue is the durable job dispatch substrate. Enqueue hands a task to the
// worker side and returns the job id clients poll with; Status reports the
// job's current lifecycle state.
type Queue interface {
	Enqueue(ctx context.Context, task model.IngestTask) (string, error)
	Status(ctx context.Context, jobID string) (model.JobState, error)
	Close() error
}

// Cleaner reclaims finished jobs. The asynq-backed queue implements it;
// the scheduler drives it hourly.
type Cleaner interface {
	CleanFinished(ctx context.Context, olderThan time.Duration) (int, error)
}

// Config is the redis connection shared by the queue client, the inspector
// and the worker server.
type Config struct {
	RedisAddr      string `json:"redis_addr"`
	RedisPassword  string `json:"redis_password"`
	RedisDB        int    `json:"redis_db"`
	Concurrency    int    `json:"concurrency"`
	RetentionHours int    `json:"retention_hours"`
}

func (c *Config) Normalize() {
	if c.Concurrency <= 0 {
		c.Concurrency = 100
	}
	if c.RetentionHours <= 0 {
		c.RetentionHours = 1
	}
}
