package model

type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

// Terminal reports whether the state can no longer change.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// IngestTask is the payload carried by a queued ingestion job.
type IngestTask struct {
	JobID            string `json:"job_id"`
	UserID           string `json:"user_id"`
	StoreKey         string `json:"store_key"`
	SourceURL        string `json:"source_url"`
	OriginalFilename string `json:"original_filename"`
	MimeType         string `json:"mime_type"`
	SizeBytes        int64  `json:"size_bytes"`
}
