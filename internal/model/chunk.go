package model

// DocumentChunk is one indexed slice of an uploaded document together
// with the metadata needed for ownership filtering and cataloging.
type DocumentChunk struct {
	ChunkID    string    `json:"chunkId"`
	UserID     string    `json:"userId"`
	Filename   string    `json:"filename"`
	UploadDate string    `json:"uploadDate"`
	Source     string    `json:"source"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
}

// DocumentInfo is the per-document catalog entry, deduplicated from the
// chunks that share a filename.
type DocumentInfo struct {
	Filename   string `json:"filename"`
	UploadDate string `json:"uploadDate"`
	Source     string `json:"source"`
}
