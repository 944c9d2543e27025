package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"pdfchat/internal/ai"
	"pdfchat/internal/chunker"
	"pdfchat/internal/extract"
	"pdfchat/internal/filestore"
	"pdfchat/internal/model"
	apperr "pdfchat/internal/pkg/errors"
	"pdfchat/internal/vectorstore"
)

// IngestService executes one ingestion job end to end: fetch the uploaded
// file, extract text, chunk, embed, index. Stages are strictly sequential
// within a job; any error fails the job with its cause.
type IngestService struct {
	files     filestore.Store
	index     vectorstore.Store
	embedder  ai.IEmbedder
	splitter  *chunker.Splitter
	extractFn func(path string) (string, error)
}

func NewIngestService(files filestore.Store, index vectorstore.Store, embedder ai.IEmbedder) *IngestService {
	return &IngestService{
		files:     files,
		index:     index,
		embedder:  embedder,
		splitter:  chunker.New(chunker.DefaultChunkSize, chunker.DefaultOverlap),
		extractFn: extract.PDF,
	}
}

func (s *IngestService) Run(ctx context.Context, task model.IngestTask) error {
	logger := logutil.GetLogger(ctx).With(
		zap.String("job_id", task.JobID),
		zap.String("user_id", task.UserID),
	)

	tempPath, err := s.fetchToTemp(ctx, task.StoreKey)
	if err != nil {
		return fmt.Errorf("fetch uploaded file: %w", err)
	}
	// The temp copy goes away on every exit path, success or failure.
	defer func() {
		if err := os.Remove(tempPath); err != nil {
			logger.Warn("remove temp file failed", zap.String("path", tempPath), zap.Error(err))
		}
	}()

	text, err := s.extractFn(tempPath)
	if err != nil {
		return err
	}
	pieces := s.splitter.Split(text)
	if len(pieces) == 0 {
		return fmt.Errorf("no valid content chunks generated: %w", apperr.ErrNoContent)
	}
	logger.Info("document chunked", zap.Int("chunks", len(pieces)), zap.Int("text_len", len(text)))

	uploadDate := time.Now().UTC().Format(time.RFC3339)
	chunks := make([]*model.DocumentChunk, 0, len(pieces))
	for _, piece := range pieces {
		chunk := &model.DocumentChunk{
			ChunkID:    uuid.NewString(),
			UserID:     task.UserID,
			Filename:   task.OriginalFilename,
			UploadDate: uploadDate,
			Source:     task.SourceURL,
			Content:    piece,
		}
		embedding, err := s.embedder.Embed(ctx, piece, ai.TaskTypeDocument)
		if err != nil {
			return fmt.Errorf("embed chunk: %w", err)
		}
		chunk.Embedding = embedding
		chunks = append(chunks, chunk)
	}

	if err := s.index.Upsert(ctx, chunks); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}
	logger.Info("chunks indexed", zap.Int("count", len(chunks)), zap.String("filename", task.OriginalFilename))
	return nil
}

func (s *IngestService) fetchToTemp(ctx context.Context, storeKey string) (string, error) {
	src, err := s.files.Open(ctx, storeKey)
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "pdfchat-*.pdf")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
