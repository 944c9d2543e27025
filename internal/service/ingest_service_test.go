package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"pdfchat/internal/model"
	apperr "pdfchat/internal/pkg/errors"
)

func newIngestHarness(files *fakeFiles, index *fakeIndex, extracted string, extractErr error) *IngestService {
	svc := NewIngestService(files, index, &fakeEmbedder{})
	svc.extractFn = func(path string) (string, error) {
		if extractErr != nil {
			return "", extractErr
		}
		return extracted, nil
	}
	return svc
}

func ingestTask() model.IngestTask {
	return model.IngestTask{
		JobID:            "job-1",
		UserID:           "alice",
		StoreKey:         "alice_abcd.pdf",
		SourceURL:        "http://files.test/alice_abcd.pdf",
		OriginalFilename: "report.pdf",
		MimeType:         "application/pdf",
		SizeBytes:        1234,
	}
}

func TestRun_IndexesChunksWithMetadata(t *testing.T) {
	files := newFakeFiles()
	files.blobs["alice_abcd.pdf"] = []byte("%PDF-stub")
	index := &fakeIndex{}
	svc := newIngestHarness(files, index, strings.Repeat("some extracted text ", 200), nil)

	require.NoError(t, svc.Run(context.Background(), ingestTask()))
	require.Len(t, index.upserted, 1)
	chunks := index.upserted[0]
	require.NotEmpty(t, chunks)

	seen := map[string]bool{}
	for _, chunk := range chunks {
		require.Equal(t, "alice", chunk.UserID)
		require.Equal(t, "report.pdf", chunk.Filename)
		require.Equal(t, "http://files.test/alice_abcd.pdf", chunk.Source)
		require.NotEmpty(t, chunk.UploadDate)
		require.NotEmpty(t, chunk.Embedding)
		require.NotEmpty(t, chunk.ChunkID)
		require.False(t, seen[chunk.ChunkID], "chunk ids must be unique")
		seen[chunk.ChunkID] = true
		require.LessOrEqual(t, len([]rune(chunk.Content)), 1000)
	}
	// Provenance is constant across all chunks of one document.
	for _, chunk := range chunks[1:] {
		require.Equal(t, chunks[0].UploadDate, chunk.UploadDate)
	}
}

func TestRun_EmptyExtractionFailsJob(t *testing.T) {
	files := newFakeFiles()
	files.blobs["alice_abcd.pdf"] = []byte("%PDF-stub")
	index := &fakeIndex{}
	svc := newIngestHarness(files, index, "", apperr.ErrNoContent)

	err := svc.Run(context.Background(), ingestTask())
	require.ErrorIs(t, err, apperr.ErrNoContent)
	require.Empty(t, index.upserted)
}

func TestRun_WhitespaceOnlyTextFailsJob(t *testing.T) {
	files := newFakeFiles()
	files.blobs["alice_abcd.pdf"] = []byte("%PDF-stub")
	index := &fakeIndex{}
	svc := newIngestHarness(files, index, "   \n\n   ", nil)

	err := svc.Run(context.Background(), ingestTask())
	require.Error(t, err)
	require.ErrorIs(t, err, apperr.ErrNoContent)
	require.Empty(t, index.upserted)
}

func TestRun_MissingFileFailsJob(t *testing.T) {
	files := newFakeFiles() // no blob stored
	index := &fakeIndex{}
	svc := newIngestHarness(files, index, "text", nil)

	err := svc.Run(context.Background(), ingestTask())
	require.Error(t, err)
	require.Empty(t, index.upserted)
}

func TestRun_EmbedFailureFailsJob(t *testing.T) {
	files := newFakeFiles()
	files.blobs["alice_abcd.pdf"] = []byte("%PDF-stub")
	index := &fakeIndex{}
	svc := NewIngestService(files, index, &fakeEmbedder{err: errors.New("quota exhausted")})
	svc.extractFn = func(string) (string, error) { return "plenty of text here", nil }

	err := svc.Run(context.Background(), ingestTask())
	require.Error(t, err)
	require.Empty(t, index.upserted)
}

func TestRun_IndexFailureFailsJob(t *testing.T) {
	files := newFakeFiles()
	files.blobs["alice_abcd.pdf"] = []byte("%PDF-stub")
	index := &fakeIndex{upsertErr: errors.New("index down")}
	svc := newIngestHarness(files, index, "plenty of text here", nil)

	require.Error(t, svc.Run(context.Background(), ingestTask()))
}
