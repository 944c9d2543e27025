package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"pdfchat/internal/handler"
	"pdfchat/internal/memory"
	"pdfchat/internal/model"
	appErr "pdfchat/internal/pkg/errors"
	"pdfchat/internal/service"
)

type stubFiles struct {
	saved map[string][]byte
}

func (s *stubFiles) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.saved[key] = data
	return nil
}

func (s *stubFiles) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.saved[key]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *stubFiles) Delete(ctx context.Context, key string) error {
	delete(s.saved, key)
	return nil
}

func (s *stubFiles) URL(key string) string {
	return "http://files.test/" + key
}

type stubQueue struct {
	tasks  []model.IngestTask
	states map[string]model.JobState
}

func (q *stubQueue) Enqueue(ctx context.Context, task model.IngestTask) (string, error) {
	jobID := fmt.Sprintf("job-%d", len(q.tasks)+1)
	task.JobID = jobID
	q.tasks = append(q.tasks, task)
	q.states[jobID] = model.JobStatePending
	return jobID, nil
}

func (q *stubQueue) Status(ctx context.Context, jobID string) (model.JobState, error) {
	state, ok := q.states[jobID]
	if !ok {
		return "", appErr.ErrNotFound
	}
	return state, nil
}

func (q *stubQueue) Close() error { return nil }

type stubIndex struct {
	chunks []*model.DocumentChunk
}

func (s *stubIndex) Upsert(ctx context.Context, chunks []*model.DocumentChunk) error {
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *stubIndex) Search(ctx context.Context, vector []float32, limit int, userID string) ([]*model.DocumentChunk, error) {
	var out []*model.DocumentChunk
	for _, c := range s.chunks {
		if userID == "" || c.UserID == userID {
			out = append(out, c)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *stubIndex) Scroll(ctx context.Context, userID string, limit int) ([]*model.DocumentChunk, error) {
	return s.Search(ctx, nil, limit, userID)
}

func (s *stubIndex) Delete(ctx context.Context, ids []string) error {
	dead := make(map[string]bool, len(ids))
	for _, id := range ids {
		dead[id] = true
	}
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if !dead[c.ChunkID] {
			kept = append(kept, c)
		}
	}
	s.chunks = kept
	return nil
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (stubEmbedder) ModelName() string { return "stub-embed" }

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "stub answer", nil
}

type env struct {
	router *gin.Engine
	files  *stubFiles
	queue  *stubQueue
	index  *stubIndex
}

func setupRouter(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	files := &stubFiles{saved: map[string][]byte{}}
	q := &stubQueue{states: map[string]model.JobState{}}
	index := &stubIndex{}
	history := memory.NewLocal(100, time.Hour)

	queryService := service.NewQueryService(history, index, stubEmbedder{}, stubGenerator{})
	catalogService := service.NewCatalogService(index, files)

	router := gin.New()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api, handler.RouterDeps{
		Upload:    handler.NewUploadHandler(files, q),
		Status:    handler.NewStatusHandler(q),
		Query:     handler.NewQueryHandler(queryService),
		Documents: handler.NewDocumentHandler(catalogService),
	})
	return &env{router: router, files: files, queue: q, index: index}
}

func doRequest(t *testing.T, router *gin.Engine, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, userID, filename string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	if userID != "" {
		require.NoError(t, writer.WriteField("userId", userID))
	}
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-stub"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func TestUpload_MissingUserID(t *testing.T) {
	e := setupRouter(t)
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile("file", "report.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-stub"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	rec := doRequest(t, e.router, http.MethodPost, "/api/v1/documents", buf, writer.FormDataContentType())
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, e.queue.tasks)
}

func TestUpload_EnqueuesJob(t *testing.T) {
	e := setupRouter(t)
	buf, contentType := multipartUpload(t, "alice", "report.pdf")

	rec := doRequest(t, e.router, http.MethodPost, "/api/v1/documents", buf, contentType)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var body struct {
		JobID     string `json:"jobId"`
		Filename  string `json:"filename"`
		SourceURL string `json:"sourceUrl"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.JobID)
	require.Equal(t, "report.pdf", body.Filename)
	require.Contains(t, body.SourceURL, "http://files.test/alice_")

	require.Len(t, e.queue.tasks, 1)
	task := e.queue.tasks[0]
	require.Equal(t, "alice", task.UserID)
	require.Equal(t, "report.pdf", task.OriginalFilename)
	require.Contains(t, e.files.saved, task.StoreKey)
	require.True(t, strings.HasSuffix(task.StoreKey, ".pdf"))
}

func TestStatus_Validation(t *testing.T) {
	e := setupRouter(t)

	rec := doRequest(t, e.router, http.MethodGet, "/api/v1/documents/status", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, e.router, http.MethodGet, "/api/v1/documents/status?jobId=missing", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatus_ReportsQueueState(t *testing.T) {
	e := setupRouter(t)
	buf, contentType := multipartUpload(t, "alice", "report.pdf")
	rec := doRequest(t, e.router, http.MethodPost, "/api/v1/documents", buf, contentType)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, e.router, http.MethodGet, "/api/v1/documents/status?jobId="+created.JobID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, "pending", status.Status)
}

func TestQuery_Validation(t *testing.T) {
	e := setupRouter(t)

	rec := doRequest(t, e.router, http.MethodGet, "/api/v1/chat/query?q=hello", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, e.router, http.MethodGet, "/api/v1/chat/query?userId=alice", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuery_AnswersWithSources(t *testing.T) {
	e := setupRouter(t)
	e.index.chunks = []*model.DocumentChunk{{
		ChunkID:  "c1",
		UserID:   "alice",
		Filename: "report.pdf",
		Content:  "quarterly numbers",
	}}

	rec := doRequest(t, e.router, http.MethodGet, "/api/v1/chat/query?q=what+are+the+numbers&userId=alice", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Answer  string                `json:"answer"`
		Sources []model.DocumentChunk `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "stub answer", body.Answer)
	require.Len(t, body.Sources, 1)
	require.Equal(t, "c1", body.Sources[0].ChunkID)
}

func TestClearHistory(t *testing.T) {
	e := setupRouter(t)

	rec := doRequest(t, e.router, http.MethodDelete, "/api/v1/chat/history", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, e.router, http.MethodDelete, "/api/v1/chat/history?userId=alice", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDocumentList(t *testing.T) {
	e := setupRouter(t)
	e.index.chunks = []*model.DocumentChunk{
		{ChunkID: "c1", UserID: "alice", Filename: "report.pdf", UploadDate: "2026-01-01T00:00:00Z", Source: "http://files.test/alice_1.pdf"},
		{ChunkID: "c2", UserID: "bob", Filename: "other.pdf", UploadDate: "2026-01-02T00:00:00Z", Source: "http://files.test/bob_1.pdf"},
	}

	rec := doRequest(t, e.router, http.MethodGet, "/api/v1/documents", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, e.router, http.MethodGet, "/api/v1/documents?userId=alice", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success   bool                 `json:"success"`
		Documents []model.DocumentInfo `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Len(t, body.Documents, 1)
	require.Equal(t, "report.pdf", body.Documents[0].Filename)
}

func TestDocumentDelete(t *testing.T) {
	e := setupRouter(t)
	e.index.chunks = []*model.DocumentChunk{
		{ChunkID: "c1", UserID: "alice", Filename: "report.pdf", Source: "http://files.test/alice_1.pdf"},
		{ChunkID: "c2", UserID: "alice", Filename: "report.pdf", Source: "http://files.test/alice_1.pdf"},
	}
	e.files.saved["alice_1.pdf"] = []byte("%PDF-stub")

	rec := doRequest(t, e.router, http.MethodDelete, "/api/v1/documents",
		strings.NewReader(`{"userId":"alice"}`), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, e.router, http.MethodDelete, "/api/v1/documents",
		strings.NewReader(`{"userId":"alice","filename":"nope.pdf"}`), "application/json")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var failed struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failed))
	require.False(t, failed.Success)

	rec = doRequest(t, e.router, http.MethodDelete, "/api/v1/documents",
		strings.NewReader(`{"userId":"alice","filename":"report.pdf"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	var ok struct {
		Success       bool `json:"success"`
		DeletedChunks int  `json:"deletedChunks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ok))
	require.True(t, ok.Success)
	require.Equal(t, 2, ok.DeletedChunks)
	require.Empty(t, e.index.chunks)
	require.NotContains(t, e.files.saved, "alice_1.pdf")
}
