package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pdfchat/internal/model"
)

type qdrantConfig struct {
	URL            string `json:"url"`
	APIKey         string `json:"api_key"`
	Collection     string `json:"collection"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// qdrantStore is a minimal REST client to Qdrant. Cosine distance; the
// collection is created on first upsert if it does not exist yet.
type qdrantStore struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

func init() {
	Register("qdrant", createQdrantStore)
}

func createQdrantStore(args interface{}) (Store, error) {
	config := &qdrantConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if config.Collection == "" {
		config.Collection = "pdf-docs"
	}
	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &qdrantStore{
		url:        strings.TrimSuffix(config.URL, "/"),
		apiKey:     config.APIKey,
		collection: config.Collection,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type qdrantPoint struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector,omitempty"`
	Payload map[string]interface{} `json:"payload"`
}

type qdrantScoredPoint struct {
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

func (s *qdrantStore) Upsert(ctx context.Context, chunks []*model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]qdrantPoint, 0, len(chunks))
	for _, chunk := range chunks {
		points = append(points, qdrantPoint{
			ID:     chunk.ChunkID,
			Vector: chunk.Embedding,
			Payload: map[string]interface{}{
				"chunk_id":    chunk.ChunkID,
				"user_id":     chunk.UserID,
				"filename":    chunk.Filename,
				"upload_date": chunk.UploadDate,
				"source":      chunk.Source,
				"content":     chunk.Content,
			},
		})
	}
	body := map[string]interface{}{"points": points}
	endpoint := fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection)
	err := s.do(ctx, http.MethodPut, endpoint, body, nil)
	if err == nil {
		return nil
	}
	if !isMissingCollection(err) {
		return err
	}
	if err := s.createCollection(ctx, len(chunks[0].Embedding)); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return s.do(ctx, http.MethodPut, endpoint, body, nil)
}

func (s *qdrantStore) createCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension")
	}
	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.do(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body, nil)
}

func (s *qdrantStore) Search(ctx context.Context, vector []float32, limit int, userID string) ([]*model.DocumentChunk, error) {
	if limit <= 0 {
		limit = 5
	}
	body := map[string]interface{}{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if userID != "" {
		body["filter"] = ownerFilter(userID)
	}
	var resp struct {
		Result []qdrantScoredPoint `json:"result"`
	}
	endpoint := fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection)
	if err := s.do(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}
	chunks := make([]*model.DocumentChunk, 0, len(resp.Result))
	for _, point := range resp.Result {
		chunks = append(chunks, chunkFromPayload(point.Payload))
	}
	return chunks, nil
}

func (s *qdrantStore) Scroll(ctx context.Context, userID string, limit int) ([]*model.DocumentChunk, error) {
	if limit <= 0 {
		limit = 1000
	}
	body := map[string]interface{}{
		"limit":        limit,
		"with_payload": true,
	}
	if userID != "" {
		body["filter"] = ownerFilter(userID)
	}
	var resp struct {
		Result struct {
			Points []qdrantPoint `json:"points"`
		} `json:"result"`
	}
	endpoint := fmt.Sprintf("%s/collections/%s/points/scroll", s.url, s.collection)
	if err := s.do(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}
	chunks := make([]*model.DocumentChunk, 0, len(resp.Result.Points))
	for _, point := range resp.Result.Points {
		chunks = append(chunks, chunkFromPayload(point.Payload))
	}
	return chunks, nil
}

func (s *qdrantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]interface{}{"points": ids}
	endpoint := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.collection)
	return s.do(ctx, http.MethodPost, endpoint, body, nil)
}

func ownerFilter(userID string) map[string]interface{} {
	return map[string]interface{}{
		"must": []map[string]interface{}{
			{
				"key":   "user_id",
				"match": map[string]interface{}{"value": userID},
			},
		},
	}
}

func chunkFromPayload(payload map[string]interface{}) *model.DocumentChunk {
	chunk := &model.DocumentChunk{}
	if v, ok := payload["chunk_id"].(string); ok {
		chunk.ChunkID = v
	}
	if v, ok := payload["user_id"].(string); ok {
		chunk.UserID = v
	}
	if v, ok := payload["filename"].(string); ok {
		chunk.Filename = v
	}
	if v, ok := payload["upload_date"].(string); ok {
		chunk.UploadDate = v
	}
	if v, ok := payload["source"].(string); ok {
		chunk.Source = v
	}
	if v, ok := payload["content"].(string); ok {
		chunk.Content = v
	}
	return chunk
}

type qdrantStatusErr struct {
	status int
	body   string
}

func (e *qdrantStatusErr) Error() string {
	return fmt.Sprintf("qdrant status %d: %s", e.status, e.body)
}

func isMissingCollection(err error) bool {
	statusErr, ok := err.(*qdrantStatusErr)
	return ok && statusErr.status == http.StatusNotFound
}

func (s *qdrantStore) do(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode qdrant request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &qdrantStatusErr{status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
