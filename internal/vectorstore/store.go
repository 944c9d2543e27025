package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"pdfchat/internal/model"
)

// Store is the vector similarity index. It doubles as the primary store for
// chunk metadata, so every entry carries an explicit owner and every read
// path applies (or re-checks) the owner filter.
type Store interface {
	// Upsert writes chunks with their embeddings, creating the target
	// collection on first use instead of failing.
	Upsert(ctx context.Context, chunks []*model.DocumentChunk) error
	// Search returns up to limit chunks by similarity. An empty userID means
	// unfiltered; callers doing that must re-check ownership themselves.
	Search(ctx context.Context, vector []float32, limit int, userID string) ([]*model.DocumentChunk, error)
	// Scroll lists chunk metadata without a query vector, for catalog scans.
	Scroll(ctx context.Context, userID string, limit int) ([]*model.DocumentChunk, error)
	// Delete removes chunks by chunk ID.
	Delete(ctx context.Context, ids []string) error
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(typ string, args interface{}) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(typ))
	if key == "" {
		return nil, fmt.Errorf("vector_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector store type: %s", typ)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("vector store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode vector store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode vector store config: %w", err)
	}
	return nil
}
