package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"pdfchat/internal/model"
)

const (
	// MaxTurns is the hard cap on stored turns per user; the oldest turn is
	// evicted on overflow.
	MaxTurns = 15
	// DefaultTTLHours is the rolling expiry of a user's whole sequence,
	// refreshed on every append.
	DefaultTTLHours = 24
)

// Store is the short-term conversation memory: a bounded, expiring, ordered
// question/answer log per user. Append must be atomic from the caller's point
// of view; no reader may observe a partially written sequence.
type Store interface {
	History(ctx context.Context, userID string) ([]model.ConversationTurn, error)
	Append(ctx context.Context, userID, question, answer string) error
	Clear(ctx context.Context, userID string) error
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
		return nil, fmt.Errorf("memory.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported memory store type: %s", typ)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("memory store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode memory store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode memory store config: %w", err)
	}
	return nil
}
