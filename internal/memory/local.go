package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"pdfchat/internal/model"
)

type localConfig struct {
	MaxUsers int `json:"max_users"`
	TTLHours int `json:"ttl_hours"`
}

// localStore is an in-process fallback for single-node deployments and
// tests: one expiring LRU entry per user holding the whole sequence. The
// mutex makes append atomic with respect to concurrent readers.
type localStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, []model.ConversationTurn]
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	config := &localConfig{}
	if args != nil {
		if err := decodeConfig(args, config); err != nil {
			return nil, err
		}
	}
	if config.MaxUsers <= 0 {
		config.MaxUsers = 10000
	}
	if config.TTLHours <= 0 {
		config.TTLHours = DefaultTTLHours
	}
	return NewLocal(config.MaxUsers, time.Duration(config.TTLHours)*time.Hour), nil
}

func NewLocal(maxUsers int, ttl time.Duration) Store {
	return &localStore{
		cache: expirable.NewLRU[string, []model.ConversationTurn](maxUsers, nil, ttl),
	}
}

func (s *localStore) History(ctx context.Context, userID string) ([]model.ConversationTurn, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	turns, _ := s.cache.Get(userID)
	out := make([]model.ConversationTurn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *localStore) Append(ctx context.Context, userID, question, answer string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	turns, _ := s.cache.Get(userID)
	turns = append(turns, model.ConversationTurn{User: question, Bot: answer})
	if len(turns) > MaxTurns {
		turns = turns[len(turns)-MaxTurns:]
	}
	// Add re-inserts the key, which refreshes its expiry.
	s.cache.Add(userID, turns)
	return nil
}

func (s *localStore) Clear(ctx context.Context, userID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(userID)
	return nil
}
