package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pdfchat/internal/model"
)

type redisConfig struct {
	Addr      string `json:"addr"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
	TTLHours  int    `json:"ttl_hours"`
}

// redisStore keeps one list per user, each element a JSON-encoded turn.
// Append runs RPUSH+LTRIM+EXPIRE inside MULTI/EXEC so cap enforcement and
// TTL refresh are atomic with the write; there is no read-modify-write.
type redisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func init() {
	Register("redis", createRedisStore)
}

func createRedisStore(args interface{}) (Store, error) {
	config := &redisConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "chat_history:"
	}
	if config.TTLHours <= 0 {
		config.TTLHours = DefaultTTLHours
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return &redisStore{
		client:    client,
		keyPrefix: config.KeyPrefix,
		ttl:       time.Duration(config.TTLHours) * time.Hour,
	}, nil
}

func (s *redisStore) key(userID string) string {
	return s.keyPrefix + userID
}

func (s *redisStore) History(ctx context.Context, userID string) ([]model.ConversationTurn, error) {
	items, err := s.client.LRange(ctx, s.key(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	turns := make([]model.ConversationTurn, 0, len(items))
	for _, item := range items {
		var turn model.ConversationTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("decode history turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *redisStore) Append(ctx context.Context, userID, question, answer string) error {
	payload, err := json.Marshal(model.ConversationTurn{User: question, Bot: answer})
	if err != nil {
		return err
	}
	key := s.key(userID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, -int64(MaxTurns), -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}
