package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"

	"pdfchat/internal/queue"
)

// ComponentConfig selects a pluggable backend by name and carries its
// backend-specific arguments opaquely; each registry decodes Data itself.
type ComponentConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIConfig struct {
	Provider           string      `json:"provider"`
	Model              string      `json:"model"`
	EmbedModel         string      `json:"embed_model"`
	EmbedCacheSize     int         `json:"embed_cache_size"`
	EmbedCacheTTLHours int         `json:"embed_cache_ttl_hours"`
	Data               interface{} `json:"data"`
}

type Config struct {
	Port        int              `json:"port"`
	CORSAllow   []string         `json:"cors_allow"`
	LogConfig   logger.LogConfig `json:"log_config"`
	FileStore   ComponentConfig  `json:"file_store"`
	VectorStore ComponentConfig  `json:"vector_store"`
	Memory      ComponentConfig  `json:"memory"`
	Queue       queue.Config     `json:"queue"`
	AI          AIConfig         `json:"ai"`
	CleanSpec   string           `json:"clean_spec"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "qdrant"
	}
	if cfg.Memory.Type == "" {
		cfg.Memory.Type = "redis"
	}
	if cfg.Queue.RedisAddr == "" {
		return nil, fmt.Errorf("queue.redis_addr is required")
	}
	cfg.Queue.Normalize()
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "gemini"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gemini-2.0-flash"
	}
	if cfg.AI.EmbedModel == "" {
		cfg.AI.EmbedModel = "text-embedding-004"
	}
	if cfg.AI.EmbedCacheSize <= 0 {
		cfg.AI.EmbedCacheSize = 4096
	}
	if cfg.AI.EmbedCacheTTLHours <= 0 {
		cfg.AI.EmbedCacheTTLHours = 2
	}
	if cfg.CleanSpec == "" {
		cfg.CleanSpec = "0 * * * *"
	}
	return &cfg, nil
}
