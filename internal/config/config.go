package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int               `json:"port"`
	JWTSecret     string            `json:"jwt_secret"`
	JWTTTLHours   int               `json:"jwt_ttl_hours"`
	LogConfig     logger.LogConfig  `json:"log_config"`
	Database      DatabaseConfig    `json:"database"`
	VectorStore   VectorStoreConfig `json:"vector_store"`
	AI            AIConfig          `json:"ai"`
	RateLimit     RateLimitConfig   `json:"rate_limit"`
	Chunking      ChunkingConfig    `json:"chunking"`
	FileStore     FileStoreConfig   `json:"file_store"`
	CORSAllowlist []string          `json:"cors_allowlist"`
	PingCron      string            `json:"ping_cron"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type VectorStoreConfig struct {
	Type      string      `json:"type"`
	Dimension int         `json:"dimension"`
	Data      interface{} `json:"data"`
}

type ProviderRef struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type AIConfig struct {
	Generate          []ProviderRef `json:"generate"`
	Embed             []ProviderRef `json:"embed"`
	Timeout           int           `json:"timeout"`
	MaxInputChars     int           `json:"max_input_chars"`
	EmbedCacheSize    int           `json:"embed_cache_size"`
	EmbedCacheTTLMins int           `json:"embed_cache_ttl_mins"`
}

type RateLimitConfig struct {
	WindowSeconds int            `json:"window_seconds"`
	Actions       map[string]int `json:"actions"`
}

type ChunkingConfig struct {
	ChunkSize int `json:"chunk_size"`
	Overlap   int `json:"overlap"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
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
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.VectorStore.Type == "" {
		return nil, fmt.Errorf("vector_store.type is required")
	}
	if cfg.VectorStore.Dimension == 0 {
		cfg.VectorStore.Dimension = 1536
	}
	if len(cfg.AI.Embed) == 0 {
		return nil, fmt.Errorf("ai.embed requires at least one provider")
	}
	if len(cfg.AI.Generate) == 0 {
		return nil, fmt.Errorf("ai.generate requires at least one provider")
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60
	}
	if cfg.RateLimit.WindowSeconds == 0 {
		cfg.RateLimit.WindowSeconds = 60
	}
	if len(cfg.RateLimit.Actions) == 0 {
		cfg.RateLimit.Actions = map[string]int{
			"ask":   20,
			"train": 10,
		}
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 300
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 30
	}
	if cfg.Chunking.ChunkSize <= cfg.Chunking.Overlap {
		return nil, fmt.Errorf("chunking.chunk_size must be greater than chunking.overlap")
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
		cfg.FileStore.Data = map[string]interface{}{"dir": "./uploads"}
	}
	if cfg.PingCron == "" {
		cfg.PingCron = "*/5 * * * *"
	}
	return &cfg, nil
}
