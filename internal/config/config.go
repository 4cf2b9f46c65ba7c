package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App       AppConfig       `toml:"app"`
	Auth      AuthConfig      `toml:"auth"`
	Log       LogConfig       `toml:"log"`
	LLM       LLMConfig       `toml:"llm"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Index     IndexConfig     `toml:"index"`
	Chunker   ChunkerConfig   `toml:"chunker"`
	RAG       RAGConfig       `toml:"rag"`
	Worker    WorkerConfig    `toml:"worker"`
	Redis     RedisConfig     `toml:"redis"`
	RabbitMQ  RabbitMQConfig  `toml:"rabbitmq"`
}

type AppConfig struct {
	Name           string `toml:"name"`
	Env            string `toml:"env"`
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	GinMode        string `toml:"gin_mode"`
	MaxUploadBytes int64  `toml:"max_upload_bytes"`
}

// AuthConfig guards /api/v1 with HS256 bearer tokens when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type LLMConfig struct {
	Provider          string  `toml:"provider"`
	BaseURL           string  `toml:"base_url"`
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model"`
	Temperature       float64 `toml:"temperature"`
	MaxTokens         int     `toml:"max_tokens"`
	Pull              bool    `toml:"pull"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	MaxContextMessage int     `toml:"max_context_message"`
}

type EmbeddingConfig struct {
	Provider       string `toml:"provider"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	Dimensions     int    `toml:"dimensions"`
	BatchSize      int    `toml:"batch_size"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type IndexConfig struct {
	Backend string       `toml:"backend"`
	Qdrant  QdrantConfig `toml:"qdrant"`
}

type QdrantConfig struct {
	URL            string `toml:"url"`
	APIKey         string `toml:"api_key"`
	Collection     string `toml:"collection"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type ChunkerConfig struct {
	MaxSize int `toml:"max_size"`
	Overlap int `toml:"overlap"`
}

type RAGConfig struct {
	TopK    int     `toml:"top_k"`
	Lambda  float64 `toml:"lambda"`
	FetchK  int     `toml:"fetch_k"`
	Persona string  `toml:"persona"`
}

type WorkerConfig struct {
	QueueSize          int `toml:"queue_size"`
	EventBuffer        int `toml:"event_buffer"`
	CallTimeoutSeconds int `toml:"call_timeout_seconds"`
}

// RedisConfig enables the redis history store when Addr is set.
type RedisConfig struct {
	Addr              string `toml:"addr"`
	Password          string `toml:"password"`
	DB                int    `toml:"db"`
	HistoryTTLSeconds int    `toml:"history_ttl_seconds"`
	KeyPrefix         string `toml:"key_prefix"`
}

// RabbitMQConfig enables the AMQP bridge when URL is set.
type RabbitMQConfig struct {
	URL          string `toml:"url"`
	CommandQueue string `toml:"command_queue"`
	EventQueue   string `toml:"event_queue"`
}

var (
	knownEngines    = map[string]bool{"openai": true, "ollama": true, "anthropic": true, "gemini": true}
	knownEmbedders  = map[string]bool{"openai": true, "ollama": true, "gemini": true}
	knownIndexes    = map[string]bool{"memory": true, "qdrant": true}
	errInvalidValue = errors.New("invalid config")
)

func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Chunker.MaxSize <= 0 || c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.MaxSize {
		return fmt.Errorf("%w: chunker overlap %d must be in [0, max_size %d)", errInvalidValue, c.Chunker.Overlap, c.Chunker.MaxSize)
	}
	if !knownEngines[strings.ToLower(c.LLM.Provider)] {
		return fmt.Errorf("%w: unknown llm provider %q", errInvalidValue, c.LLM.Provider)
	}
	if !knownEmbedders[strings.ToLower(c.Embedding.Provider)] {
		return fmt.Errorf("%w: unknown embedding provider %q", errInvalidValue, c.Embedding.Provider)
	}
	if !knownIndexes[strings.ToLower(c.Index.Backend)] {
		return fmt.Errorf("%w: unknown index backend %q", errInvalidValue, c.Index.Backend)
	}
	if strings.EqualFold(c.Index.Backend, "qdrant") && c.Index.Qdrant.URL == "" {
		return fmt.Errorf("%w: qdrant backend requires index.qdrant.url", errInvalidValue)
	}
	// one message would route every query past retrieval
	if c.LLM.MaxContextMessage < 0 || c.LLM.MaxContextMessage == 1 {
		return fmt.Errorf("%w: llm max_context_message %d must be 0 (unlimited) or at least 2", errInvalidValue, c.LLM.MaxContextMessage)
	}
	if c.RAG.Lambda < 0 || c.RAG.Lambda > 1 {
		return fmt.Errorf("%w: rag lambda %.2f must be in [0, 1]", errInvalidValue, c.RAG.Lambda)
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Worker.CallTimeoutSeconds) * time.Second
}

func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MaskSecret keeps the first and last four characters of long secrets.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:           "docqa",
			Env:            "dev",
			Host:           "0.0.0.0",
			Port:           8080,
			GinMode:        "debug",
			MaxUploadBytes: 10 << 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		LLM: LLMConfig{
			Provider:          "ollama",
			BaseURL:           "http://127.0.0.1:11434",
			Model:             "llama3.2:1b",
			Temperature:       0.2,
			Pull:              true,
			TimeoutSeconds:    300,
			MaxContextMessage: 20,
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			BaseURL:        "http://127.0.0.1:11434",
			Model:          "nomic-embed-text",
			BatchSize:      16,
			TimeoutSeconds: 60,
		},
		Index: IndexConfig{
			Backend: "memory",
			Qdrant: QdrantConfig{
				Collection:     "docqa",
				TimeoutSeconds: 15,
			},
		},
		Chunker: ChunkerConfig{
			MaxSize: 500,
			Overlap: 50,
		},
		RAG: RAGConfig{
			TopK:   10,
			Lambda: 0.75,
			FetchK: 20,
		},
		Worker: WorkerConfig{
			QueueSize:          16,
			EventBuffer:        64,
			CallTimeoutSeconds: 600,
		},
		Redis: RedisConfig{
			HistoryTTLSeconds: 86400,
			KeyPrefix:         "docqa",
		},
		RabbitMQ: RabbitMQConfig{
			CommandQueue: "docqa.commands",
			EventQueue:   "docqa.events",
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)
	cfg.App.MaxUploadBytes = int64(getEnvAsInt("APP_MAX_UPLOAD_BYTES", int(cfg.App.MaxUploadBytes)))
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.LLM.Provider = getEnv("LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.Temperature = getEnvAsFloat("LLM_TEMPERATURE", cfg.LLM.Temperature)
	cfg.LLM.MaxTokens = getEnvAsInt("LLM_MAX_TOKENS", cfg.LLM.MaxTokens)
	cfg.LLM.Pull = getEnvAsBool("LLM_PULL", cfg.LLM.Pull)
	cfg.LLM.TimeoutSeconds = getEnvAsInt("LLM_TIMEOUT_SECONDS", cfg.LLM.TimeoutSeconds)
	cfg.LLM.MaxContextMessage = getEnvAsInt("LLM_MAX_CONTEXT_MESSAGE", cfg.LLM.MaxContextMessage)

	cfg.Embedding.Provider = getEnv("EMBEDDING_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.BaseURL = getEnv("EMBEDDING_BASE_URL", cfg.Embedding.BaseURL)
	cfg.Embedding.APIKey = getEnv("EMBEDDING_API_KEY", cfg.Embedding.APIKey)
	cfg.Embedding.Model = getEnv("EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.Dimensions = getEnvAsInt("EMBEDDING_DIMENSIONS", cfg.Embedding.Dimensions)
	cfg.Embedding.BatchSize = getEnvAsInt("EMBEDDING_BATCH_SIZE", cfg.Embedding.BatchSize)

	cfg.Index.Backend = getEnv("INDEX_BACKEND", cfg.Index.Backend)
	cfg.Index.Qdrant.URL = getEnv("QDRANT_URL", cfg.Index.Qdrant.URL)
	cfg.Index.Qdrant.APIKey = getEnv("QDRANT_API_KEY", cfg.Index.Qdrant.APIKey)
	cfg.Index.Qdrant.Collection = getEnv("QDRANT_COLLECTION", cfg.Index.Qdrant.Collection)

	cfg.Chunker.MaxSize = getEnvAsInt("CHUNKER_MAX_SIZE", cfg.Chunker.MaxSize)
	cfg.Chunker.Overlap = getEnvAsInt("CHUNKER_OVERLAP", cfg.Chunker.Overlap)

	cfg.RAG.TopK = getEnvAsInt("RAG_TOP_K", cfg.RAG.TopK)
	cfg.RAG.Lambda = getEnvAsFloat("RAG_LAMBDA", cfg.RAG.Lambda)
	cfg.RAG.FetchK = getEnvAsInt("RAG_FETCH_K", cfg.RAG.FetchK)
	cfg.RAG.Persona = getEnv("RAG_PERSONA", cfg.RAG.Persona)

	cfg.Worker.QueueSize = getEnvAsInt("WORKER_QUEUE_SIZE", cfg.Worker.QueueSize)
	cfg.Worker.EventBuffer = getEnvAsInt("WORKER_EVENT_BUFFER", cfg.Worker.EventBuffer)
	cfg.Worker.CallTimeoutSeconds = getEnvAsInt("WORKER_CALL_TIMEOUT_SECONDS", cfg.Worker.CallTimeoutSeconds)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.HistoryTTLSeconds = getEnvAsInt("REDIS_HISTORY_TTL_SECONDS", cfg.Redis.HistoryTTLSeconds)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.CommandQueue = getEnv("RABBITMQ_COMMAND_QUEUE", cfg.RabbitMQ.CommandQueue)
	cfg.RabbitMQ.EventQueue = getEnv("RABBITMQ_EVENT_QUEUE", cfg.RabbitMQ.EventQueue)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
