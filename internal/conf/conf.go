package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/evobot/wa-rag-bridge/internal/biz/domain"
	"github.com/evobot/wa-rag-bridge/internal/biz/usecase"
	"github.com/evobot/wa-rag-bridge/internal/data"
	"github.com/evobot/wa-rag-bridge/internal/infra/evolution"
	"github.com/evobot/wa-rag-bridge/internal/logger"
	"github.com/evobot/wa-rag-bridge/internal/service"
)

// Gateway providers
const (
	ProviderEvolution = "evolution"
	ProviderFeishu    = "feishu"
)

// Config represents application configuration
type Config struct {
	Server  ServerConfig
	Buffer  BufferConfig
	Gateway GatewayConfig
	OpenAI  OpenAIConfig
	Qdrant  QdrantConfig
	History HistoryConfig
	Prompts *PromptsConfig
	Log     logger.Config
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr            string
	AdminAPIKey     string // empty leaves the admin API open
	ShutdownTimeout time.Duration
}

// BufferConfig contains message buffer configuration
type BufferConfig struct {
	RedisURI        string
	DevelopmentMode bool // forces the in-process buffer
	KeySuffix       string
	DebounceSeconds int
	TTLSeconds      int
	ReprobeSeconds  int
}

// GatewayConfig selects and configures the outbound messaging gateway
type GatewayConfig struct {
	Provider  string
	Evolution EvolutionConfig
	Feishu    FeishuConfig
}

// EvolutionConfig contains Evolution API configuration
type EvolutionConfig struct {
	URL      string
	Instance string
	APIKey   string
	SendRate float64
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
}

// OpenAIConfig contains language model configuration
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float32
	EmbeddingModel string
}

// QdrantConfig contains knowledge base configuration
type QdrantConfig struct {
	URL        string // empty disables retrieval
	Collection string
	APIKey     string
	TopK       int
}

// HistoryConfig contains conversation history configuration
type HistoryConfig struct {
	DBPath string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	historyDBPath := os.Getenv("HISTORY_DB_PATH")
	if historyDBPath == "" {
		homeDir, _ := os.UserHomeDir()
		historyDBPath = filepath.Join(homeDir, ".wa-rag-bridge", "history.db")
	}

	prompts, err := LoadPromptsConfig(os.Getenv("PROMPTS_CONFIG_PATH"))
	if err != nil {
		return nil, err
	}

	// Environment overrides YAML
	if v, err := getEnvOrFile("AI_SYSTEM_PROMPT"); err != nil {
		return nil, err
	} else if v != "" {
		prompts.RAG.SystemPrompt = v
	}
	if v, err := getEnvOrFile("AI_CONTEXTUALIZE_PROMPT"); err != nil {
		return nil, err
	} else if v != "" {
		prompts.RAG.ContextualizePrompt = v
	}
	if v, err := getEnvOrFile("AI_APOLOGY_TEXT"); err != nil {
		return nil, err
	} else if v != "" {
		prompts.RAG.Apology = v
	}
	prompts.History.MaxCount = getEnvInt("HISTORY_MAX_MESSAGES", prompts.History.MaxCount)
	prompts.History.MaxMinutes = getEnvInt("HISTORY_TTL_MINUTES", prompts.History.MaxMinutes)

	openAIKey, err := getEnvOrFile("OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}
	evolutionKey, err := getEnvOrFile("AUTHENTICATION_API_KEY")
	if err != nil {
		return nil, err
	}
	feishuSecret, err := getEnvOrFile("FEISHU_APP_SECRET")
	if err != nil {
		return nil, err
	}
	adminKey, err := getEnvOrFile("ADMIN_API_KEY")
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8000"),
			AdminAPIKey:     adminKey,
			ShutdownTimeout: time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Buffer: BufferConfig{
			RedisURI:        os.Getenv("CACHE_REDIS_URI"),
			DevelopmentMode: getEnvBool("DEVELOPMENT_MODE", false),
			KeySuffix:       getEnv("BUFFER_KEY_SUFFIX", ":buffer"),
			DebounceSeconds: getEnvInt("BUFFER_DEBOUNCE_SECONDS", 10),
			TTLSeconds:      getEnvInt("BUFFER_TTL_SECONDS", 300),
			ReprobeSeconds:  getEnvInt("BUFFER_REPROBE_SECONDS", 0),
		},
		Gateway: GatewayConfig{
			Provider: strings.ToLower(getEnv("GATEWAY_PROVIDER", ProviderEvolution)),
			Evolution: EvolutionConfig{
				URL:      getEnv("EVOLUTION_API_URL", "http://localhost:8080"),
				Instance: os.Getenv("EVOLUTION_INSTANCE_NAME"),
				APIKey:   evolutionKey,
				SendRate: getEnvFloat("EVOLUTION_SEND_RATE", 5),
			},
			Feishu: FeishuConfig{
				AppID:     os.Getenv("FEISHU_APP_ID"),
				AppSecret: feishuSecret,
			},
		},
		OpenAI: OpenAIConfig{
			APIKey:         openAIKey,
			BaseURL:        os.Getenv("OPENAI_BASE_URL"),
			Model:          getEnv("OPENAI_MODEL_NAME", "gpt-4o-mini"),
			Temperature:    float32(getEnvFloat("OPENAI_MODEL_TEMPERATURE", 0.7)),
			EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Qdrant: QdrantConfig{
			URL:        os.Getenv("QDRANT_URL"),
			Collection: getEnv("QDRANT_COLLECTION", "knowledge"),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			TopK:       getEnvInt("RAG_TOP_K", 4),
		},
		History: HistoryConfig{
			DBPath: historyDBPath,
		},
		Prompts: prompts,
		Log: logger.Config{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}, nil
}

// UseDurableBuffer reports whether Redis should be probed at startup
func (c *Config) UseDurableBuffer() bool {
	return c.Buffer.RedisURI != "" && !c.Buffer.DevelopmentMode
}

// ToBufferConfig converts to buffer usecase configuration
func (c *BufferConfig) ToBufferConfig() usecase.BufferConfig {
	return usecase.BufferConfig{
		TTL:             time.Duration(c.TTLSeconds) * time.Second,
		ReprobeInterval: time.Duration(c.ReprobeSeconds) * time.Second,
	}
}

// ToDebounceConfig converts to coordinator configuration
func (c *Config) ToDebounceConfig() service.DebounceConfig {
	cfg := service.DefaultDebounceConfig()
	cfg.QuietInterval = time.Duration(c.Buffer.DebounceSeconds) * time.Second
	if c.Prompts != nil && c.Prompts.RAG.Apology != "" {
		cfg.ApologyText = c.Prompts.RAG.Apology
	}
	return cfg
}

// ToAnswerConfig converts to answer usecase configuration
func (c *Config) ToAnswerConfig() usecase.AnswerConfig {
	cfg := usecase.DefaultAnswerConfig()
	cfg.Temperature = c.OpenAI.Temperature
	cfg.TopK = c.Qdrant.TopK
	if c.Prompts != nil {
		cfg.SystemPrompt = c.Prompts.RAG.SystemPrompt
		cfg.ContextualizePrompt = c.Prompts.RAG.ContextualizePrompt
		cfg.History = domain.HistoryConfig{
			MaxMessages: c.Prompts.History.MaxCount,
			TTL:         time.Duration(c.Prompts.History.MaxMinutes) * time.Minute,
		}
	}
	return cfg
}

// ToGatewayOptions converts to gateway repository options
func (c *Config) ToGatewayOptions() data.GatewayOptions {
	return data.GatewayOptions{
		Provider: c.Gateway.Provider,
		Evolution: evolution.Config{
			BaseURL:  c.Gateway.Evolution.URL,
			Instance: c.Gateway.Evolution.Instance,
			APIKey:   c.Gateway.Evolution.APIKey,
			SendRate: c.Gateway.Evolution.SendRate,
		},
		FeishuAppID:     c.Gateway.Feishu.AppID,
		FeishuAppSecret: c.Gateway.Feishu.AppSecret,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return &ConfigError{Field: "OPENAI_API_KEY", Message: "required"}
	}
	if c.Buffer.DebounceSeconds <= 0 {
		return &ConfigError{Field: "BUFFER_DEBOUNCE_SECONDS", Message: "must be positive"}
	}
	if c.Buffer.TTLSeconds <= 0 {
		return &ConfigError{Field: "BUFFER_TTL_SECONDS", Message: "must be positive"}
	}
	if c.Buffer.ReprobeSeconds < 0 {
		return &ConfigError{Field: "BUFFER_REPROBE_SECONDS", Message: "must not be negative"}
	}
	return c.ValidateGateway()
}

// ValidateGateway validates only the outbound gateway settings
func (c *Config) ValidateGateway() error {
	switch c.Gateway.Provider {
	case ProviderEvolution:
		if c.Gateway.Evolution.Instance == "" || c.Gateway.Evolution.APIKey == "" {
			return &ConfigError{Field: "EVOLUTION_INSTANCE_NAME/AUTHENTICATION_API_KEY", Message: "required"}
		}
	case ProviderFeishu:
		if c.Gateway.Feishu.AppID == "" || c.Gateway.Feishu.AppSecret == "" {
			return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
		}
	default:
		return &ConfigError{Field: "GATEWAY_PROVIDER", Message: fmt.Sprintf("unknown provider %q", c.Gateway.Provider)}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvOrFile reads KEY, or the trimmed contents of the file named by
// KEY_FILE when set. A KEY_FILE pointing to a missing file is an error.
func getEnvOrFile(key string) (string, error) {
	if path := os.Getenv(key + "_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", &ConfigError{Field: key + "_FILE", Message: err.Error()}
		}
		return strings.TrimSpace(string(data)), nil
	}
	return os.Getenv(key), nil
}
