// Package config resolves runtime settings from defaults, an optional YAML
// file, a .env file and environment variables, in that order of precedence
// (later wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Embedding provider names.
const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
)

// Environment variables read by Load.
const (
	EnvConfigPath         = "CHATRECALL_CONFIG"
	EnvDBPath             = "CHATRECALL_DB_PATH"
	EnvProvider           = "CHATRECALL_EMBEDDING_PROVIDER"
	EnvOpenAIAPIKey       = "OPENAI_API_KEY"
	EnvOpenAIBaseURL      = "CHATRECALL_OPENAI_BASE_URL"
	EnvOpenAIModel        = "CHATRECALL_OPENAI_EMBEDDING_MODEL"
	EnvEmbeddingDims      = "CHATRECALL_EMBEDDING_DIMENSIONS"
	EnvEmbeddingBatchSize = "CHATRECALL_EMBEDDING_BATCH_SIZE"
	EnvDefaultTopK        = "CHATRECALL_DEFAULT_TOP_K"
	EnvMaxTopK            = "CHATRECALL_MAX_TOP_K"
	EnvLogMode            = "CHATRECALL_LOG_MODE"
)

const (
	dataDirName   = ".chatrecall"
	dbFileName    = "conversations.db"
	defaultModel  = "text-embedding-3-small"
	defaultTopK   = 10
	defaultMaxTop = 50
	defaultBatch  = 128
)

// Config holds every runtime setting.
type Config struct {
	DBPath    string          `yaml:"db_path"`
	LogMode   string          `yaml:"log_mode"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
}

// EmbeddingConfig selects and configures the embedding provider. An empty
// Provider is resolved by Load: openai when an API key is present, else hash.
type EmbeddingConfig struct {
	Provider      string `yaml:"provider"`
	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIModel   string `yaml:"openai_model"`
	Dimensions    int    `yaml:"dimensions"`
	BatchSize     int    `yaml:"batch_size"`
}

// SearchConfig bounds the result counts the tools accept.
type SearchConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		DBPath:  DefaultDBPath(),
		LogMode: "prod",
		Embedding: EmbeddingConfig{
			OpenAIModel: defaultModel,
			BatchSize:   defaultBatch,
		},
		Search: SearchConfig{
			DefaultTopK: defaultTopK,
			MaxTopK:     defaultMaxTop,
		},
	}
}

// DefaultDBPath returns ~/.chatrecall/conversations.db, or a path relative
// to the working directory when the home directory is unknown.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(dataDirName, dbFileName)
	}
	return filepath.Join(home, dataDirName, dbFileName)
}

// Load builds the effective configuration. path names an optional YAML
// file; when empty, CHATRECALL_CONFIG is consulted. A missing .env file is
// not an error.
func Load(path string) (*Config, error) {
	// godotenv never overwrites variables that are already set.
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.DBPath, EnvDBPath)
	setString(&c.LogMode, EnvLogMode)
	setString(&c.Embedding.Provider, EnvProvider)
	setString(&c.Embedding.OpenAIAPIKey, EnvOpenAIAPIKey)
	setString(&c.Embedding.OpenAIBaseURL, EnvOpenAIBaseURL)
	setString(&c.Embedding.OpenAIModel, EnvOpenAIModel)

	ints := []struct {
		dst *int
		key string
	}{
		{&c.Embedding.Dimensions, EnvEmbeddingDims},
		{&c.Embedding.BatchSize, EnvEmbeddingBatchSize},
		{&c.Search.DefaultTopK, EnvDefaultTopK},
		{&c.Search.MaxTopK, EnvMaxTopK},
	}
	for _, i := range ints {
		v := strings.TrimSpace(os.Getenv(i.key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", i.key, err)
		}
		*i.dst = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// resolve fills derived values: the provider choice and a home-relative
// database path.
func (c *Config) resolve() {
	c.Embedding.Provider = strings.ToLower(strings.TrimSpace(c.Embedding.Provider))
	if c.Embedding.Provider == "" {
		if c.Embedding.OpenAIAPIKey != "" {
			c.Embedding.Provider = ProviderOpenAI
		} else {
			c.Embedding.Provider = ProviderHash
		}
	}
	if c.Embedding.OpenAIModel == "" {
		c.Embedding.OpenAIModel = defaultModel
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = defaultBatch
	}

	if rest, ok := strings.CutPrefix(c.DBPath, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			c.DBPath = filepath.Join(home, rest)
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("config: db path is empty")
	}
	switch c.Embedding.Provider {
	case ProviderHash:
	case ProviderOpenAI:
		if c.Embedding.OpenAIAPIKey == "" {
			return fmt.Errorf("config: provider %q requires %s", ProviderOpenAI, EnvOpenAIAPIKey)
		}
	default:
		return fmt.Errorf("config: unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("config: embedding dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}
	if c.Search.DefaultTopK <= 0 || c.Search.MaxTopK <= 0 {
		return fmt.Errorf("config: top-k bounds must be positive, got default=%d max=%d",
			c.Search.DefaultTopK, c.Search.MaxTopK)
	}
	return nil
}
