// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.freya/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Server: webhook listen address
//   - LINE: channel credentials (see validation.go)
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: embedder model, vector dimension, top-k, similarity floor
//   - Pipeline: batch limit, pending message age window, dedup capacity
//
// Security: sensitive fields (passwords, tokens, secrets) are masked in MarshalJSON.
// Validation: range checks in validation.go with sentinel errors for errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// DefaultEmbedderModel is the Gemini embedder used for knowledge search.
	// gemini-embedding-001 supports truncation to lower dimensions via
	// OutputDimensionality; the pgvector schema stores 384-dimension vectors.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultEmbeddingDimension must match the vector(N) columns in the schema.
	DefaultEmbeddingDimension = 384

	// DefaultSimilarityFloor is the minimum cosine similarity a knowledge
	// record needs to be included in an answer.
	DefaultSimilarityFloor = 0.3

	// DefaultRetrievalTopK is the per-collection result limit.
	DefaultRetrievalTopK int32 = 3

	// DefaultBatchLimit is the maximum pending messages claimed per run.
	DefaultBatchLimit int32 = 20

	// DefaultPendingMaxAgeMinutes bounds how old a pending message may be
	// and still be claimed.
	DefaultPendingMaxAgeMinutes = 10

	// DefaultDedupCapacity is the webhook dedup guard size.
	DefaultDedupCapacity = 1000
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, tokens, secrets), update MarshalJSON.
type Config struct {
	// Server configuration
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`

	// LINE channel credentials
	ChannelAccessToken string `mapstructure:"channel_access_token" json:"channel_access_token"` // SENSITIVE: masked in MarshalJSON
	ChannelSecret      string `mapstructure:"channel_secret" json:"channel_secret"`             // SENSITIVE: masked in MarshalJSON

	// Retrieval configuration
	EmbedderModel      string  `mapstructure:"embedder_model" json:"embedder_model"`
	EmbeddingDimension int32   `mapstructure:"embedding_dimension" json:"embedding_dimension"`
	RetrievalTopK      int32   `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`
	SimilarityFloor    float64 `mapstructure:"similarity_floor" json:"similarity_floor"`

	// Pipeline configuration
	BatchLimit           int32 `mapstructure:"batch_limit" json:"batch_limit"`
	PendingMaxAgeMinutes int   `mapstructure:"pending_max_age_minutes" json:"pending_max_age_minutes"`
	DedupCapacity        int   `mapstructure:"dedup_capacity" json:"dedup_capacity"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".freya")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults plus env cover it.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, when set, overrides the individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("listen_addr", ":8080")

	// Retrieval defaults
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("embedding_dimension", DefaultEmbeddingDimension)
	v.SetDefault("retrieval_top_k", DefaultRetrievalTopK)
	v.SetDefault("similarity_floor", DefaultSimilarityFloor)

	// Pipeline defaults
	v.SetDefault("batch_limit", DefaultBatchLimit)
	v.SetDefault("pending_max_age_minutes", DefaultPendingMaxAgeMinutes)
	v.SetDefault("dedup_capacity", DefaultDedupCapacity)

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "freya")
	v.SetDefault("postgres_password", "freya_dev_password")
	v.SetDefault("postgres_db_name", "freya")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", true)
}

// bindEnvVariables binds environment variables explicitly.
//
// NOTE: GEMINI_API_KEY is read directly by the genai client, not via Viper.
// Validation checks its presence in ValidateProcess().
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime condition.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// LINE channel credentials (standard LINE SDK variable names)
	mustBind("channel_access_token", "LINE_CHANNEL_ACCESS_TOKEN")
	mustBind("channel_secret", "LINE_CHANNEL_SECRET")

	// Runtime overrides
	mustBind("listen_addr", "FREYA_LISTEN_ADDR")
	mustBind("embedder_model", "FREYA_EMBEDDER_MODEL")
	mustBind("similarity_floor", "FREYA_SIMILARITY_FLOOR")
	mustBind("batch_limit", "FREYA_BATCH_LIMIT")
	mustBind("log_level", "FREYA_LOG_LEVEL")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid substring matching against the original secret.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer secrets keep
// the first and last 2 characters for debug utility.
//
// This defends against accidental logging of real secrets, not against
// compromised logs. If logs leak, rotate the secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - ChannelAccessToken
//   - ChannelSecret
//   - PostgresPassword
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.ChannelAccessToken = maskSecret(a.ChannelAccessToken)
	a.ChannelSecret = maskSecret(a.ChannelSecret)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
