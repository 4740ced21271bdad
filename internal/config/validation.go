package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrMissingChannelToken indicates the LINE channel access token is not set.
	ErrMissingChannelToken = errors.New("missing LINE channel access token")

	// ErrMissingChannelSecret indicates the LINE channel secret is not set.
	ErrMissingChannelSecret = errors.New("missing LINE channel secret")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbeddingDimension indicates the embedding dimension is out of range.
	ErrInvalidEmbeddingDimension = errors.New("invalid embedding dimension")

	// ErrInvalidTopK indicates the retrieval top-k value is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidSimilarityFloor indicates the similarity floor is out of range.
	ErrInvalidSimilarityFloor = errors.New("invalid similarity floor")

	// ErrInvalidBatchLimit indicates the batch limit is out of range.
	ErrInvalidBatchLimit = errors.New("invalid batch limit")

	// ErrInvalidPendingMaxAge indicates the pending message age window is out of range.
	ErrInvalidPendingMaxAge = errors.New("invalid pending message max age")

	// ErrInvalidDedupCapacity indicates the dedup guard capacity is out of range.
	ErrInvalidDedupCapacity = errors.New("invalid dedup capacity")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// Validate validates the configuration values shared by every command.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Retrieval configuration
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	if c.EmbeddingDimension < 1 || c.EmbeddingDimension > 4096 {
		return fmt.Errorf("%w: must be between 1 and 4096, got %d",
			ErrInvalidEmbeddingDimension, c.EmbeddingDimension)
	}

	if c.RetrievalTopK < 1 || c.RetrievalTopK > 10 {
		return fmt.Errorf("%w: must be between 1 and 10, got %d", ErrInvalidTopK, c.RetrievalTopK)
	}

	// Cosine similarity is bounded by [-1, 1]; a floor above 1 excludes everything.
	if c.SimilarityFloor < 0 || c.SimilarityFloor > 1 {
		return fmt.Errorf("%w: must be between 0.0 and 1.0, got %.2f",
			ErrInvalidSimilarityFloor, c.SimilarityFloor)
	}

	// Pipeline configuration
	if c.BatchLimit < 1 || c.BatchLimit > 1000 {
		return fmt.Errorf("%w: must be between 1 and 1000, got %d", ErrInvalidBatchLimit, c.BatchLimit)
	}

	if c.PendingMaxAgeMinutes < 1 || c.PendingMaxAgeMinutes > 1440 {
		return fmt.Errorf("%w: must be between 1 and 1440 minutes, got %d",
			ErrInvalidPendingMaxAge, c.PendingMaxAgeMinutes)
	}

	if c.DedupCapacity < 1 {
		return fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidDedupCapacity, c.DedupCapacity)
	}

	// PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgresPassword)
	}

	if c.PostgresPassword == "freya_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"warning", "change postgres_password for production deployments")
	}

	// Modern SSL modes only; allow/prefer are deprecated (MITM vulnerable).
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}

// ValidateServe validates the extra requirements of the webhook server:
// both LINE channel credentials must be present.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ChannelAccessToken == "" {
		return fmt.Errorf("%w: set LINE_CHANNEL_ACCESS_TOKEN", ErrMissingChannelToken)
	}
	if c.ChannelSecret == "" {
		return fmt.Errorf("%w: set LINE_CHANNEL_SECRET", ErrMissingChannelSecret)
	}
	return nil
}

// ValidateProcess validates the extra requirements of the batch processor:
// the push credential and the embedding API key must be present.
func (c *Config) ValidateProcess() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ChannelAccessToken == "" {
		return fmt.Errorf("%w: set LINE_CHANNEL_ACCESS_TOKEN", ErrMissingChannelToken)
	}
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required", ErrMissingAPIKey)
	}
	return nil
}
