// Package embed turns free text into fixed-dimension float vectors.
//
// The embedding model is an external collaborator; this package exposes it
// behind the minimal Embedder interface so the retrieval layer can be
// tested without network access.
package embed

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/freyabot/freya/internal/log"
)

// Embedder maps text to a vector. Implementations must be deterministic
// for the same model version and return vectors of a single fixed
// dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Gemini embeds text via the Gemini embedding API. The output is truncated
// to the configured dimensionality so vectors fit the pgvector schema.
type Gemini struct {
	client *genai.Client
	model  string
	dim    int32
	logger log.Logger
}

// NewGemini creates a Gemini embedder. The API key is read from the
// GEMINI_API_KEY environment variable by the genai client.
func NewGemini(ctx context.Context, model string, dimension int32, logger log.Logger) (*Gemini, error) {
	if model == "" {
		return nil, fmt.Errorf("embedder model must not be empty")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dimension)
	}
	if logger == nil {
		logger = log.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Gemini{client: client, model: model, dim: dimension, logger: logger}, nil
}

// Embed returns the embedding vector for text.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.model,
		genai.Text(text),
		&genai.EmbedContentConfig{OutputDimensionality: &g.dim},
	)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("empty embedding returned by model %q", g.model)
	}

	vec := resp.Embeddings[0].Values
	if len(vec) != int(g.dim) {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vec), g.dim)
	}
	return vec, nil
}
