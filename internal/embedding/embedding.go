// Package embedding defines the embedding service contract the
// segment/retrieval pipeline consumes and ships a Gemini-backed
// implementation, batched via EmbedBatch.
package embedding

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"google.golang.org/genai"

	"docsum/internal/apperr"
)

const (
	// DefaultModel is the Gemini embedding model used by default.
	DefaultModel = "gemini-embedding-001"
	// DefaultDimension is the output dimension requested via Matryoshka
	// truncation; segments across a collection must share this value.
	DefaultDimension = 768
)

// Client is the contract the segment extractor and retrieval engine
// depend on for turning text into fixed-dimension vectors.
type Client interface {
	Initialise(ctx context.Context) error
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// GeminiClient is a Client backed by google.golang.org/genai.
type GeminiClient struct {
	apiKey    string
	modelName string
	dimension int32
	gClient   *genai.Client
}

// NewGeminiClient builds a Gemini-backed embedding client. The API key is
// resolved the same way as internal/llm.NewGeminiClient.
func NewGeminiClient(modelName string, dimension int) (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		if apiKey = os.Getenv("GOOGLE_GEMINI_API_KEY"); apiKey == "" {
			if apiKey = os.Getenv("GOOGLE_AI_API_KEY"); apiKey == "" {
				apiKey = viper.GetString("ai.gemini.api_key")
			}
		}
	}
	if apiKey == "" {
		return nil, apperr.New(apperr.ExternalUnavailable, "gemini API key is required").
			WithRemediation("set GEMINI_API_KEY or ai.gemini.api_key in config")
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &GeminiClient{apiKey: apiKey, modelName: modelName, dimension: int32(dimension)}, nil
}

// Initialise lazily creates the underlying genai client; the embedding
// service must be ready after this call returns without error.
func (c *GeminiClient) Initialise(ctx context.Context) error {
	if c.gClient != nil {
		return nil
	}
	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("create Gemini client: %w", err)
	}
	c.gClient = gClient
	return nil
}

// Embed returns a single embedding vector for text.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, apperr.New(apperr.ExternalUnavailable, "no embedding values returned from API")
	}
	return vecs[0], nil
}

// EmbedBatch embeds multiple texts in a single request, preserving order.
func (c *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := c.Initialise(ctx); err != nil {
		return nil, apperr.Wrap(apperr.ExternalUnavailable, "embedding client not initialised", err)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: t}}, Role: "user"}
	}
	cfg := &genai.EmbedContentConfig{OutputDimensionality: &c.dimension}

	resp, err := c.gClient.Models.EmbedContent(ctx, c.modelName, contents, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Wrap(apperr.Cancelled, "embedding cancelled", ctx.Err())
		}
		return nil, apperr.Wrap(apperr.ExternalUnavailable, "gemini embedding failed", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		return nil, apperr.New(apperr.ExternalUnavailable, "unexpected embedding response shape")
	}

	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil {
			return nil, apperr.New(apperr.ExternalUnavailable, "missing embedding values in response")
		}
		out[i] = e.Values
	}
	return out, nil
}

// Dimension reports the fixed vector length this client produces.
func (c *GeminiClient) Dimension() int {
	return int(c.dimension)
}

// IsAvailable probes the client with a minimal embedding request.
func (c *GeminiClient) IsAvailable(ctx context.Context) bool {
	_, err := c.Embed(ctx, "ping")
	return err == nil
}
