// Package llm defines the LLM service contract the summariser consumes
// and ships a Gemini-backed implementation.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/genai"

	"docsum/internal/apperr"
)

const (
	// DefaultModel is the default Gemini model used for generation.
	DefaultModel = "gemini-flash-lite-latest"
)

// GenerateOptions configures a single generation call.
type GenerateOptions struct {
	Temperature  float32
	MaxTokens    int32
	SystemPrompt string
	Model        string // overrides the client's default model when set
}

// Client is the contract the summariser depends on. Implementations must
// report availability without panicking and must honour ctx cancellation.
type Client interface {
	Generate(ctx context.Context, prompt string, options GenerateOptions) (string, error)
	IsAvailable(ctx context.Context) bool
	ContextWindow() int
}

// GeminiClient is a Client backed by google.golang.org/genai.
type GeminiClient struct {
	apiKey    string
	modelName string
	gClient   *genai.Client
}

// NewGeminiClient builds a Gemini-backed client. The API key is resolved,
// in order, from GEMINI_API_KEY, GOOGLE_GEMINI_API_KEY,
// GOOGLE_AI_API_KEY, or the ai.gemini.api_key viper key.
func NewGeminiClient(modelName string) (*GeminiClient, error) {
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
		modelName = viper.GetString("ai.gemini.model")
		if modelName == "" {
			modelName = DefaultModel
		}
	}

	ctx := context.Background()
	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	return &GeminiClient{apiKey: apiKey, modelName: modelName, gClient: gClient}, nil
}

// Generate sends a single prompt and returns the model's text response.
func (c *GeminiClient) Generate(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	model := c.modelName
	if options.Model != "" {
		model = options.Model
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	config := &genai.GenerateContentConfig{}
	if options.Temperature > 0 {
		config.Temperature = &options.Temperature
	}
	if options.MaxTokens > 0 {
		config.MaxOutputTokens = options.MaxTokens
	}
	if options.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: options.SystemPrompt}}}
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		if ctx.Err() != nil {
			return "", apperr.Wrap(apperr.Cancelled, "generation cancelled", ctx.Err())
		}
		return "", apperr.Wrap(apperr.ExternalUnavailable, "gemini generation failed", err)
	}

	text := resp.Text()
	if text == "" {
		return "", apperr.New(apperr.ExternalUnavailable, "empty response from model")
	}
	return text, nil
}

// IsAvailable probes the client with a minimal generation request.
func (c *GeminiClient) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.Generate(probeCtx, "ping", GenerateOptions{MaxTokens: 8})
	return err == nil
}

// ContextWindow reports the model's approximate context window in tokens.
// Gemini Flash Lite's published window; adjust per model if a larger
// variant is configured.
func (c *GeminiClient) ContextWindow() int {
	return 1_000_000
}

// Close releases the underlying client resources.
func (c *GeminiClient) Close() {}

// GenerateJSON generates a response and decodes it into T, stripping any
// markdown code fences the model wraps the JSON in first. The caller's
// prompt is responsible for instructing the model to emit JSON.
func GenerateJSON[T any](ctx context.Context, c Client, prompt string, options GenerateOptions) (T, error) {
	var zero T
	raw, err := c.Generate(ctx, prompt, options)
	if err != nil {
		return zero, err
	}
	cleaned := CleanResponse(raw)
	var out T
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return zero, apperr.Wrap(apperr.ExternalUnavailable, "malformed JSON response from model", err)
	}
	return out, nil
}

// CleanResponse strips markdown code fences and leading/trailing
// whitespace from a raw model response, and drops a leading refusal-style
// sentence ("I cannot ...", "I'm sorry ...") when one precedes the
// payload on its own line.
func CleanResponse(response string) string {
	cleaned := strings.TrimSpace(response)
	switch {
	case strings.HasPrefix(cleaned, "```json"):
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	case strings.HasPrefix(cleaned, "```"):
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	cleaned = strings.TrimSpace(cleaned)

	lines := strings.SplitN(cleaned, "\n", 2)
	if len(lines) == 2 && isRefusalPrefix(lines[0]) {
		cleaned = strings.TrimSpace(lines[1])
	}

	cleaned = collapseBlankLines(cleaned)
	return cleaned
}

var refusalPrefixes = []string{
	"i cannot", "i can't", "i'm sorry", "i am sorry", "as an ai",
}

func isRefusalPrefix(line string) bool {
	lower := strings.ToLower(strings.TrimSpace(line))
	for _, p := range refusalPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := false
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
