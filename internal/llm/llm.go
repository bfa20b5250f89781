// Package llm wraps the Gemini API for structured text generation and
// title embeddings.
package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"google.golang.org/genai"

	"spectra/internal/core"
)

const (
	// TaskRetrievalDocument embeds stored article titles.
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	// TaskRetrievalQuery embeds ad-hoc search queries.
	TaskRetrievalQuery = "RETRIEVAL_QUERY"
)

// TextGenerator is the text-generation surface the analysis pipelines
// depend on. Satisfied by *Client; mocked in tests.
type TextGenerator interface {
	GenerateText(ctx context.Context, model, prompt string, schema *genai.Schema) (string, error)
}

// Embedder is the embedding surface of the client.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float64, error)
}

// Client calls the Gemini API.
type Client struct {
	apiKey         string
	model          string
	lightModel     string
	embeddingModel string
	gClient        *genai.Client
}

// NewClient creates a Gemini client. The API key is resolved from
// GEMINI_API_KEY (or alternatives) or the gemini.api_key config key.
func NewClient(ctx context.Context) (*Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		if apiKey = os.Getenv("GOOGLE_GEMINI_API_KEY"); apiKey == "" {
			if apiKey = os.Getenv("GOOGLE_AI_API_KEY"); apiKey == "" {
				apiKey = viper.GetString("gemini.api_key")
			}
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or gemini.api_key in config file")
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		apiKey:         apiKey,
		model:          viper.GetString("gemini.model"),
		lightModel:     viper.GetString("gemini.light_model"),
		embeddingModel: viper.GetString("gemini.embedding_model"),
		gClient:        gClient,
	}, nil
}

// Model is the default generation model from configuration.
func (c *Client) Model() string { return c.model }

// LightModel is the cheaper model used for labels and summaries.
func (c *Client) LightModel() string { return c.lightModel }

// GenerateText runs one generation call. When schema is non-nil the model is
// forced into JSON mode and the returned string is a JSON document matching
// the schema.
func (c *Client) GenerateText(ctx context.Context, model, prompt string, schema *genai.Schema) (string, error) {
	if model == "" {
		model = c.model
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	var config *genai.GenerateContentConfig
	if schema != nil {
		config = &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
			Temperature:      genai.Ptr(float32(0)),
		}
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

// EmbedBatch embeds up to 100 texts in a single call, returning one vector
// per input in input order. Output dimensionality is fixed at 768 to match
// the database column.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > 100 {
		return nil, fmt.Errorf("embedding batch too large: %d texts (max 100)", len(texts))
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{
			Parts: []*genai.Part{{Text: text}},
			Role:  "user",
		}
	}

	config := &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: genai.Ptr(int32(core.EmbeddingDimensions)),
	}

	resp, err := c.gClient.Models.EmbedContent(ctx, c.embeddingModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("empty embedding response")
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(texts))
	}

	embeddings := make([][]float64, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("no embedding values returned for text %d", i)
		}
		values := make([]float64, len(emb.Values))
		for j, v := range emb.Values {
			values[j] = float64(v)
		}
		embeddings[i] = values
	}
	return embeddings, nil
}

// EmbedText embeds a single text.
func (c *Client) EmbedText(ctx context.Context, text, taskType string) ([]float64, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text}, taskType)
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}
