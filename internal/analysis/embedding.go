package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultEmbeddingEndpoint = "https://api.jina.ai/v1/embeddings"

	// Transcripts from long segments can exceed the embedding model's input
	// limit; everything past this point is cut before the request. Search
	// recall on the head of the segment matters more than a hard failure.
	maxEmbedChars = 30000
)

// Embedder turns transcript text into dense vectors for semantic search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// EmbeddingService generates transcript embeddings through a Jina-compatible
// API. Passages and queries use asymmetric task modes so stored vectors and
// search vectors land in matching spaces.
type EmbeddingService struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
}

// EmbeddingConfig holds configuration for the embedding service.
type EmbeddingConfig struct {
	Provider   string
	Model      string
	APIKey     string
	Endpoint   string
	Dimensions int
}

// NewEmbeddingService creates a new embedding service.
// Parameters:
//   - cfg: embedding configuration; an empty Endpoint uses the Jina API.
// Returns:
//   - *EmbeddingService: initialized service.
func NewEmbeddingService(cfg *EmbeddingConfig) *EmbeddingService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(30 * time.Second)

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEmbeddingEndpoint
	}

	return &EmbeddingService{
		client:     client,
		endpoint:   endpoint,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

type embeddingRequest struct {
	Model         string   `json:"model"`
	Task          string   `json:"task,omitempty"`
	Dimensions    int      `json:"dimensions,omitempty"`
	Input         []string `json:"input"`
	EmbeddingType string   `json:"embedding_type,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
}

// Embed generates a passage vector for a segment transcript. Oversized
// transcripts are truncated, not rejected.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - text: transcript text to embed.
// Returns:
//   - []float32: dense vector for indexing.
//   - error: non-nil if the API request fails.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) > maxEmbedChars {
		text = text[:maxEmbedChars]
	}
	return s.embed(ctx, "retrieval.passage", text)
}

// EmbedQuery generates a query vector for a search phrase.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - query: search phrase to embed.
// Returns:
//   - []float32: dense vector for similarity search.
//   - error: non-nil if the API request fails.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return s.embed(ctx, "retrieval.query", query)
}

// embed runs one single-input embedding request in the given task mode.
func (s *EmbeddingService) embed(ctx context.Context, task, input string) ([]float32, error) {
	req := embeddingRequest{
		Model:         s.model,
		Task:          task,
		Dimensions:    s.dimensions,
		Input:         []string{input},
		EmbeddingType: "float",
	}

	var resp embeddingResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding API: %w", err)
	}
	if httpResp.StatusCode() != 200 {
		if resp.Detail != "" {
			return nil, fmt.Errorf("embedding API error: %s", resp.Detail)
		}
		return nil, fmt.Errorf("embedding API error: status %d", httpResp.StatusCode())
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding API returned no vectors")
	}
	return resp.Data[0].Embedding, nil
}
