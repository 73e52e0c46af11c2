package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrEmbeddingService marks failures of the external embedding service:
// transport errors, non-2xx statuses, and malformed payloads. Callers match
// it with errors.Is.
var ErrEmbeddingService = errors.New("embedding service failure")

// bgeQueryInstruction is the retrieval instruction BGE-family models expect
// to be prepended to queries (not passages).
const bgeQueryInstruction = "为这个句子生成表示以用于检索相关文章："

// EmbeddingProvider turns text into fixed-length vectors. Implementations
// must report failures as errors and never return empty or partial vectors.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	Dimensions() int
}

// EmbeddingConfig holds configuration for the embedding service client.
type EmbeddingConfig struct {
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	Timeout    time.Duration
}

// EmbeddingService calls an OpenAI-compatible /embeddings endpoint.
type EmbeddingService struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
}

// NewEmbeddingService creates a new embedding service client.
// Parameters:
//   - cfg: provider configuration; BaseURL and Model are required.
// Returns:
//   - *EmbeddingService: initialized client.
func NewEmbeddingService(cfg *EmbeddingConfig) *EmbeddingService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)

	return &EmbeddingService{
		client:     client,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/embeddings",
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// GetModel returns the model name being used.
func (s *EmbeddingService) GetModel() string {
	return s.model
}

// Dimensions returns the configured vector dimensionality.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// OpenAI-compatible request/response structures
type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed generates an embedding for a single text.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - text: input text.
// Returns:
//   - []float32: embedding vector.
//   - error: wraps ErrEmbeddingService on any provider failure.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", ErrEmbeddingService)
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - texts: input texts.
// Returns:
//   - [][]float32: one vector per input, in input order.
//   - error: wraps ErrEmbeddingService on any provider failure.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := embeddingRequest{
		Model:      s.model,
		Input:      texts,
		Dimensions: s.dimensions,
	}

	var resp embeddingResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(s.endpoint)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingService, err)
	}

	if httpResp.StatusCode() != 200 {
		if resp.Error != nil && resp.Error.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrEmbeddingService, resp.Error.Message)
		}
		return nil, fmt.Errorf("%w: status %d", ErrEmbeddingService, httpResp.StatusCode())
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings, expected %d", ErrEmbeddingService, len(resp.Data), len(texts))
	}

	// Sort by index to ensure correct order
	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(embeddings) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrEmbeddingService, item.Index)
		}
		embeddings[item.Index] = item.Embedding
	}
	for i, vec := range embeddings {
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: empty vector at index %d", ErrEmbeddingService, i)
		}
	}

	return embeddings, nil
}

// EmbedQuery generates an embedding optimized for query/search. BGE-family
// models get the retrieval instruction prefixed to the query text.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - query: query text.
// Returns:
//   - []float32: embedding vector.
//   - error: wraps ErrEmbeddingService on any provider failure.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if strings.Contains(strings.ToLower(s.model), "bge") {
		query = bgeQueryInstruction + query
	}
	return s.Embed(ctx, query)
}
