// Package retrieval implements document retrieval for grounding model
// responses: text splitting, embedding, vector storage, and similarity
// search scoped to a user and optionally a single document.
package retrieval

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder converts text into embedding vectors.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// DefaultEmbeddingModel is used when no model is configured.
const DefaultEmbeddingModel = string(openai.SmallEmbedding3)

// embeddingClient is the subset of the go-openai client used here.
type embeddingClient interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIEmbedder implements Embedder via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client embeddingClient
	model  openai.EmbeddingModel
}

// OpenAIEmbedderOption configures OpenAIEmbedder.
type OpenAIEmbedderOption func(*OpenAIEmbedder)

// WithEmbeddingClient substitutes the underlying API client.
func WithEmbeddingClient(c embeddingClient) OpenAIEmbedderOption {
	return func(e *OpenAIEmbedder) { e.client = c }
}

// WithEmbeddingModel overrides the embedding model.
func WithEmbeddingModel(model string) OpenAIEmbedderOption {
	return func(e *OpenAIEmbedder) { e.model = openai.EmbeddingModel(model) }
}

// NewOpenAIEmbedder creates an embedder backed by the OpenAI API.
// An API key is required for embeddings; there is no degraded mode.
func NewOpenAIEmbedder(apiKey string, opts ...OpenAIEmbedderOption) (*OpenAIEmbedder, error) {
	e := &OpenAIEmbedder{model: openai.EmbeddingModel(DefaultEmbeddingModel)}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		if apiKey == "" {
			return nil, errors.New("retrieval: api key is required for embeddings")
		}
		e.client = openai.NewClient(apiKey)
	}
	return e, nil
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d inputs", len(resp.Data), len(texts))
	}

	// Response entries carry an index; order by it rather than trusting
	// response order.
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// EmbedQuery implements Embedder.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, errors.New("retrieval: empty embedding response")
	}
	return vecs[0], nil
}
