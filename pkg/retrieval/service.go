package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Retrieval defaults.
const (
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.7
)

// Service ties splitting, embedding, and storage together.
type Service struct {
	embedder Embedder
	store    Store
	splitter *Splitter
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSplitter overrides the text splitter.
func WithSplitter(s *Splitter) ServiceOption {
	return func(svc *Service) { svc.splitter = s }
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(svc *Service) { svc.logger = logger }
}

// NewService creates a retrieval service.
func NewService(embedder Embedder, store Store, opts ...ServiceOption) *Service {
	svc := &Service{
		embedder: embedder,
		store:    store,
		splitter: NewSplitter(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// IndexDocument splits, embeds, and stores a document's text.
// Returns the number of chunks stored.
func (s *Service) IndexDocument(ctx context.Context, userID, documentID, text string) (int, error) {
	pieces := s.splitter.Split(text)
	if len(pieces) == 0 {
		return 0, nil
	}

	vectors, err := s.embedder.Embed(ctx, pieces)
	if err != nil {
		return 0, fmt.Errorf("embed document: %w", err)
	}
	if len(vectors) != len(pieces) {
		return 0, fmt.Errorf("embedding count mismatch: %d vectors for %d chunks", len(vectors), len(pieces))
	}

	chunks := make([]Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = Chunk{
			UserID:     userID,
			DocumentID: documentID,
			Content:    p,
			Embedding:  vectors[i],
		}
	}
	if err := s.store.Add(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}

	s.logger.Debug("document indexed",
		slog.String("user_id", userID),
		slog.String("document_id", documentID),
		slog.Int("chunks", len(chunks)),
	)
	return len(chunks), nil
}

// Context retrieves relevant chunk texts for a query and joins them into a
// single context block. Returns "" when nothing clears the similarity
// threshold. An empty documentID searches all of the user's documents.
func (s *Service) Context(ctx context.Context, query, userID, documentID string, topK int, threshold float64) (string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.store.Search(ctx, embedding, userID, documentID, topK, threshold)
	if err != nil {
		return "", fmt.Errorf("search chunks: %w", err)
	}
	if len(hits) == 0 {
		return "", nil
	}

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Content
	}
	return strings.Join(texts, "\n\n"), nil
}

// DeleteDocument removes an indexed document.
func (s *Service) DeleteDocument(ctx context.Context, userID, documentID string) error {
	return s.store.DeleteDocument(ctx, userID, documentID)
}
