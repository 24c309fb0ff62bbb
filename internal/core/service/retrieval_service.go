package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/taxentia/taxentia-api/internal/core/domain"
	"github.com/taxentia/taxentia-api/internal/core/ports"
)

// DefaultTopK is the number of chunks retrieved per question when the caller
// does not ask for a specific count.
const DefaultTopK = 5

// QueryEmbedder turns a question into a query-side embedding vector.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcher ranks stored chunks by similarity to an embedding vector.
type ChunkSearcher interface {
	Search(ctx context.Context, vector []float32, limit int) ([]domain.RetrievedChunk, error)
}

// AuthorityResolver looks up the canonical stored record behind a retrieved
// chunk.
type AuthorityResolver interface {
	FindByChunkID(ctx context.Context, chunkID string) (*domain.Authority, error)
}

type retrievalService struct {
	embedder QueryEmbedder
	searcher ChunkSearcher
	resolver AuthorityResolver
	logger   zerolog.Logger
}

// NewRetrievalService builds a Retriever over the embedder, the vector index
// and the authority store.
func NewRetrievalService(embedder QueryEmbedder, searcher ChunkSearcher, resolver AuthorityResolver, logger zerolog.Logger) ports.Retriever {
	return &retrievalService{
		embedder: embedder,
		searcher: searcher,
		resolver: resolver,
		logger:   logger.With().Str("component", "retrieval_service").Logger(),
	}
}

func (s *retrievalService) Retrieve(ctx context.Context, question string, limit int) ([]domain.Authority, []string, error) {
	if limit <= 0 {
		limit = DefaultTopK
	}

	// 1. Embed the question with the query-side task type.
	vector, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding question: %w", err)
	}

	// 2. Rank stored chunks against the question vector.
	hits, err := s.searcher.Search(ctx, vector, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("searching authorities: %w", err)
	}

	// 3. Resolve each hit to its stored record so responses carry canonical
	// authority ids. Hits the store no longer knows keep the chunk payload
	// and are keyed by chunk id instead. A chunk returned twice appears
	// once, at its best rank.
	authorities := make([]domain.Authority, 0, len(hits))
	ids := make([]string, 0, len(hits))
	seen := make(map[string]bool, len(hits))
	for _, hit := range hits {
		authority, id := s.resolve(ctx, hit)
		key := id
		if key == "" {
			key = string(authority.SourceType) + "|" + authority.Citation
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		authorities = append(authorities, authority)
		ids = append(ids, id)
	}

	s.logger.Debug().
		Int("hits", len(hits)).
		Int("authorities", len(authorities)).
		Msg("authorities retrieved")
	return authorities, ids, nil
}

func (s *retrievalService) resolve(ctx context.Context, hit domain.RetrievedChunk) (domain.Authority, string) {
	stored, err := s.resolver.FindByChunkID(ctx, hit.ChunkID)
	if err == nil {
		return *stored, stored.ID
	}
	if !errors.Is(err, domain.ErrAuthorityNotFound) {
		s.logger.Warn().
			Err(err).
			Str("chunk_id", hit.ChunkID).
			Str("citation", hit.Citation).
			Msg("authority lookup failed, falling back to chunk payload")
	}
	return hit.Authority(), hit.ChunkID
}
