package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/taxentia/taxentia-api/internal/core/domain"
	"github.com/taxentia/taxentia-api/internal/core/ports"
)

// QuotaKeeper enforces the per-user daily query allowance.
type QuotaKeeper interface {
	// Consume records one query for the user and returns
	// domain.ErrQuotaExceeded once the daily limit is spent. A limit of zero
	// or less means unlimited.
	Consume(ctx context.Context, userID string, limit int) error
}

type researchService struct {
	queries   ports.QueryRepository
	users     ports.UserRepository
	retriever ports.Retriever
	analysis  ports.AnalysisService
	quota     QuotaKeeper
	topK      int
	logger    zerolog.Logger
}

// NewResearchService wires the full research pipeline. topK is the number of
// chunks retrieved per question; non-positive values fall back to DefaultTopK.
// quota may be nil, which disables the daily allowance entirely.
func NewResearchService(
	queries ports.QueryRepository,
	users ports.UserRepository,
	retriever ports.Retriever,
	analysis ports.AnalysisService,
	quota QuotaKeeper,
	topK int,
	logger zerolog.Logger,
) ports.ResearchService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &researchService{
		queries:   queries,
		users:     users,
		retriever: retriever,
		analysis:  analysis,
		quota:     quota,
		topK:      topK,
		logger:    logger.With().Str("component", "research_service").Logger(),
	}
}

func (s *researchService) Submit(ctx context.Context, userID, question string) (*domain.TaxQuery, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrInvalidQuery
	}

	// 1. Resolve the user; the tier decides the daily allowance.
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving user: %w", err)
	}

	// 2. Enforce the allowance. A broken quota backend does not block
	// research, only an exhausted allowance does.
	if s.quota != nil {
		switch err := s.quota.Consume(ctx, userID, domain.DailyQueryLimit(user.Tier)); {
		case errors.Is(err, domain.ErrQuotaExceeded):
			return nil, err
		case err != nil:
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("quota check failed, allowing query")
		}
	}

	// 3. Retrieve the closest authority chunks. Retrieval failure degrades
	// to a fallback response rather than failing the request.
	var response *domain.TaxResponse
	authorities, retrievedIDs, err := s.retriever.Retrieve(ctx, question, s.topK)
	if err != nil {
		s.logger.Error().Err(err).Msg("authority retrieval failed")
		response = FallbackResponse(nil, "Authority retrieval is temporarily unavailable.")
	} else {
		// 4. Generate the structured analysis. Generate never errors; model
		// failures come back as a fallback response.
		response = s.analysis.Generate(ctx, question, authorities)
	}

	// 5. Persist the finished query. Persistence is the only step whose
	// failure surfaces to the caller past this point.
	query := &domain.TaxQuery{
		UserID:          userID,
		Query:           question,
		Response:        response,
		Confidence:      response.Confidence.Score,
		ConfidenceColor: response.Confidence.Color,
		RetrievedIDs:    retrievedIDs,
		CreatedAt:       time.Now().UTC(),
	}
	created, err := s.queries.Create(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("storing query: %w", err)
	}

	s.logger.Info().
		Str("query_id", created.ID).
		Str("user_id", userID).
		Int("authorities", len(authorities)).
		Int("confidence", response.Confidence.Score).
		Str("color", response.Confidence.Color).
		Msg("research query answered")
	return created, nil
}

func (s *researchService) History(ctx context.Context, userID string) ([]*domain.TaxQuery, error) {
	return s.queries.ListByUser(ctx, userID)
}

func (s *researchService) Get(ctx context.Context, userID, queryID string) (*domain.TaxQuery, error) {
	query, err := s.queries.FindByID(ctx, queryID)
	if err != nil {
		return nil, err
	}
	if query.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return query, nil
}
