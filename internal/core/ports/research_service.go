package ports

import (
	"context"

	"github.com/taxentia/taxentia-api/internal/core/domain"
)

// ResearchService defines the use-case operations for research queries.
type ResearchService interface {
	// Submit runs the full pipeline for one question: quota check, authority
	// retrieval, analysis generation, persistence. The returned query always
	// carries a schema-valid response; analysis failures degrade to a
	// fallback rather than an error.
	Submit(ctx context.Context, userID, question string) (*domain.TaxQuery, error)
	// History returns the user's queries, most recent first.
	History(ctx context.Context, userID string) ([]*domain.TaxQuery, error)
	// Get returns a single query. Requesting another user's query yields
	// domain.ErrForbidden.
	Get(ctx context.Context, userID, queryID string) (*domain.TaxQuery, error)
}
