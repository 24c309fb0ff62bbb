package ports

import (
	"context"

	"github.com/taxentia/taxentia-api/internal/core/domain"
)

// QueryRepository defines persistence operations for research queries.
type QueryRepository interface {
	// Create inserts a fully formed query row. A fresh id is assigned when
	// the caller leaves it empty; confidence defaults to 0/"red" when unset.
	Create(ctx context.Context, q *domain.TaxQuery) (*domain.TaxQuery, error)
	FindByID(ctx context.Context, id string) (*domain.TaxQuery, error)
	// ListByUser returns the user's queries sorted by createdAt descending,
	// most recent first.
	ListByUser(ctx context.Context, userID string) ([]*domain.TaxQuery, error)
}
