package ports

import (
	"context"

	"github.com/taxentia/taxentia-api/internal/core/domain"
)

// Retriever finds the authorities most similar to a question.
type Retriever interface {
	// Retrieve returns up to limit authorities ranked by similarity, plus the
	// ids of the records actually used (for persistence alongside the query).
	Retrieve(ctx context.Context, question string, limit int) ([]domain.Authority, []string, error)
}
