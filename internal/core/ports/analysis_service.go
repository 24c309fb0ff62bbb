package ports

import (
	"context"

	"github.com/taxentia/taxentia-api/internal/core/domain"
)

// AnalysisService turns a question plus retrieved authorities into a
// structured, cited analysis.
type AnalysisService interface {
	// Generate never fails from the caller's perspective: any model error is
	// converted into a deterministic, schema-valid fallback response.
	Generate(ctx context.Context, question string, authorities []domain.Authority) *domain.TaxResponse
}
