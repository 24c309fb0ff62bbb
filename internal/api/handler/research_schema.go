package handler

import (
	"time"

	"github.com/taxentia/taxentia-api/internal/core/domain"
)

type queryRequest struct {
	Query string `json:"query" validate:"required"`
}

// querySummary is one row of the history listing. The full structured
// response stays behind GET /api/queries/:id.
type querySummary struct {
	ID              string    `json:"id"`
	Query           string    `json:"query"`
	Confidence      int       `json:"confidence"`
	ConfidenceColor string    `json:"confidence_color"`
	CreatedAt       time.Time `json:"created_at"`
}

func toQuerySummary(q *domain.TaxQuery) querySummary {
	return querySummary{
		ID:              q.ID,
		Query:           q.Query,
		Confidence:      q.Confidence,
		ConfidenceColor: q.ConfidenceColor,
		CreatedAt:       q.CreatedAt,
	}
}

type historyResponse struct {
	Queries []querySummary `json:"queries"`
	Total   int            `json:"total"`
}
