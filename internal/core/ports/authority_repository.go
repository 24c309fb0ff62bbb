package ports

import (
	"context"

	"github.com/taxentia/taxentia-api/internal/core/domain"
)

// AuthorityRepository defines persistence operations for authority documents.
type AuthorityRepository interface {
	// Upsert replaces the record with the same chunk id wholesale (falling
	// back to sourceType+citation for records without one), or inserts a new
	// record. Authorities are immutable between ingestions.
	Upsert(ctx context.Context, a *domain.Authority) (*domain.Authority, error)
	FindByID(ctx context.Context, id string) (*domain.Authority, error)
	FindByChunkID(ctx context.Context, chunkID string) (*domain.Authority, error)
	// List returns authorities whose sourceType is in the given set, in
	// insertion order. An empty or nil set returns everything.
	List(ctx context.Context, sourceTypes []domain.SourceType) ([]*domain.Authority, error)
}
