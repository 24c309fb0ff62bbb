package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taxentia/taxentia-api/internal/core/domain"
)

const collectionAuthorities = "authorities"

// AuthorityRepository implements ports.AuthorityRepository on MongoDB.
type AuthorityRepository struct {
	col *mongo.Collection
}

func NewAuthorityRepository(db *mongo.Database) *AuthorityRepository {
	return &AuthorityRepository{col: db.Collection(collectionAuthorities)}
}

// Upsert replaces the stored record identified by chunk id, or by
// sourceType+citation for records without one. Re-ingesting a document
// therefore rewrites its chunks in place instead of accumulating copies.
func (r *AuthorityRepository) Upsert(ctx context.Context, a *domain.Authority) (*domain.Authority, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"chunk_id": a.ChunkID}
	if a.ChunkID == "" {
		filter = bson.M{"source_type": a.SourceType, "citation": a.Citation, "chunk_id": bson.M{"$exists": false}}
	}

	// _id is immutable, so the replacement never carries one. New records get
	// a fresh uuid on insert; existing records keep theirs.
	update := bson.M{
		"$set": bson.M{
			"source_type":  a.SourceType,
			"citation":     a.Citation,
			"title":        a.Title,
			"section":      a.Section,
			"url":          a.URL,
			"content":      a.Content,
			"version_date": a.VersionDate,
			"ingested_at":  a.IngestedAt,
		},
		"$setOnInsert": bson.M{"_id": uuid.NewString()},
	}
	if a.ChunkID != "" {
		update["$set"].(bson.M)["chunk_id"] = a.ChunkID
	}

	if _, err := r.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return nil, fmt.Errorf("upsert authority: %w", err)
	}

	var stored domain.Authority
	if err := r.col.FindOne(ctx, filter).Decode(&stored); err != nil {
		return nil, fmt.Errorf("read back authority: %w", err)
	}
	return &stored, nil
}

func (r *AuthorityRepository) FindByID(ctx context.Context, id string) (*domain.Authority, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var a domain.Authority
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAuthorityNotFound
		}
		return nil, fmt.Errorf("find authority: %w", err)
	}
	return &a, nil
}

// FindByChunkID returns the canonical record for a vector index chunk.
func (r *AuthorityRepository) FindByChunkID(ctx context.Context, chunkID string) (*domain.Authority, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var a domain.Authority
	if err := r.col.FindOne(ctx, bson.M{"chunk_id": chunkID}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAuthorityNotFound
		}
		return nil, fmt.Errorf("find authority by chunk id: %w", err)
	}
	return &a, nil
}

// List returns authorities in ingestion order, optionally restricted to the
// given source types. An empty set means no restriction.
func (r *AuthorityRepository) List(ctx context.Context, sourceTypes []domain.SourceType) ([]*domain.Authority, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if len(sourceTypes) > 0 {
		filter["source_type"] = bson.M{"$in": sourceTypes}
	}

	opts := options.Find().SetSort(bson.D{{Key: "ingested_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list authorities: %w", err)
	}
	defer cursor.Close(ctx)

	authorities := []*domain.Authority{}
	if err := cursor.All(ctx, &authorities); err != nil {
		return nil, fmt.Errorf("decode authorities: %w", err)
	}
	return authorities, nil
}

// EnsureIndexes creates the lookup indexes. chunk_id is unique but sparse;
// records created without one are exempt.
func (r *AuthorityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "chunk_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{Keys: bson.D{{Key: "source_type", Value: 1}, {Key: "citation", Value: 1}}},
		{Keys: bson.D{{Key: "ingested_at", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
