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

const collectionQueries = "queries"

// QueryRepository implements ports.QueryRepository on MongoDB.
type QueryRepository struct {
	col *mongo.Collection
}

func NewQueryRepository(db *mongo.Database) *QueryRepository {
	return &QueryRepository{col: db.Collection(collectionQueries)}
}

// Create inserts a fully formed query row. Missing fields get their
// defaults here: a fresh id, a zero/red confidence, the insert time.
func (r *QueryRepository) Create(ctx context.Context, q *domain.TaxQuery) (*domain.TaxQuery, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	created := *q
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	if created.ConfidenceColor == "" {
		created.ConfidenceColor = domain.ColorRed
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	if _, err := r.col.InsertOne(ctx, &created); err != nil {
		return nil, fmt.Errorf("insert query: %w", err)
	}
	return &created, nil
}

func (r *QueryRepository) FindByID(ctx context.Context, id string) (*domain.TaxQuery, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var q domain.TaxQuery
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&q); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrQueryNotFound
		}
		return nil, fmt.Errorf("find query: %w", err)
	}
	return &q, nil
}

// ListByUser returns the user's queries newest first. _id breaks ties
// between rows created in the same instant.
func (r *QueryRepository) ListByUser(ctx context.Context, userID string) ([]*domain.TaxQuery, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer cursor.Close(ctx)

	queries := []*domain.TaxQuery{}
	if err := cursor.All(ctx, &queries); err != nil {
		return nil, fmt.Errorf("decode queries: %w", err)
	}
	return queries, nil
}

// EnsureIndexes creates the history listing index.
func (r *QueryRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
