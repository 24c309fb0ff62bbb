// Package vector holds the Qdrant REST client backing chunk storage and
// similarity search.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/taxentia/taxentia-api/internal/api/metrics"
	"github.com/taxentia/taxentia-api/internal/core/domain"
	"github.com/taxentia/taxentia-api/internal/ingest"
)

const (
	// DefaultCollection is the Qdrant collection holding authority chunks.
	DefaultCollection = "taxentia-authorities"

	defaultQdrantURL = "http://localhost:6333"
	defaultDimension = 768
	defaultTimeout   = 15 * time.Second
)

// QdrantConfig holds connection settings for the vector store.
type QdrantConfig struct {
	URL        string
	Collection string
	Dimension  int
	APIKey     string
	Timeout    time.Duration
}

// QdrantClient talks to Qdrant over its REST API. Points are keyed by the
// numeric chunk id and carry the chunk's full payload so search hits can be
// turned into authorities without a second lookup.
type QdrantClient struct {
	baseURL    string
	collection string
	dimension  int
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewQdrantClient builds a client, substituting defaults for unset fields.
func NewQdrantClient(cfg QdrantConfig, logger zerolog.Logger) *QdrantClient {
	if cfg.URL == "" {
		cfg.URL = defaultQdrantURL
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = defaultDimension
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &QdrantClient{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Ping verifies the store is reachable.
func (c *QdrantClient) Ping(ctx context.Context) error {
	status, _, err := c.do(ctx, http.MethodGet, "/collections", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("qdrant not ready: status %d", status)
	}
	return nil
}

// EnsureCollection creates the chunk collection if it does not exist yet.
// Vectors use cosine distance, matching the embedding model.
func (c *QdrantClient) EnsureCollection(ctx context.Context) error {
	status, _, err := c.do(ctx, http.MethodGet, "/collections/"+c.collection, nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}
	if status != http.StatusNotFound {
		return fmt.Errorf("check collection: status %d", status)
	}

	req := createCollectionRequest{
		Vectors: vectorParams{Size: c.dimension, Distance: "Cosine"},
	}
	status, body, err := c.do(ctx, http.MethodPut, "/collections/"+c.collection, req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("create collection: status %d: %s", status, snippet(body))
	}

	c.logger.Info().
		Str("collection", c.collection).
		Int("dimension", c.dimension).
		Msg("vector collection created")
	return nil
}

// UpsertChunks writes chunk points, replacing any with the same id.
func (c *QdrantClient) UpsertChunks(ctx context.Context, points []ingest.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	qp := make([]qdrantPoint, 0, len(points))
	for _, p := range points {
		qp = append(qp, qdrantPoint{
			ID:      p.ID,
			Vector:  p.Vector,
			Payload: payloadFromChunk(p.Chunk),
		})
	}

	status, body, err := c.do(ctx, http.MethodPut, "/collections/"+c.collection+"/points?wait=true", upsertRequest{Points: qp})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("upsert points: status %d: %s", status, snippet(body))
	}
	return nil
}

// Search returns the chunks most similar to the query vector, best first.
func (c *QdrantClient) Search(ctx context.Context, vector []float32, limit int) ([]domain.RetrievedChunk, error) {
	req := searchRequest{Vector: vector, Limit: limit, WithPayload: true}

	start := time.Now()
	status, body, err := c.do(ctx, http.MethodPost, "/collections/"+c.collection+"/points/search", req)
	metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("search points: status %d: %s", status, snippet(body))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}
	metrics.RetrievalHits.Observe(float64(len(parsed.Result)))

	hits := make([]domain.RetrievedChunk, 0, len(parsed.Result))
	for _, r := range parsed.Result {
		hits = append(hits, domain.RetrievedChunk{
			ChunkID:     r.Payload.ChunkID,
			Score:       r.Score,
			SourceType:  domain.SourceType(r.Payload.SourceType),
			Citation:    r.Payload.Citation,
			Title:       r.Payload.Title,
			Section:     r.Payload.Section,
			URL:         r.Payload.URL,
			VersionDate: r.Payload.VersionDate,
			Text:        r.Payload.Text,
			ChunkIndex:  r.Payload.ChunkIndex,
			TotalChunks: r.Payload.TotalChunks,
		})
	}
	return hits, nil
}

func (c *QdrantClient) do(ctx context.Context, method, path string, payload interface{}) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("call qdrant: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func snippet(body []byte) string {
	s := string(body)
	if len(s) > 256 {
		return s[:256] + "..."
	}
	return s
}

// chunkPayload is the per-point payload stored alongside each vector.
type chunkPayload struct {
	ChunkID     string `json:"chunk_id"`
	SourceType  string `json:"source_type"`
	Citation    string `json:"citation"`
	Title       string `json:"title,omitempty"`
	Section     string `json:"section,omitempty"`
	URL         string `json:"url,omitempty"`
	VersionDate string `json:"version_date,omitempty"`
	Text        string `json:"text"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
}

func payloadFromChunk(ch ingest.Chunk) chunkPayload {
	return chunkPayload{
		ChunkID:     ch.ID,
		SourceType:  string(ch.Meta.SourceType),
		Citation:    ch.Meta.Citation,
		Title:       ch.Meta.Title,
		Section:     ch.Meta.Section,
		URL:         ch.Meta.URL,
		VersionDate: ch.Meta.VersionDate,
		Text:        ch.Text,
		ChunkIndex:  ch.Meta.ChunkIndex,
		TotalChunks: ch.Meta.TotalChunks,
	}
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}

type qdrantPoint struct {
	ID      uint32       `json:"id"`
	Vector  []float32    `json:"vector"`
	Payload chunkPayload `json:"payload"`
}

type upsertRequest struct {
	Points []qdrantPoint `json:"points"`
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type searchResponse struct {
	Result []struct {
		ID      uint64       `json:"id"`
		Score   float64      `json:"score"`
		Payload chunkPayload `json:"payload"`
	} `json:"result"`
}
