package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/taxentia/taxentia-api/internal/core/domain"
	"github.com/taxentia/taxentia-api/internal/core/ports"
)

// maxEmbedChars guards against chunks too large for a single embedding call.
// Custom chunk sizes can exceed the default bound, so oversized text is
// truncated before embedding, matching what gets stored.
const maxEmbedChars = 9000

// DefaultEmbedBatchSize is how many chunks go into one embedding request.
const DefaultEmbedBatchSize = 40

// Embedder produces embedding vectors for document text.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorPoint pairs a chunk with its numeric point id and embedding,
// ready for loading into the vector index.
type VectorPoint struct {
	ID     uint32
	Vector []float32
	Chunk  Chunk
}

// VectorIndex stores chunk vectors for similarity search.
type VectorIndex interface {
	EnsureCollection(ctx context.Context) error
	UpsertChunks(ctx context.Context, points []VectorPoint) error
}

// Stats summarizes an ingestion run.
type Stats struct {
	Documents int
	Chunks    int
	Points    int
	Skipped   int
}

// Pipeline loads authority documents: it chunks each one, embeds the chunks
// in batches, upserts the vectors into the index, and upserts one authority
// record per chunk. Documents are processed strictly in sequence; a document
// that fails is logged and skipped so the rest of the manifest still loads.
type Pipeline struct {
	chunker     *Chunker
	embedder    Embedder
	index       VectorIndex
	authorities ports.AuthorityRepository
	batchSize   int
	logger      zerolog.Logger
}

// NewPipeline wires an ingestion pipeline. A non-positive batchSize falls
// back to DefaultEmbedBatchSize.
func NewPipeline(
	chunker *Chunker,
	embedder Embedder,
	index VectorIndex,
	authorities ports.AuthorityRepository,
	batchSize int,
	logger zerolog.Logger,
) *Pipeline {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	return &Pipeline{
		chunker:     chunker,
		embedder:    embedder,
		index:       index,
		authorities: authorities,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// Run ingests the given documents and reports totals. Re-running with the
// same manifest is idempotent: chunk ids are deterministic and both stores
// upsert by id.
func (p *Pipeline) Run(ctx context.Context, docs []Document) (*Stats, error) {
	if err := p.index.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	stats := &Stats{}
	for i := range docs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		n, err := p.ingestDocument(ctx, &docs[i])
		if err != nil {
			p.logger.Error().
				Err(err).
				Str("citation", docs[i].Citation).
				Msg("document ingestion failed, skipping")
			stats.Skipped++
			continue
		}
		stats.Documents++
		stats.Chunks += n
		stats.Points += n
	}

	p.logger.Info().
		Int("documents", stats.Documents).
		Int("chunks", stats.Chunks).
		Int("skipped", stats.Skipped).
		Msg("ingestion complete")
	return stats, nil
}

func (p *Pipeline) ingestDocument(ctx context.Context, doc *Document) (int, error) {
	chunks := p.chunker.Split(doc.Text, ChunkMeta{
		SourceType:  doc.SourceType,
		Citation:    doc.Citation,
		Title:       doc.Title,
		Section:     doc.Section,
		URL:         doc.URL,
		VersionDate: doc.VersionDate,
	})
	if len(chunks) == 0 {
		p.logger.Warn().Str("citation", doc.Citation).Msg("document produced no chunks, skipping")
		return 0, nil
	}

	for i := range chunks {
		if len(chunks[i].Text) > maxEmbedChars {
			p.logger.Warn().
				Str("chunk_id", chunks[i].ID).
				Int("chars", len(chunks[i].Text)).
				Msg("chunk exceeds embedding limit, truncating")
			chunks[i].Text = strings.ToValidUTF8(chunks[i].Text[:maxEmbedChars], "")
		}
	}

	vectors, err := p.embedAll(ctx, chunks)
	if err != nil {
		return 0, err
	}

	points := make([]VectorPoint, 0, len(chunks))
	for i, ch := range chunks {
		points = append(points, VectorPoint{
			ID:     NumericChunkID(ch.ID),
			Vector: vectors[i],
			Chunk:  ch,
		})
	}
	if err := p.index.UpsertChunks(ctx, points); err != nil {
		return 0, fmt.Errorf("upsert vectors: %w", err)
	}

	now := time.Now().UTC()
	for _, ch := range chunks {
		authority := &domain.Authority{
			SourceType:  ch.Meta.SourceType,
			Citation:    ch.Meta.Citation,
			Title:       ch.Meta.Title,
			Section:     ch.Meta.Section,
			URL:         ch.Meta.URL,
			Content:     ch.Text,
			VersionDate: ch.Meta.VersionDate,
			ChunkID:     ch.ID,
			IngestedAt:  now,
		}
		if _, err := p.authorities.Upsert(ctx, authority); err != nil {
			return 0, fmt.Errorf("upsert authority %s: %w", ch.ID, err)
		}
	}

	p.logger.Info().
		Str("citation", doc.Citation).
		Str("source_type", string(doc.SourceType)).
		Int("chunks", len(chunks)).
		Msg("document ingested")
	return len(chunks), nil
}

// embedAll embeds chunk texts in batches, preserving order.
func (p *Pipeline) embedAll(ctx context.Context, chunks []Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, ch := range chunks[start:end] {
			texts = append(texts, ch.Text)
		}

		batch, err := p.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch at chunk %d: %w", start, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embed batch at chunk %d: got %d vectors for %d texts", start, len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
