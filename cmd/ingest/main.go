package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/taxentia/taxentia-api/internal/infrastructure/config"
	mongodb "github.com/taxentia/taxentia-api/internal/infrastructure/db/mongo"
	"github.com/taxentia/taxentia-api/internal/infrastructure/llm"
	"github.com/taxentia/taxentia-api/internal/infrastructure/vector"
	"github.com/taxentia/taxentia-api/internal/ingest"
	"github.com/taxentia/taxentia-api/pkg/logger"
)

const fetchTimeout = 30 * time.Second

// Loads a manifest of authority documents into the vector index and the
// authority store. Safe to re-run: chunk ids are deterministic and both
// stores upsert.
func main() {
	manifest := flag.String("manifest", "manifest.json", "path to the JSON ingestion manifest")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(logger.Options{
		Service: "ingest",
		Level:   cfg.LogLevel,
		Pretty:  cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	authorities := mongodb.NewAuthorityRepository(db)
	if err := authorities.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("authority index creation failed")
	}

	embedder, err := llm.NewGeminiEmbedder(ctx, cfg.Gemini.APIKey, cfg.Gemini.EmbeddingModel, log)
	if err != nil {
		log.Fatal().Err(err).Msg("gemini embedder init failed")
	}
	defer embedder.Close()

	qdrant := vector.NewQdrantClient(vector.QdrantConfig{
		URL:        cfg.Qdrant.URL,
		Collection: cfg.Qdrant.Collection,
		Dimension:  cfg.Qdrant.Dimension,
		APIKey:     cfg.Qdrant.APIKey,
	}, log)

	loader := ingest.NewLoader(fetchTimeout, log)
	docs, err := loader.LoadManifest(*manifest)
	if err != nil {
		log.Fatal().Err(err).Msg("manifest load failed")
	}

	ready := make([]ingest.Document, 0, len(docs))
	for i := range docs {
		if err := loader.Resolve(ctx, &docs[i]); err != nil {
			log.Error().Err(err).Str("citation", docs[i].Citation).Msg("document fetch failed, skipping")
			continue
		}
		ready = append(ready, docs[i])
	}
	unfetched := len(docs) - len(ready)

	pipeline := ingest.NewPipeline(
		ingest.NewChunker(cfg.Ingest.MaxChunkSize, cfg.Ingest.OverlapSize),
		embedder,
		qdrant,
		authorities,
		cfg.Ingest.EmbedBatch,
		log,
	)

	stats, err := pipeline.Run(ctx, ready)
	if err != nil {
		log.Fatal().Err(err).Msg("ingestion failed")
	}

	skipped := stats.Skipped + unfetched
	log.Info().
		Int("documents", stats.Documents).
		Int("chunks", stats.Chunks).
		Int("points", stats.Points).
		Int("skipped", skipped).
		Msg("ingestion finished")
	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Msg("some documents were not ingested")
	}
}
