package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/taxentia/taxentia-api/docs"
	"github.com/taxentia/taxentia-api/internal/api"
	"github.com/taxentia/taxentia-api/internal/infrastructure/config"
	mongodb "github.com/taxentia/taxentia-api/internal/infrastructure/db/mongo"
	redisdb "github.com/taxentia/taxentia-api/internal/infrastructure/db/redis"
	"github.com/taxentia/taxentia-api/internal/infrastructure/llm"
	"github.com/taxentia/taxentia-api/internal/infrastructure/vector"
	"github.com/taxentia/taxentia-api/pkg/logger"
)

// @title           Taxentia API
// @version         1.0
// @description     Professional tax research service. Questions are answered
// @description     from primary authority (IRC, Treasury Regulations, IRS
// @description     guidance) with pinpoint citations and a confidence score.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Type "Bearer" followed by a space and a JWT.
func main() {
	cfg := config.Load()

	log := logger.New(logger.Options{
		Service: "api",
		Level:   cfg.LogLevel,
		Pretty:  cfg.Env == "development",
	})

	if cfg.JWTSecret == "" || cfg.SessionSecret == "" {
		log.Fatal().Msg("JWT_SECRET and SESSION_SECRET are required")
	}

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

	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("mongo index creation failed")
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()

	qdrant := vector.NewQdrantClient(vector.QdrantConfig{
		URL:        cfg.Qdrant.URL,
		Collection: cfg.Qdrant.Collection,
		Dimension:  cfg.Qdrant.Dimension,
		APIKey:     cfg.Qdrant.APIKey,
	}, log)
	if err := qdrant.EnsureCollection(ctx); err != nil {
		// Auth and history still work without the vector store; research
		// degrades until it comes back.
		log.Warn().Err(err).Msg("qdrant unavailable at startup")
	}

	embedder, err := llm.NewGeminiEmbedder(ctx, cfg.Gemini.APIKey, cfg.Gemini.EmbeddingModel, log)
	if err != nil {
		log.Fatal().Err(err).Msg("gemini embedder init failed")
	}
	defer embedder.Close()

	gemini := llm.NewGeminiClient(llm.GeminiConfig{
		APIKey:     cfg.Gemini.APIKey,
		Model:      cfg.Gemini.Model,
		Timeout:    cfg.Gemini.Timeout,
		MaxRetries: cfg.Gemini.MaxRetries,
	}, log)

	e := api.NewRouter(api.Dependencies{
		Mongo:         db,
		Redis:         rdb,
		Vector:        qdrant,
		Embedder:      embedder,
		LLM:           gemini,
		JWTSecret:     cfg.JWTSecret,
		SessionSecret: cfg.SessionSecret,
		TopK:          cfg.Research.TopK,
		Logger:        log,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server start failed")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("taxentia api listening")

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
