package api

import (
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/taxentia/taxentia-api/internal/api/handler"
	"github.com/taxentia/taxentia-api/internal/api/middleware"
	"github.com/taxentia/taxentia-api/internal/core/service"
	mongodb "github.com/taxentia/taxentia-api/internal/infrastructure/db/mongo"
	redisdb "github.com/taxentia/taxentia-api/internal/infrastructure/db/redis"
	"github.com/taxentia/taxentia-api/internal/infrastructure/llm"
	"github.com/taxentia/taxentia-api/internal/infrastructure/vector"
)

// Dependencies carries the infrastructure handles the router wires together.
type Dependencies struct {
	Mongo         *mongo.Database
	Redis         *redis.Client
	Vector        *vector.QdrantClient
	Embedder      *llm.GeminiEmbedder
	LLM           *llm.GeminiClient
	JWTSecret     string
	SessionSecret string
	TopK          int
	Logger        zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(session.Middleware(sessions.NewCookieStore([]byte(deps.SessionSecret))))

	// --- Repositories ---
	userRepo := mongodb.NewUserRepository(deps.Mongo)
	authorityRepo := mongodb.NewAuthorityRepository(deps.Mongo)
	queryRepo := mongodb.NewQueryRepository(deps.Mongo)
	quota := redisdb.NewQuotaStore(deps.Redis)

	// --- Services ---
	authService := service.NewAuthService(userRepo, deps.JWTSecret, deps.Logger)
	retriever := service.NewRetrievalService(deps.Embedder, deps.Vector, authorityRepo, deps.Logger)
	analysis := service.NewAnalysisService(deps.LLM, deps.Logger)
	research := service.NewResearchService(queryRepo, userRepo, retriever, analysis, quota, deps.TopK, deps.Logger)

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(authService, quota)
	researchHandler := handler.NewResearchHandler(research)
	authorityHandler := handler.NewAuthorityHandler(authorityRepo)
	authMiddleware := middleware.Auth(deps.JWTSecret)

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/logout", authHandler.Logout)
	e.GET("/auth/me", authHandler.Me, authMiddleware)

	// --- Research routes (authenticated) ---
	apiGroup := e.Group("/api", authMiddleware)
	apiGroup.POST("/taxentia/query", researchHandler.Submit)
	apiGroup.GET("/queries", researchHandler.History)
	apiGroup.GET("/queries/:id", researchHandler.Get)
	apiGroup.GET("/authorities", authorityHandler.List)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Mongo, deps.Redis, deps.Vector)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	// --- Operational surfaces ---
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
