package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mualim/api/internal/config"
	"github.com/mualim/api/internal/database"
	"github.com/mualim/api/internal/entitlement"
	"github.com/mualim/api/internal/generation"
	"github.com/mualim/api/internal/handlers"
	"github.com/mualim/api/internal/llm"
	"github.com/mualim/api/internal/middleware"
	"github.com/mualim/api/internal/session"
	"github.com/mualim/api/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/mualim/api/docs" // Swagger docs
)

// @title Mualim API
// @version 0.3.0
// @description Structured lesson content generation for teachers.
// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
func main() {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	zapConfig := zap.NewProductionConfig()
	zapConfig.OutputPaths = []string{"stdout"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}
	logger, err := zapConfig.Build()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("mualim api starting",
		zap.String("environment", cfg.Environment),
		zap.Strings("models", cfg.Generation.Models),
	)

	shutdownTracer, err := telemetry.InitTracer(ctx, "mualim-api", cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracing", zap.Error(err))
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error("failed to shutdown tracing", zap.Error(err))
			}
		}()
	}

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	healthDeps := map[string]handlers.Pinger{"postgres": db, "redis": nil, "nats": nil}

	// Redis is optional: sessions fall back to process memory and
	// entitlements are read straight from Postgres.
	memberships := entitlement.NewService(db.Pool(), logger)
	var (
		sessions     session.Store
		entitlements entitlement.Store = memberships
	)
	rdb, err := database.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory sessions", zap.Error(err))
		mem := session.NewMemoryStore(cfg.Generation.SeenCapacity, cfg.Generation.SessionTTL)
		go mem.RunSweeper(ctx, 10*time.Minute)
		sessions = mem
	} else {
		defer rdb.Close()
		healthDeps["redis"] = rdb
		sessions = session.NewRedisStore(rdb.Client(), cfg.Generation.SeenCapacity, cfg.Generation.SessionTTL)
		entitlements = entitlement.NewCachedStore(memberships, rdb.Client(), cfg.Generation.EntitlementCacheTTL, logger)
	}

	sinks := []telemetry.Sink{telemetry.LogSink{Logger: logger}, telemetry.NewPostgresSink(db.Pool())}
	if cfg.NATSURL != "" {
		nc, err := telemetry.ConnectNATS(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn("nats unavailable, telemetry stays local", zap.Error(err))
		} else {
			defer nc.Drain()
			healthDeps["nats"] = handlers.PingFunc(nc.FlushWithContext)
			sinks = append(sinks, telemetry.NewNATSSink(nc, logger))
		}
	}
	events := telemetry.NewRecorder(logger, 256, 2*time.Second, sinks...)
	defer events.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	router, err := llm.NewRouterFromConfig(ctx, llm.Config{
		OpenAIKey:        cfg.OpenAIKey,
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		AnthropicKey:     cfg.AnthropicKey,
		AnthropicBaseURL: cfg.AnthropicBaseURL,
		GeminiKey:        cfg.GeminiKey,
		GeminiBaseURL:    cfg.GeminiBaseURL,
		MaxTokens:        cfg.Generation.MaxTokens,
	}, logger)
	if err != nil {
		logger.Fatal("failed to initialize model providers", zap.Error(err))
	}

	g := cfg.Generation
	pipeline := generation.NewPipeline(g.Ladder(), router, g.NoveltyRetries, metrics, logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.CORS(cfg.CORSOrigins))

	engine.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	healthHandler := handlers.NewHealthHandler(healthDeps, router.Providers())
	engine.GET("/health", healthHandler.Health)
	engine.GET("/health/deep", healthHandler.DeepHealth)

	authHandler := handlers.NewAuthHandler(db.Pool(), memberships, entitlements, events, cfg.JWTSecret, logger)
	generationHandler := handlers.NewGenerationHandler(pipeline, sessions, events, telemetry.NewGenerationLogs(db.Pool()), metrics, logger)

	v1 := engine.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		v1.GET("/generate/kinds", generationHandler.Kinds)

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			protected.GET("/user/me", authHandler.GetCurrentUser)

			gen := protected.Group("/generate")
			gen.Use(middleware.RequireMembership(entitlements, logger))
			gen.Use(middleware.RateLimitMiddleware(middleware.NewGenerationRateLimiter(g.RateLimitPerMinute)))
			gen.Use(middleware.CircuitBreakerMiddleware(middleware.NewCircuitBreaker(5, 2, 30*time.Second)))
			gen.POST("/:kind", generationHandler.Generate)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: g.RequestBudget() + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port), zap.Strings("providers", router.Providers()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited gracefully")
}
