package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/smritistudio/chat-engine/cmd/mainconfig"
	"github.com/smritistudio/chat-engine/internal/abuse"
	appconfig "github.com/smritistudio/chat-engine/internal/config"
	"github.com/smritistudio/chat-engine/internal/engine"
	"github.com/smritistudio/chat-engine/internal/http/middleware"
	"github.com/smritistudio/chat-engine/internal/llm"
	"github.com/smritistudio/chat-engine/internal/observability/metrics"
	"github.com/smritistudio/chat-engine/internal/patterns"
	"github.com/smritistudio/chat-engine/internal/session"
	"github.com/smritistudio/chat-engine/internal/store"
	"github.com/smritistudio/chat-engine/internal/transcript"
	"github.com/smritistudio/chat-engine/internal/webchat"
	"github.com/smritistudio/chat-engine/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting chat engine API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	sessionStore := store.NewSessionStore(dynamoClient, cfg.SessionsTable, logger)
	configStore := store.NewConfigStore(dynamoClient, cfg.ConfigTable, logger)

	// AI providers: Bedrock primary, Gemini fallback when a key is present.
	var client llm.Client = llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg))
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to initialize Gemini client", "error", err)
			os.Exit(1)
		}
		defer gemini.Close()
		client = llm.NewFallbackClient(client, gemini, logger.Logger)
	}

	dispatcher := engine.NewDispatcher(client, cfg.BedrockModelID, cfg.StudioName,
		cfg.LLMRequestsPerMin, cfg.LLMTimeout, logger)
	classifier := abuse.NewChain(abuse.NewScreener(), abuse.NewLLMClassifier(client, cfg.BedrockModelID))

	var intakeQueue engine.Queue
	if cfg.LearningQueueURL != "" {
		intakeQueue = engine.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.LearningQueueURL)
	} else {
		logger.Warn("LEARNING_QUEUE_URL not set, using in-memory learning queue")
		intakeQueue = engine.NewMemoryQueue(cfg.LearningQueueBuffer)
	}

	chatMetrics := metrics.NewChatMetrics(nil)

	opts := []engine.ServiceOption{
		engine.WithMetrics(chatMetrics),
		engine.WithConfidenceThreshold(cfg.AIFallbackThreshold),
		engine.WithPromotionPolicy(patterns.PromotionPolicy{
			MinOccurrences: cfg.AutoApproveThreshold,
			MinConfidence:  cfg.AutoApproveConfidence,
		}),
	}

	if cfg.RedisAddr != "" {
		redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, recent-history cache disabled", "error", err)
		} else {
			opts = append(opts, engine.WithHistoryCache(session.NewHistoryCache(redisClient, cfg.HistoryTTL, nil)))
		}
	}

	var archiveStore *transcript.ArchiveStore
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		archiveStore = transcript.NewArchiveStore(db)
		opts = append(opts, engine.WithArchiver(archiveStore))
	}

	svc := engine.NewService(sessionStore, configStore, classifier, dispatcher, intakeQueue, logger, opts...)

	// Learning intake consumer runs alongside the API so the in-memory queue
	// works in local setups.
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	worker := engine.NewIntakeWorker(intakeQueue, configStore, dispatcher, logger)
	go func() {
		if err := worker.Run(workerCtx); err != nil {
			logger.Error("intake worker stopped", "error", err)
		}
	}()

	chatHandler := webchat.NewChatHandler(svc, logger)
	adminHandler := webchat.NewAdminHandler(svc, archiveStore, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
		chatHandler.Routes(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminJWT(cfg.AdminJWTSecret))
		adminHandler.Routes(r)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
