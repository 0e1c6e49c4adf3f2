package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"greenpt/app/config"
	"greenpt/app/usecase"
	"greenpt/internal/infrastructure/llm"
	"greenpt/internal/infrastructure/metrics"
	"greenpt/internal/infrastructure/store/filesystem"
	mongorepo "greenpt/internal/infrastructure/store/mongodb"
	"greenpt/internal/infrastructure/transport"
	"greenpt/internal/infrastructure/validator"
)

func main() {
	// .env, если есть
	_ = godotenv.Load()

	// logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// load config
	cfg := loadConfig()

	// Connect to MongoDB
	mongoCtx, mongoCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer mongoCancel()
	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Error("mongo connect failed", "err", err)
		log.Fatalf("mongo connect: %v", err)
	}
	if err := mongoClient.Ping(mongoCtx, nil); err != nil {
		logger.Error("mongo ping failed", "err", err)
		log.Fatalf("mongo ping: %v", err)
	}
	logger.Info("connected to mongo", "uri", cfg.Mongo.URI)
	db := mongoClient.Database(cfg.Mongo.Database)

	// Repositories
	buildRepo := mongorepo.NewMongoBuildRepo(db)
	outcomeRepo := mongorepo.NewMongoFileOutcomeRepo(db)

	workspace, err := filesystem.NewWorkspace(cfg.Storage.GeneratedRoot)
	if err != nil {
		log.Printf("err init workspace: %s", err)
		return
	}
	logRepo, err := filesystem.NewProjectLogRepository(cfg.Storage.LogsRoot)
	if err != nil {
		log.Printf("err init project log repo: %s", err)
		return
	}

	// GreenPT client
	llmClient := llm.NewGreenPTClient(
		cfg.GreenPT.APIKey,
		cfg.GreenPT.BaseURL,
		cfg.GreenPT.ModelsURL,
		cfg.GreenPT.Model,
		cfg.GreenPT.MaxRetries,
	)

	// Usecases / services
	projectSvc := usecase.NewProjectService(logRepo)
	buildSvc := usecase.NewBuildService(buildRepo, outcomeRepo, logRepo, workspace)
	chatSvc := usecase.NewChatService(logRepo, llmClient, buildSvc, logger)

	pipeline := usecase.NewBuildPipeline(
		buildRepo,
		outcomeRepo,
		llmClient,
		workspace,
		validator.NewArtifactLinter(),
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline.Start(ctx) // фоновый воркер

	// Transport (HTTP handlers)
	handler := transport.NewGreenPTHandler(
		projectSvc,
		chatSvc,
		buildSvc,
		llmClient,
		logger,
	)

	// Router and server
	r := mux.NewRouter()
	handler.RegisterRoutes(r)
	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting metrics server on :2112")
		metrics.StartMetricsServer()
	}()

	// Start HTTP server
	go func() {
		logger.Info("starting HTTP server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "err", err)
			cancel()
		}
	}()

	// OS signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
		logger.Info("context cancelled")
	}

	// Shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}

	logger.Info("stopping build pipeline")
	cancel()
	pipeline.Stop()

	logger.Info("disconnecting mongo")
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		logger.Error("mongo disconnect error", "err", err)
	}

	logger.Info("service stopped")
}

func loadConfig() *config.Config {
	cfg := &config.Config{
		Server: config.HTTPServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  5 * time.Minute,
			WriteTimeout: 30 * time.Minute,
		},
		GreenPT: config.GreenPTConfig{
			APIKey:     getEnv("GREENPT_API_KEY", ""),
			BaseURL:    getEnv("GREENPT_API_URL", "https://api.greenpt.ai/v1/chat/completions"),
			ModelsURL:  getEnv("GREENPT_MODELS_URL", "https://api.greenpt.ai/v1/models"),
			Model:      getEnv("GREENPT_MODEL", "greenpt-1"),
			MaxRetries: getEnvInt("GREENPT_MAX_RETRIES", 2),
		},
		Mongo: config.MongoConfig{
			URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGO_DB", "greenpt"),
		},
		Storage: config.StorageConfig{
			GeneratedRoot: getEnv("GENERATED_ROOT", "./generated_projects"),
			LogsRoot:      getEnv("PROJECT_LOGS_ROOT", "./project_logs"),
		},
	}

	if cfg.GreenPT.APIKey == "" {
		log.Fatal("GREENPT_API_KEY env variable is required")
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
