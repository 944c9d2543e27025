package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"pdfchat/internal/ai"
	"pdfchat/internal/config"
	"pdfchat/internal/filestore"
	"pdfchat/internal/handler"
	"pdfchat/internal/job"
	"pdfchat/internal/memory"
	"pdfchat/internal/middleware"
	"pdfchat/internal/queue"
	"pdfchat/internal/schedule"
	"pdfchat/internal/service"
	"pdfchat/internal/vectorstore"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "pdfchat",
		Short: "retrieval-augmented document chat backend",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the api server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "run the ingestion worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runWorker(cfg)
		},
	}

	rootCmd.AddCommand(serveCmd, workerCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func buildEmbedder(cfg *config.Config) (ai.IProvider, ai.IEmbedder, error) {
	providerArgs := cfg.AI.Data
	if providerArgs == nil {
		providerArgs = cfg.AI
	}
	provider, err := ai.NewProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		return nil, nil, fmt.Errorf("init ai provider: %w", err)
	}
	embedder := ai.NewEmbedder(provider, cfg.AI.EmbedModel)
	embedder = ai.WrapLRUEmbedder(embedder, cfg.AI.EmbedCacheSize,
		time.Duration(cfg.AI.EmbedCacheTTLHours)*time.Hour)
	return provider, embedder, nil
}

// memoryArgs falls back to the queue redis when the memory section carries
// no connection of its own; a small deployment runs both on one instance.
func memoryArgs(cfg *config.Config) interface{} {
	if cfg.Memory.Data != nil || cfg.Memory.Type != "redis" {
		return cfg.Memory.Data
	}
	return map[string]interface{}{
		"addr":     cfg.Queue.RedisAddr,
		"password": cfg.Queue.RedisPassword,
		"db":       cfg.Queue.RedisDB,
	}
}

func runServer(cfg *config.Config) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("vector_store", cfg.VectorStore.Type),
	)

	files, err := filestore.New(cfg.FileStore.Type, cfg.FileStore.Data)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	index, err := vectorstore.New(cfg.VectorStore.Type, cfg.VectorStore.Data)
	if err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}
	history, err := memory.New(cfg.Memory.Type, memoryArgs(cfg))
	if err != nil {
		return fmt.Errorf("init conversation memory: %w", err)
	}
	provider, embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	generator := ai.NewGenerator(provider, cfg.AI.Model)

	q := queue.NewAsynq(cfg.Queue)
	defer q.Close()

	queryService := service.NewQueryService(history, index, embedder, generator)
	catalogService := service.NewCatalogService(index, files)

	deps := handler.RouterDeps{
		Upload:    handler.NewUploadHandler(files, q),
		Status:    handler.NewStatusHandler(q),
		Query:     handler.NewQueryHandler(queryService),
		Documents: handler.NewDocumentHandler(catalogService),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllow),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening",
		zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func runWorker(cfg *config.Config) error {
	logutil.GetLogger(context.Background()).Info(
		"starting worker",
		zap.Int("concurrency", cfg.Queue.Concurrency),
		zap.String("vector_store", cfg.VectorStore.Type),
	)

	files, err := filestore.New(cfg.FileStore.Type, cfg.FileStore.Data)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	index, err := vectorstore.New(cfg.VectorStore.Type, cfg.VectorStore.Data)
	if err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}
	_, embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}

	ingestService := service.NewIngestService(files, index, embedder)
	worker := queue.NewWorker(cfg.Queue, ingestService.Run)

	q := queue.NewAsynq(cfg.Queue)
	defer q.Close()

	scheduler := schedule.New()
	if cleaner, ok := q.(queue.Cleaner); ok {
		maxAge := time.Duration(cfg.Queue.RetentionHours) * time.Hour
		if err := scheduler.AddJob(job.NewQueueCleanupJob(cleaner, maxAge), cfg.CleanSpec); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- worker.Run()
	}()

	select {
	case <-ctx.Done():
		logutil.GetLogger(context.Background()).Info("worker stopping...")
		worker.Shutdown()
		return <-errCh
	case err := <-errCh:
		return err
	}
}
