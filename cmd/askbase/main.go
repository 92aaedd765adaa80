package main

import (
	"context"
	"database/sql"
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

	"github.com/askbase/askbase/internal/ai"
	"github.com/askbase/askbase/internal/config"
	"github.com/askbase/askbase/internal/db"
	"github.com/askbase/askbase/internal/embedcache"
	"github.com/askbase/askbase/internal/filestore"
	"github.com/askbase/askbase/internal/handler"
	"github.com/askbase/askbase/internal/job"
	"github.com/askbase/askbase/internal/middleware"
	"github.com/askbase/askbase/internal/ratelimit"
	"github.com/askbase/askbase/internal/repo"
	"github.com/askbase/askbase/internal/schedule"
	"github.com/askbase/askbase/internal/service"
	"github.com/askbase/askbase/internal/vectorstore"
)

func main() {
	var configPath string
	var resetUser string

	rootCmd := &cobra.Command{
		Use:   "askbase",
		Short: "askbase retrieval QA server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run askbase server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "delete indexed vectors, optionally scoped to one user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return resetVectors(cfg, resetUser)
		},
	}
	resetCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	resetCmd.Flags().StringVar(&resetUser, "user", "", "only delete vectors of this user id")

	rootCmd.AddCommand(runCmd, resetCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
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
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
	return cfg, nil
}

func buildVectorStore(cfg *config.Config) (vectorstore.Store, error) {
	store, err := vectorstore.New(cfg.VectorStore.Type, cfg.VectorStore.Dimension, cfg.VectorStore.Data)
	if err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("init vector index: %w", err)
	}
	return store, nil
}

func buildAIManager(cfg *config.Config) (*ai.Manager, error) {
	generators := make([]ai.GeneratorEntry, 0, len(cfg.AI.Generate))
	for _, ref := range cfg.AI.Generate {
		provider, err := ai.NewProvider(ref.Provider, ref.Data)
		if err != nil {
			return nil, fmt.Errorf("init generate provider %s: %w", ref.Provider, err)
		}
		generators = append(generators, ai.GeneratorEntry{
			Name:      ref.Provider + "/" + ref.Model,
			Generator: ai.NewGenerator(provider, ref.Model),
		})
	}
	embedders := make([]ai.EmbedderEntry, 0, len(cfg.AI.Embed))
	for _, ref := range cfg.AI.Embed {
		provider, err := ai.NewEmbedProvider(ref.Provider, ref.Data)
		if err != nil {
			return nil, fmt.Errorf("init embed provider %s: %w", ref.Provider, err)
		}
		embedders = append(embedders, ai.EmbedderEntry{
			Name:     ref.Provider + "/" + ref.Model,
			Embedder: ai.NewEmbedder(provider, ref.Model),
		})
	}
	embedder := ai.NewGroupEmbedder(embedders)
	if cfg.AI.EmbedCacheSize > 0 {
		embedder = embedcache.WrapLruCacheToEmbedder(
			embedder,
			cfg.AI.EmbedCacheSize,
			time.Duration(cfg.AI.EmbedCacheTTLMins)*time.Minute,
		)
	}
	return ai.NewManager(ai.NewGroupGenerator(generators), embedder, ai.ManagerConfig{
		Timeout:       cfg.AI.Timeout,
		MaxInputChars: cfg.AI.MaxInputChars,
	}), nil
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("file_store", cfg.FileStore.Type),
	)

	store, err := buildVectorStore(cfg)
	if err != nil {
		return err
	}
	manager, err := buildAIManager(cfg)
	if err != nil {
		return err
	}
	files, err := filestore.New(cfg.FileStore.Type, cfg.FileStore.Data)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	userRepo := repo.NewUserRepo(conn)
	docRepo := repo.NewDocumentRepo(conn)
	convRepo := repo.NewConversationRepo(conn)
	msgRepo := repo.NewMessageRepo(conn)

	authService := service.NewAuthService(userRepo, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	ragService := service.NewRagService(store, manager, docRepo, convRepo, msgRepo, service.RagConfig{
		ChunkSize: cfg.Chunking.ChunkSize,
		Overlap:   cfg.Chunking.Overlap,
	})
	documentService := service.NewDocumentService(docRepo, store, files)
	conversationService := service.NewConversationService(convRepo, msgRepo)

	limiter := ratelimit.New(ratelimit.Config{
		Window:  time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		Actions: cfg.RateLimit.Actions,
	})

	deps := handler.RouterDeps{
		Auth:          handler.NewAuthHandler(authService),
		Train:         handler.NewTrainHandler(ragService, files),
		Ask:           handler.NewAskHandler(ragService),
		Documents:     handler.NewDocumentHandler(documentService),
		Conversations: handler.NewConversationHandler(conversationService),
		Health:        handler.NewHealthHandler(conn, store),
		Limiter:       limiter,
		JWTSecret:     []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewVectorPingJob(store), cfg.PingCron); err != nil {
		return fmt.Errorf("schedule ping job: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func resetVectors(cfg *config.Config, userID string) error {
	store, err := buildVectorStore(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := store.Delete(ctx, vectorstore.Filter{UserID: userID}); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	scope := "all users"
	if userID != "" {
		scope = "user " + userID
	}
	logutil.GetLogger(ctx).Info("vector index reset", zap.String("scope", scope))
	return nil
}
