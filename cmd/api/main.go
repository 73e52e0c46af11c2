package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leyan/cinevec/internal/api"
	"github.com/leyan/cinevec/internal/config"
	"github.com/leyan/cinevec/internal/logger"
	"github.com/leyan/cinevec/internal/repository"
	"github.com/leyan/cinevec/internal/service"
	"github.com/leyan/cinevec/internal/vectorindex"
)

func main() {
	appLogger := logger.NewFromEnv()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Embedding.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Invalid embedding config")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	movieRepo := repository.NewMovieRepository(db)

	embeddingService := service.NewEmbeddingService(&service.EmbeddingConfig{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})

	indexStore := vectorindex.NewStore(vectorindex.StoreOptions{
		CachePath: cfg.Index.CachePath,
		BatchSize: cfg.Index.EmbedBatchSize,
	})

	searchService := service.NewSearchService(
		movieRepo,
		indexStore,
		embeddingService,
		appLogger,
		service.SearchConfig{
			DefaultTopK:      cfg.Search.DefaultTopK,
			MaxTopK:          cfg.Search.MaxTopK,
			FilterOversample: cfg.Search.FilterOversample,
			ScoreThreshold:   cfg.Search.ScoreThreshold,
			MinSummaryRunes:  cfg.Index.MinSummaryRunes,
		},
	)

	// Warm the index in the background so the first query does not pay the
	// full build cost. Failures are logged, not fatal: the index builds
	// implicitly on the first query instead.
	if cfg.Index.PreloadOnStartup {
		go func() {
			ctx := logger.SetComponent(context.Background(), "preload")
			if _, err := searchService.Rebuild(ctx, false); err != nil {
				logger.CtxWarn(ctx, "Index preload failed: %v", err)
			}
		}()
	}

	router := api.SetupRouter(searchService, api.RouterConfig{
		Mode:            cfg.Server.Mode,
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
