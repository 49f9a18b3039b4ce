package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recruitpipe/internal/adapters/apify"
	httpadapter "recruitpipe/internal/adapters/http"
	"recruitpipe/internal/adapters/memory"
	pg "recruitpipe/internal/adapters/postgres"
	"recruitpipe/internal/adapters/vertexai"
	"recruitpipe/internal/config"
	"recruitpipe/internal/ports"
	"recruitpipe/internal/services/candidates"
	"recruitpipe/internal/workers/enrichrunner"
)

type storage interface {
	ports.CandidateRepository
	ports.JobRepository
}

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, cfgErr := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	if cfgErr != nil {
		logger.Warn("config", "error", cfgErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []candidates.Option{candidates.WithJobs(store), candidates.WithLogger(logger)}
	if cfg.ApifyToken != "" {
		client, err := apify.New(cfg.ApifyToken, cfg.ApifyActorID,
			apify.WithBaseURL(cfg.ApifyBaseURL),
			apify.WithHTTPClient(&http.Client{Timeout: cfg.ApifyTimeout}),
			apify.WithLogger(logger))
		if err != nil {
			return err
		}
		opts = append(opts, candidates.WithEnricher(client))
		logger.Info("profile enrichment enabled", "actor", cfg.ApifyActorID)
	}
	if cfg.GoogleCloudProject != "" {
		analyst, err := vertexai.New(ctx, cfg.GoogleCloudProject, cfg.GoogleCloudLocation, cfg.LLMModel)
		if err != nil {
			logger.Warn("candidate analysis disabled", "error", err)
		} else {
			defer analyst.Close() //nolint:errcheck // shutdown
			opts = append(opts, candidates.WithAnalyst(analyst))
			logger.Info("candidate analysis enabled", "model", cfg.LLMModel)
		}
	}
	svc := candidates.New(store, opts...)
	processor := enrichrunner.PipelineProcessor{Candidates: svc}

	workersDone := enrichrunner.Run(ctx, store, processor, cfg.EnrichWorkers, cfg.EnrichPollInterval, logger)
	if cfg.EnrichWorkers > 0 {
		logger.Info("enrichment workers started", "workers", cfg.EnrichWorkers)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpadapter.New(svc, store, processor, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("listening", "addr", cfg.ListenAddr, "env", cfg.Env)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			stop()
			<-workersDone
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		logger.Warn("workers did not stop before the shutdown deadline")
	}
	return nil
}

// openStorage connects to Postgres, or falls back to the in-memory store in
// development when no database is configured.
func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, func(), error) {
	if cfg.DatabaseURL == "" {
		if !cfg.Development() {
			return nil, nil, errors.New("DATABASE_URL is required outside development")
		}
		logger.Warn("using in-memory storage; data is lost on restart")
		return memory.New(), func() {}, nil
	}

	db, err := pg.Connect(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns))
	if err != nil {
		return nil, nil, err
	}
	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return db, db.Close, nil
}
