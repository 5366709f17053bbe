package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/soochol/datafiles/internal/api"
	"github.com/soochol/datafiles/internal/config"
	"github.com/soochol/datafiles/internal/datafile"
	"github.com/soochol/datafiles/internal/db"
	"github.com/soochol/datafiles/internal/repository"
	"github.com/soochol/datafiles/internal/services"
	"github.com/soochol/datafiles/internal/storage"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "serve" {
		if err := serve(); err != nil {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
		return
	}
	fmt.Println("datafiles v0.1.0")
	fmt.Println("Usage: datafiles serve")
}

func serve() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.LoadDefault()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(newLogger(cfg.Log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Record store: PostgreSQL when configured, in-memory otherwise.
	var repo repository.DataFileRepository = repository.NewMemoryDataFileRepository()
	var healthCheck func(context.Context) error
	if cfg.Database.URL != "" {
		database, err := db.New(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		repo = repository.NewPersistentDataFileRepository(database)
		healthCheck = database.Pool.PingContext
		slog.Info("record store: postgres")
	} else {
		slog.Info("record store: in-memory (no database.url configured)")
	}

	store, err := newContentStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("content store: %w", err)
	}

	svc := services.NewDataFileService(repo, store, datafile.ExtensionClassifier(cfg.Content.DelimitedExtensions...))
	sweeper := services.NewSweeper(repo, store)
	if err := sweeper.Start(ctx, cfg.Sweeper.Schedule); err != nil {
		return err
	}
	defer sweeper.Stop()

	srv := api.NewServer(svc)
	srv.SetMaxUploadBytes(cfg.Server.MaxUploadBytes)
	srv.SetHealthCheck(healthCheck)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting datafiles server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newContentStore(ctx context.Context, cfg config.StorageConfig) (storage.ContentStore, error) {
	var store storage.ContentStore
	switch strings.ToLower(cfg.Type) {
	case "s3":
		s3Store, err := storage.NewS3Store(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		slog.Info("content store: s3", "bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix)
		store = s3Store
	default:
		local, err := storage.NewLocalStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		slog.Info("content store: local", "dir", cfg.Dir)
		store = local
	}
	if cfg.Compress {
		slog.Info("content store: zstd compression enabled")
		store = storage.NewCompressed(store)
	}
	return store, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
