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

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"doccloud/config"
	"doccloud/config/database"
	"doccloud/internal/blob/backend"
	"doccloud/internal/document/repository"
	"doccloud/internal/document/service"
	"doccloud/internal/metrics"
	"doccloud/pkg/logger"
	"doccloud/router"
	"doccloud/socket"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables from OS")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	blobs, err := backend.New(ctx, cfg.Blob, logger.Log)
	if err != nil {
		return err
	}

	m := metrics.New()
	hub := socket.NewHub(nil)
	svc, err := service.NewDocumentService(ctx, blobs, repo,
		service.WithUploadTimeout(cfg.Blob.UploadTimeout),
		service.WithLogger(logger.Log.Named("store")),
		service.WithNotifier(hub),
		service.WithMetrics(m),
	)
	if err != nil {
		return err
	}
	hub.SetHistory(svc)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router.Setup(svc, hub, m, cfg.CORSOrigins, logger.Log.Named("http")),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		logger.Sugar.Infof("DocCloud listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Sugar.Info("Shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			logger.Sugar.Errorf("HTTP shutdown: %v", err)
		}
		return svc.Close(sctx)
	})
	return g.Wait()
}

func openRepository(ctx context.Context, cfg *config.Config) (repository.SnapshotRepository, func(), error) {
	switch cfg.SnapshotBackend {
	case config.SnapshotPostgres:
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewDocumentRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, func() { db.Close() }, nil
	default:
		return repository.NewFileSnapshotRepository(cfg.SnapshotPath), func() {}, nil
	}
}
