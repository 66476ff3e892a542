package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ion-upload/internal/adapters/eventbroker/nats"
	"ion-upload/internal/adapters/handlers/http/chi"
	"ion-upload/internal/adapters/handlers/http/chi/v1/upload"
	"ion-upload/internal/adapters/repository/memory"
	"ion-upload/internal/adapters/repository/postgres"
	"ion-upload/internal/adapters/repository/redis"
	"ion-upload/internal/adapters/signer/sigv4"
	"ion-upload/internal/adapters/storage/minio"
	"ion-upload/internal/adapters/storage/retry"
	"ion-upload/internal/adapters/storage/s3"
	"ion-upload/internal/adapters/storage/s3rest"
	"ion-upload/internal/config"
	"ion-upload/internal/core/port"
	"ion-upload/internal/core/service/cleanup"
	"ion-upload/internal/core/service/multipart"
	"ion-upload/internal/obs/metrics"
	"ion-upload/internal/obs/tracing"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

func main() {

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	shutdownTracing, err := tracing.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}

	//signer and storage
	signer, err := sigv4.NewSigner(cfg.Storage)
	if err != nil {
		logger.Error("failed to init signer", "error", err)
		os.Exit(1)
	}
	storage, err := initStorage(ctx, cfg, signer, logger)
	if err != nil {
		logger.Error("failed to init storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	logger.Info("storage initialized", "driver", cfg.Storage.Driver, "bucket", cfg.Storage.Bucket)

	//session store
	store, closeStore, err := initSessionStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to init session store", "driver", cfg.Session.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()
	logger.Info("session store initialized", "driver", cfg.Session.Driver)

	//metrics
	m := metrics.New()
	uploadMetrics := metrics.NewUploadMetrics(m.Registry())

	//events
	var publisher port.EventPublisher
	if cfg.NATS.URL != "" {
		natsPublisher, err := nats.NewNATSPublisher(ctx, cfg.NATS, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := natsPublisher.Close(); err != nil {
				logger.Error("failed to close NATS publisher", "error", err)
			}
		}()
		publisher = natsPublisher
		logger.Info("NATS publisher initialized", "subject", cfg.NATS.EventsSubject)
	}

	multipartService := multipart.NewMultipartService(store, storage, signer, cfg.Upload, logger,
		multipart.WithEventPublisher(publisher),
		multipart.WithObserver(uploadMetrics),
	)
	cleanupService := cleanup.NewCleanupService(store, storage, publisher, logger)

	//http
	uploadHandler := upload.NewUploadHandlerV1(multipartService, logger)

	router := chi.NewRouter(logger, uploadHandler, m, cfg.Env.Env)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		servErr := server.ListenAndServe()
		if servErr != nil && !errors.Is(servErr, http.ErrServerClosed) {
			logger.Error("failed to start server", "error", servErr)
			stop()
		}
	}()

	// expiry sweep
	wg.Add(1)
	go func() {
		defer wg.Done()
		cleanup.RunSweeper(ctx, cleanupService, cfg.Upload.SweepEvery, logger)
	}()

	//wait for context cancel
	<-ctx.Done()
	logger.Info("gracefully shutting down app")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	} else {
		logger.Info("server gracefully shutdown complete")
	}

	wg.Wait()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("failed to flush traces", "error", err)
	}
	logger.Info("app shutdown complete")

}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// initStorage builds the configured provider adapter behind the retry decorator
func initStorage(ctx context.Context, cfg *config.Config, signer *sigv4.Signer, logger *slog.Logger) (port.MultipartStorage, error) {
	var next port.MultipartStorage
	switch cfg.Storage.Driver {
	case config.StorageDriverMinio:
		adapter, err := minio.NewAdapter(ctx, cfg.Storage, logger)
		if err != nil {
			return nil, err
		}
		next = adapter
	case config.StorageDriverS3:
		adapter, err := s3.NewAdapter(ctx, cfg.Storage, logger)
		if err != nil {
			return nil, err
		}
		next = adapter
	case config.StorageDriverS3REST:
		next = s3rest.NewAdapter(signer, &http.Client{Timeout: 30 * time.Second}, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	return retry.NewStorage(next, cfg.Retry, logger), nil
}

func initSessionStore(ctx context.Context, cfg *config.Config) (port.UploadSessionStore, func(), error) {
	switch cfg.Session.Driver {
	case config.SessionStoreMemory:
		return memory.NewSessionStore(), func() {}, nil
	case config.SessionStoreRedis:
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return redis.NewSessionStore(client, cfg.Redis.KeyPrefix), func() { _ = client.Close() }, nil
	default:
		db, err := initDB(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewSessionStore(db), func() { _ = db.Close() }, nil
	}
}

func initDB(cfg config.DatabaseConfig) (*sql.DB, error) {

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenCons)
	db.SetMaxIdleConns(cfg.MaxIdleCons)
	db.SetConnMaxLifetime(cfg.ConMaxLifeTime)

	return db, nil
}
