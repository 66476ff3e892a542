package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ion-upload/internal/adapters/eventbroker/nats"
	"ion-upload/internal/adapters/repository/postgres"
	"ion-upload/internal/adapters/repository/redis"
	"ion-upload/internal/config"
	"ion-upload/internal/core/port"
	"ion-upload/internal/core/service/reconcile"
	"log/slog"
	"os"
	"os/signal"
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

	// Load config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if cfg.IsProd() {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if cfg.NATS.URL == "" {
		logger.Error("NATS_URL is required by the reconciler")
		os.Exit(1)
	}

	// Initialize session store
	store, closeStore, err := initSessionStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to init session store", "driver", cfg.Session.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()
	logger.Info("session store initialized", "driver", cfg.Session.Driver)

	publisher, err := nats.NewNATSPublisher(ctx, cfg.NATS, logger)
	if err != nil {
		logger.Error("failed to create NATS publisher", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("failed to close NATS publisher", "error", err)
		}
	}()

	reconcileService := reconcile.NewReconcileService(store, publisher, logger)

	// Initialize NATS consumer
	natsConsumer, err := nats.NewNATSConsumer(cfg.NATS, logger)
	if err != nil {
		logger.Error("failed to create NATS consumer", "error", err)
		os.Exit(1)
	}
	logger.Info("NATS consumer initialized")

	// Subscribe to NATS
	if err := natsConsumer.Subscribe(ctx, reconcileService); err != nil {
		logger.Error("failed to subscribe to NATS", "error", err)
		_ = natsConsumer.Close()
		os.Exit(1)
	}
	logger.Info("NATS subscription active", "stream", cfg.NATS.StreamName, "subject", cfg.NATS.Subject)

	// Wait for termination signal
	<-ctx.Done()
	logger.Info("gracefully shutting down reconciler")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := natsConsumer.Close(); err != nil {
			logger.Error("failed to close NATS consumer during shutdown", "error", err)
		}
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			logger.Info("shutdown timeout exceeded")
		}
	}

	logger.Info("reconciler shutdown complete")
}

// initSessionStore opens the shared session store. The memory store is
// process local and cannot be reconciled from here.
func initSessionStore(ctx context.Context, cfg *config.Config) (port.UploadSessionStore, func(), error) {
	switch cfg.Session.Driver {
	case config.SessionStoreRedis:
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return redis.NewSessionStore(client, cfg.Redis.KeyPrefix), func() { _ = client.Close() }, nil
	case config.SessionStorePostgres:
		db, err := initDB(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewSessionStore(db), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("session store %q is not shared across processes", cfg.Session.Driver)
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
