package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/shipping-service-go/internal/shipping"
)

const serviceName = "shipping-service-go"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(serviceName, cfg.LogLevel, os.Stdout)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Store ---
	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open repository", zap.Error(err))
	}
	defer closeRepo()

	// --- Queue ---
	pub, closePub, err := openPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open publisher", zap.Error(err))
	}
	defer closePub()

	svc := shipping.NewService(repo, pub, logger,
		shipping.WithBatchSize(cfg.BatchSize),
		shipping.WithPollWait(cfg.PollWait),
	)

	cat, err := catalog.New()
	if err != nil {
		logger.Fatal("catalog", zap.Error(err))
	}

	// --- Batch worker ---
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = shipping.NewWorker(svc, logger, cfg.BatchInterval).Run(ctx)
	}()

	// --- HTTP ---
	h := httpapi.NewHandler(cat, svc, logger)
	r := httpapi.NewRouter(h)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("http server failed", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	wg.Wait()

	logger.Info("shutdown complete")
}

func openRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (shipping.Repository, func(), error) {
	if cfg.StoreBackend == config.BackendMemory {
		logger.Warn("using in-memory shipment store; records are lost on restart")
		return shipping.NewMemoryRepository(), func() {}, nil
	}

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			return nil, nil, fmt.Errorf("db migrate: %w", err)
		}
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	return shipping.NewPostgresRepository(pool), pool.Close, nil
}

type closablePublisher interface {
	shipping.Publisher
	Close() error
}

func openPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (shipping.Publisher, func(), error) {
	switch cfg.QueueBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory shipping queue; messages are lost on restart")
		return events.NewMemoryPublisher(), func() {}, nil

	case config.BackendRedis:
		client, err := events.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		pub := events.NewRedisPublisher(client, cfg.ShippingQueueName, logger)
		moved, err := pub.Requeue(ctx)
		if err != nil {
			_ = pub.Close()
			return nil, nil, err
		}
		if moved > 0 {
			logger.Info("requeued unsettled shipping messages", zap.Int("count", moved))
		}
		return pub, closer(pub), nil

	default:
		conn, err := events.DialRabbit(cfg.RabbitMQURL)
		if err != nil {
			return nil, nil, err
		}
		pub, err := events.NewRabbitPublisher(conn, cfg.ShippingQueueName, logger)
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return pub, func() {
			_ = pub.Close()
			_ = conn.Close()
		}, nil
	}
}

func closer(p closablePublisher) func() {
	return func() { _ = p.Close() }
}
