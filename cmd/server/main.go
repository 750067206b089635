package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coffee-order/api/internal/config"
	"github.com/coffee-order/api/internal/database"
	"github.com/coffee-order/api/internal/enum"
	"github.com/coffee-order/api/internal/events"
	"github.com/coffee-order/api/internal/handler"
	"github.com/coffee-order/api/internal/idempotency"
	"github.com/coffee-order/api/internal/logger"
	"github.com/coffee-order/api/internal/router"
	"github.com/coffee-order/api/internal/service"
	"github.com/coffee-order/api/internal/ws"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	if cfg.RunMigrations {
		if err := database.Migrate(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return err
		}
		log.Info("migrations applied", "path", cfg.MigrationsPath)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL, database.PoolConfig{
		MaxConns:          cfg.DBMaxConns,
		MinConns:          2,
		HealthCheckPeriod: 30 * time.Second,
		ConnectTimeout:    5 * time.Second,
	})
	if err != nil {
		return err
	}
	defer pool.Close()
	queries := database.New(pool)

	// Idempotency keys (optional)
	var idem handler.IdempotencyStore
	if cfg.RedisAddr != "" {
		rdb, err := idempotency.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		idem = idempotency.NewStore(rdb, cfg.IdempotencyTTL)
		log.Info("idempotency keys enabled", "redis", cfg.RedisAddr)
	}

	// Events: WebSocket board plus the configured broker
	hub := ws.NewHub()
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	broker, err := newBroker(cfg)
	if err != nil {
		return err
	}
	if broker != nil {
		defer broker.Close()
	}
	publisher := events.Multi{hub}
	if broker != nil {
		publisher = append(publisher, broker)
	}

	orderService := service.NewOrderService(pool,
		func(db database.DBTX) service.OrderStore { return database.New(db) },
		service.WithLockTimeout(cfg.LockTimeout),
		service.WithPublisher(publisher),
		service.WithLogger(log),
	)

	r := router.New(cfg, router.Deps{
		Queries:     queries,
		Pool:        pool,
		Orders:      orderService,
		Idempotency: idem,
		WebSocket:   ws.Handler(hub, cfg.AllowedOrigins),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http listening", "addr", srv.Addr, "broker", cfg.EventBroker)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := orderService.Close(shutdownCtx); err != nil {
		log.Warn("flush events", "err", err)
	}
	stopHub()
	return nil
}

// broker is an event sink that holds a connection.
type broker interface {
	events.Publisher
	io.Closer
}

func newBroker(cfg *config.Config) (broker, error) {
	switch cfg.EventBroker {
	case enum.BrokerKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case enum.BrokerRabbitMQ:
		p, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, nil
}
