package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tableorder/api/internal/config"
	"github.com/tableorder/api/internal/database"
	"github.com/tableorder/api/internal/events"
	"github.com/tableorder/api/internal/router"
	"github.com/tableorder/api/internal/worker"
	"github.com/tableorder/api/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := database.Migrate(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	queries := database.New(pool)

	hub := ws.NewHub()
	go hub.Run(ctx)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		relay := ws.NewRedisRelay(rdb, hub, ws.DefaultRelayChannel)
		hub.SetRelay(relay)
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Printf("ERROR: redis relay: %v", err)
			}
		}()
		log.Println("Realtime relay: redis pub/sub enabled")
	}

	var sink events.Sink
	if len(cfg.KafkaBrokers) > 0 {
		ks := events.NewKafkaSink(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		defer ks.Close()
		sink = ks
		log.Printf("Event stream: kafka topic %q", cfg.KafkaTopic)
	}

	dispatcher := events.NewDispatcher(hub, sink)
	services := router.NewServices(pool, queries, dispatcher)

	sweeper := &worker.Sweeper{
		Expirer:  services.BillRequests,
		TTL:      cfg.BillRequestTTL,
		Interval: cfg.SweepInterval,
	}
	go sweeper.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, queries, hub, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
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

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
