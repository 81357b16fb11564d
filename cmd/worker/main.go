// The worker drains the mirror subscription continuously, applying
// change events to the relational replica until it is told to stop.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"docmirror/internal/bus"
	"docmirror/internal/config"
	"docmirror/internal/mirror"
	"docmirror/internal/ops"
	"docmirror/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog := logger.New(cfg.AppMode)
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	client := bus.NewRedisClient(bus.Config{
		Addr:         cfg.BusAddr,
		Password:     cfg.BusPassword,
		DB:           cfg.BusDB,
		LockDuration: cfg.LockDuration,
	}, zlog)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = client.Ping(pingCtx)
	cancel()
	if err != nil {
		zlog.Fatal("bus unreachable", zap.String("addr", cfg.BusAddr), zap.Error(err))
	}
	if err := client.EnsureSubscription(ctx, cfg.Topic, cfg.Subscription); err != nil {
		zlog.Fatal("ensure subscription", zap.Error(err))
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("connect relational pool", zap.Error(err))
	}
	defer pool.Close()

	recv, err := client.NewReceiver(cfg.Topic, cfg.Subscription, cfg.ConsumerName)
	if err != nil {
		zlog.Fatal("open receiver", zap.Error(err))
	}

	processor := mirror.NewProcessor(pool, mirror.NewRoutes(cfg.ProcedureOverrides), zlog)
	drainer := mirror.NewDrainer(recv, client, processor, mirror.Options{
		BatchSize:     cfg.DrainBatchSize,
		MaxDuration:   cfg.DrainMaxDuration,
		MaxIdleRounds: cfg.DrainMaxIdleRounds,
		WaitTime:      cfg.DrainWaitTime,
	}, zlog)

	var mu sync.Mutex
	var totals mirror.Stats
	srv := &http.Server{
		Addr: cfg.OpsAddr,
		Handler: ops.Router(func() mirror.Stats {
			mu.Lock()
			defer mu.Unlock()
			return totals
		}),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Error("ops server", zap.Error(err))
		}
	}()

	zlog.Info("worker started",
		zap.String("topic", cfg.Topic),
		zap.String("subscription", cfg.Subscription),
		zap.String("consumer", cfg.ConsumerName))

	for ctx.Err() == nil {
		stats, err := drainer.Drain(ctx)
		mu.Lock()
		totals = totals.Add(stats)
		mu.Unlock()
		if err != nil && ctx.Err() == nil {
			zlog.Error("drain failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}

	zlog.Info("shutdown signal received, closing")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = srv.Shutdown(shutdownCtx)
	cancel()
	if err := drainer.Close(); err != nil {
		zlog.Warn("closing drainer", zap.Error(err))
	}
	zlog.Info("worker stopped",
		zap.Int("processed", totals.Processed),
		zap.Int("completed", totals.Completed),
		zap.Int("abandoned", totals.Abandoned),
		zap.Int("skipped", totals.Skipped))
}
