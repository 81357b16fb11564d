// drain runs a single time-boxed drain tick, prints the resulting
// counters as JSON, and exits. Meant for scheduled invocations.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"docmirror/internal/bus"
	"docmirror/internal/config"
	"docmirror/internal/mirror"
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

	ctx := context.Background()

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

	stats, drainErr := drainer.Drain(ctx)
	if err := drainer.Close(); err != nil {
		zlog.Warn("closing drainer", zap.Error(err))
	}

	out, _ := json.Marshal(stats)
	fmt.Println(string(out))

	if drainErr != nil {
		zlog.Error("drain failed", zap.Error(drainErr))
		os.Exit(1)
	}
}
