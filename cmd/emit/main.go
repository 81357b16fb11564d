// emit builds a change event from before/after JSON fixture files and
// publishes it onto the mirror topic. Development tool for seeding the
// bus without a document-store trigger.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"docmirror/internal/bus"
	"docmirror/internal/config"
	"docmirror/internal/document"
	"docmirror/internal/event"
	"docmirror/internal/publish"
	"docmirror/pkg/logger"
)

func main() {
	var (
		domain     = flag.String("domain", "message", "entity domain: message, conversation, edge")
		beforePath = flag.String("before", "", "path to before-snapshot JSON, empty for none")
		afterPath  = flag.String("after", "", "path to after-snapshot JSON, empty for none")
		resource   = flag.String("resource", "", "document resource path, e.g. conversations/c1/messages/m1")
		params     = flag.String("params", "", "comma-separated path params, e.g. conversationId=c1,messageId=m1")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog := logger.New(cfg.AppMode)
	defer func() { _ = zlog.Sync() }()

	before, err := loadSnapshot(*beforePath)
	if err != nil {
		zlog.Fatal("load before snapshot", zap.Error(err))
	}
	after, err := loadSnapshot(*afterPath)
	if err != nil {
		zlog.Fatal("load after snapshot", zap.Error(err))
	}

	tc := document.TriggerContext{
		TriggerID: uuid.NewString(),
		Resource:  *resource,
		Params:    parseParams(*params),
	}

	builder := event.NewBuilder(zlog)
	var ev *event.Envelope
	switch *domain {
	case "message":
		ev = builder.Message(before, after, tc)
	case "conversation":
		ev = builder.Conversation(before, after, tc)
	case "edge":
		ev = builder.FollowEdge(before, after, tc)
	default:
		zlog.Fatal("unknown domain", zap.String("domain", *domain))
	}
	if ev == nil {
		zlog.Info("no event built (unknown pair or no-op update)")
		return
	}

	client := bus.NewRedisClient(bus.Config{
		Addr:         cfg.BusAddr,
		Password:     cfg.BusPassword,
		DB:           cfg.BusDB,
		LockDuration: cfg.LockDuration,
	}, zlog)
	publisher := publish.New(client, cfg.PublishRetryCount, zlog)

	if err := publisher.Publish(context.Background(), cfg.Topic, ev); err != nil {
		zlog.Fatal("publish", zap.String("event_id", ev.ID), zap.Error(err))
	}
	if err := publisher.Shutdown(); err != nil {
		zlog.Warn("shutdown", zap.Error(err))
	}
	zlog.Info("published",
		zap.String("event_id", ev.ID),
		zap.String("event_type", ev.Type),
		zap.String("topic", cfg.Topic))
}

func loadSnapshot(path string) (document.Snapshot, error) {
	if path == "" {
		return document.Missing(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return document.Snapshot{}, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return document.Snapshot{}, err
	}
	return document.Existing(data), nil
}

func parseParams(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		if k, v, ok := strings.Cut(pair, "="); ok {
			out[k] = v
		}
	}
	return out
}
