// Package config resolves the pipeline configuration from environment
// variables, validating required keys at startup.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every knob the pipeline reads. The routing table and bus
// topology are loaded once here and treated as read-only for the
// process lifetime.
type Config struct {
	AppMode string `env:"APP_MODE" envDefault:"development"`

	BusAddr     string `env:"BUS_ADDR,required"`
	BusPassword string `env:"BUS_PASSWORD"`
	BusDB       int    `env:"BUS_DB" envDefault:"0"`

	DatabaseURL string `env:"DATABASE_URL,required"`

	Topic        string        `env:"MIRROR_TOPIC" envDefault:"doc-mirror"`
	Subscription string        `env:"MIRROR_SUBSCRIPTION" envDefault:"sql-writer"`
	ConsumerName string        `env:"CONSUMER_NAME" envDefault:"sql-writer-1"`
	LockDuration time.Duration `env:"MESSAGE_LOCK_DURATION" envDefault:"30s"`

	// Per-event-type procedure name overrides, e.g.
	// "dm.message.create:custom_upsert,follow.edge.delete:custom_del".
	ProcedureOverrides map[string]string `env:"MIRROR_PROC_OVERRIDES"`

	PublishRetryCount int `env:"PUBLISH_RETRY_COUNT" envDefault:"3"`

	// Consumed by external monitoring, parsed here so a bad value still
	// fails fast at startup.
	DeadLetterAlertThreshold int `env:"DEADLETTER_ALERT_THRESHOLD" envDefault:"10"`

	DrainBatchSize     int           `env:"DRAIN_BATCH_SIZE" envDefault:"16"`
	DrainMaxDuration   time.Duration `env:"DRAIN_MAX_DURATION" envDefault:"45s"`
	DrainMaxIdleRounds int           `env:"DRAIN_MAX_IDLE_ROUNDS" envDefault:"3"`
	DrainWaitTime      time.Duration `env:"DRAIN_WAIT_TIME" envDefault:"2s"`

	OpsAddr string `env:"OPS_ADDR" envDefault:":8080"`
}

// Load parses the environment into a Config. When required keys are
// absent the error enumerates all of them at once, so a broken
// deployment surfaces the full list on the first crash.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		if missing := missingKeys(err); len(missing) > 0 {
			return nil, fmt.Errorf("missing required environment keys: %s", strings.Join(missing, ", "))
		}
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

func missingKeys(err error) []string {
	var agg env.AggregateError
	if !errors.As(err, &agg) {
		return nil
	}
	var missing []string
	for _, e := range agg.Errors {
		var notSet env.VarIsNotSetError
		if errors.As(e, &notSet) {
			missing = append(missing, notSet.Key)
		}
	}
	return missing
}
