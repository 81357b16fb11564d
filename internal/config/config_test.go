package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unset(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadEnumeratesMissingKeys(t *testing.T) {
	unset(t, "BUS_ADDR")
	unset(t, "DATABASE_URL")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BUS_ADDR")
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BUS_ADDR", "localhost:6379")
	t.Setenv("DATABASE_URL", "postgres://localhost/mirror")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "doc-mirror", cfg.Topic)
	assert.Equal(t, "sql-writer", cfg.Subscription)
	assert.Equal(t, 3, cfg.PublishRetryCount)
	assert.Equal(t, 16, cfg.DrainBatchSize)
	assert.Equal(t, 45*time.Second, cfg.DrainMaxDuration)
	assert.Equal(t, 3, cfg.DrainMaxIdleRounds)
	assert.Equal(t, 2*time.Second, cfg.DrainWaitTime)
	assert.Equal(t, 30*time.Second, cfg.LockDuration)
}

func TestLoadProcedureOverrides(t *testing.T) {
	t.Setenv("BUS_ADDR", "localhost:6379")
	t.Setenv("DATABASE_URL", "postgres://localhost/mirror")
	t.Setenv("MIRROR_PROC_OVERRIDES", "dm.message.create:custom_upsert,follow.edge.delete:custom_del")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"dm.message.create":  "custom_upsert",
		"follow.edge.delete": "custom_del",
	}, cfg.ProcedureOverrides)
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv("BUS_ADDR", "localhost:6379")
	t.Setenv("DATABASE_URL", "postgres://localhost/mirror")
	t.Setenv("MIRROR_TOPIC", "mirror-staging")
	t.Setenv("DRAIN_MAX_DURATION", "90s")
	t.Setenv("PUBLISH_RETRY_COUNT", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mirror-staging", cfg.Topic)
	assert.Equal(t, 90*time.Second, cfg.DrainMaxDuration)
	assert.Equal(t, 5, cfg.PublishRetryCount)
}
