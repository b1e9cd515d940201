package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 0.3, cfg.Temperature)
	assert.Equal(t, 2000, cfg.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.ChatTimeout)
	assert.Equal(t, 30*time.Second, cfg.EmbedTimeout)
	assert.Equal(t, 10*time.Second, cfg.RetrievalTimeout)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 3, cfg.WorkerPoolSize)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("WORKER_POOL_SIZE", "4")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsTest())
	assert.Equal(t, 4, cfg.WorkerPoolSize)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
}

func TestRetryPolicy(t *testing.T) {
	cfg := Config{RetryMaxAttempts: 3, RetryBaseDelay: 2 * time.Second}
	n, base := cfg.RetryPolicy()
	assert.Equal(t, 3, n)
	assert.Equal(t, 2*time.Second, base)

	cfg.AppEnv = "test"
	_, base = cfg.RetryPolicy()
	assert.Equal(t, 10*time.Millisecond, base)

	cfg = Config{}
	n, base = cfg.RetryPolicy()
	assert.Equal(t, 3, n)
	assert.Equal(t, time.Second, base)
}
