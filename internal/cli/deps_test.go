package cli

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patrimonio/internal/cache"
	"patrimonio/internal/config"
	"patrimonio/internal/core"
	"patrimonio/internal/log"
)

func TestOpenResultCacheInProcess(t *testing.T) {
	cfg := &config.Config{CacheSize: 2, CacheTTL: time.Minute}
	rc := OpenResultCache(log.Discard(), cfg, cache.NewManager(log.Discard()))
	defer rc.Close()

	require.NotNil(t, rc.Cache)
	assert.Nil(t, rc.Ping)

	ctx := context.Background()
	rc.Cache.Set(ctx, "k", &core.ProjectionResult{Seed: 7})
	got, ok := rc.Cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, uint64(7), got.Seed)
}

func TestOpenResultCacheRedisIsLazy(t *testing.T) {
	cfg := &config.Config{RedisAddr: "127.0.0.1:1", CacheTTL: time.Minute}
	rc := OpenResultCache(log.Discard(), cfg, nil)
	require.NotNil(t, rc.Ping)
	assert.NoError(t, rc.Close())
}

func TestNewEngineUsesConfiguredPool(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelInfo, Format: "text", Output: &buf})

	engine := NewEngine(&config.Config{SimulationWorkers: 3}, logger)
	assert.Equal(t, 3, engine.Workers())
	assert.Contains(t, buf.String(), "workers=3")
}

func TestOpenExporterDisabled(t *testing.T) {
	assert.Nil(t, OpenExporter(context.Background(), log.Discard(), &config.Config{}))
}

func TestLimits(t *testing.T) {
	l := Limits(&config.Config{MaxSamples: 500, MaxHorizonYears: 40})
	assert.Equal(t, 500, l.MaxSamples)
	assert.Equal(t, 40, l.MaxHorizonYears)
}
