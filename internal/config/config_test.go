package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
assets:
  d2o_dir: /srv/common
  render_ttl: 30s
server:
  rest_port: 9000
cache:
  enabled: true
  redis_url: localhost:6379
  default_ttl: 1m
invalidation:
  enabled: true
  nats_url: nats://localhost:4222
  subject: assets.invalidation
storage:
  in_memory: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/common", cfg.Assets.D2ODir)
	assert.Equal(t, "data/maps", cfg.Assets.MapsDir, "значение по умолчанию сохраняется")
	assert.Equal(t, 256, cfg.Assets.MapCacheSize)
	assert.Equal(t, 30*time.Second, cfg.Assets.RenderTTL)
	assert.Equal(t, 9000, cfg.Server.GetRESTPort())

	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisURL)
	assert.Equal(t, time.Minute, cfg.Cache.DefaultTTL)

	assert.True(t, cfg.Invalidation.Enabled)
	assert.Equal(t, "assets.invalidation", cfg.Invalidation.Subject)

	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, "mmo-assets", cfg.Telemetry.ServiceName)
}

func TestLoadWithoutPath(t *testing.T) {
	t.Setenv("ASSETS_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, "assets:\n  maps_dir: /srv/maps\n")
	t.Setenv("ASSETS_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/maps", cfg.Assets.MapsDir)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "assets: [1, 2"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "assets:\n  map_cache_size: -1\n"))
	assert.Error(t, err)
}

func TestPortFallback(t *testing.T) {
	var s ServerConfig
	t.Setenv("ASSETS_REST_PORT", "")
	t.Setenv("ASSETS_METRICS_PORT", "")
	assert.Equal(t, 8090, s.GetRESTPort())
	assert.Equal(t, 2113, s.GetMetricsPort())

	t.Setenv("ASSETS_REST_PORT", "7000")
	assert.Equal(t, 7000, s.GetRESTPort())

	t.Setenv("ASSETS_METRICS_PORT", "not-a-port")
	assert.Equal(t, 2113, s.GetMetricsPort())

	s.RESTPort = 1234
	assert.Equal(t, 1234, s.GetRESTPort())
}
