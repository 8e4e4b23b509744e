package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/annel0/mmo-assets/internal/cache"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервиса ассетов.
type Config struct {
	Assets       AssetsConfig       `yaml:"assets"`
	Server       ServerConfig       `yaml:"server"`
	Cache        CacheSection       `yaml:"cache"`
	Invalidation InvalidationConfig `yaml:"invalidation"`
	Storage      StorageConfig      `yaml:"storage"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
}

type AssetsConfig struct {
	D2ODir       string        `yaml:"d2o_dir"`
	MapsDir      string        `yaml:"maps_dir"`
	MapCacheSize int           `yaml:"map_cache_size"`
	RenderTTL    time.Duration `yaml:"render_ttl"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

// CacheSection - настройки Redis кеша отрендеренных ответов.
// При Enabled == false используется кеш в памяти процесса.
type CacheSection struct {
	Enabled           bool `yaml:"enabled"`
	cache.CacheConfig `yaml:",inline"`
}

type InvalidationConfig struct {
	Enabled                 bool `yaml:"enabled"`
	cache.InvalidatorConfig `yaml:",inline"`
}

type StorageConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "ASSETS_REST_PORT", 8090)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "ASSETS_METRICS_PORT", 2113)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Assets: AssetsConfig{
			D2ODir:       "data/common",
			MapsDir:      "data/maps",
			MapCacheSize: 256,
			RenderTTL:    5 * time.Minute,
		},
		Storage: StorageConfig{
			Path: "data/archive",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "mmo-assets",
		},
	}
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", берёт путь из ENV ASSETS_CONFIG; без него возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("ASSETS_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Assets.MapCacheSize <= 0 {
		return nil, fmt.Errorf("assets.map_cache_size must be positive, got %d", cfg.Assets.MapCacheSize)
	}

	return cfg, nil
}
