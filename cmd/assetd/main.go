package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/mmo-assets/internal/api"
	"github.com/annel0/mmo-assets/internal/assets"
	"github.com/annel0/mmo-assets/internal/cache"
	"github.com/annel0/mmo-assets/internal/config"
	"github.com/annel0/mmo-assets/internal/logging"
	"github.com/annel0/mmo-assets/internal/observability"
	"github.com/annel0/mmo-assets/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию ENV ASSETS_CONFIG)")
	flag.Parse()

	if err := logging.InitDefaultLogger("assetd"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("❌ Ошибка загрузки конфигурации: %v", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logging.Error("❌ %v", err)
		os.Exit(1)
	}
	logging.Info("👋 Сервис ассетов остановлен")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info("🗂️  Запуск сервиса ассетов: d2o=%s, maps=%s", cfg.Assets.D2ODir, cfg.Assets.MapsDir)

	// === ТРАССИРОВКА ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logging.Warn("Ошибка остановки OpenTelemetry: %v", err)
			}
		}()
	}

	// === АРХИВ КАРТ ===
	var (
		archive *storage.MapArchive
		err     error
	)
	if cfg.Storage.InMemory {
		archive, err = storage.NewMemoryMapArchive()
	} else {
		archive, err = storage.NewMapArchive(cfg.Storage.Path)
	}
	if err != nil {
		return fmt.Errorf("open map archive: %w", err)
	}
	defer archive.Close()

	// === ИНВАЛИДАЦИЯ ===
	var invalidator *cache.NATSInvalidator
	if cfg.Invalidation.Enabled {
		invalidator, err = cache.NewNATSInvalidator(&cfg.Invalidation.InvalidatorConfig, "")
		if err != nil {
			return err
		}
		defer invalidator.Close()
	}

	// === КЕШ ОТВЕТОВ ===
	renderCache, err := newRenderCache(cfg, invalidator)
	if err != nil {
		return err
	}
	defer renderCache.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := assets.NewService(assets.Options{
		Config:  cfg.Assets,
		FS:      afero.NewOsFs(),
		Archive: archive,
		Cache:   renderCache,
		Metrics: observability.NewCodecMetrics(registry),
	})
	if err != nil {
		return err
	}

	if invalidator != nil {
		if err := invalidator.SubscribeInvalidations(ctx, svc.HandleInvalidation); err != nil {
			return err
		}
	}

	if _, err := svc.LoadModules(ctx); err != nil {
		// Повреждённые модули не мешают обслуживать остальные
		logging.Warn("⚠️ Часть модулей не загружена: %v", err)
	}
	if report, err := svc.ImportMaps(ctx); err != nil {
		logging.Warn("⚠️ Импорт карт прерван: %v", err)
	} else {
		logging.Info("Карты в архиве: %d новых, %d без изменений", report.Imported, report.Unchanged)
	}

	// === HTTP ===
	gin.SetMode(gin.ReleaseMode)
	restPort := cfg.Server.GetRESTPort()
	rest := api.NewRestServer(api.Config{
		Port:     fmt.Sprintf(":%d", restPort),
		Service:  svc,
		Registry: registry,
		Name:     "assets_api",
	})

	metricsPort := cfg.Server.GetMetricsPort()
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", metricsPort),
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() { errCh <- rest.Start() }()
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	logging.Info("✅ Сервис ассетов запущен")
	logging.Info("   🌐 REST API: http://localhost:%d/api/modules", restPort)
	logging.Info("   📈 Метрики: http://localhost:%d/metrics", metricsPort)

	select {
	case <-ctx.Done():
		logging.Info("📡 Получен сигнал завершения, остановка...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rest.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки сервера метрик: %v", err)
	}
	return nil
}

// newRenderCache выбирает Redis при cache.enabled, иначе кеш в памяти процесса
func newRenderCache(cfg *config.Config, invalidator *cache.NATSInvalidator) (cache.CacheRepo, error) {
	var inv cache.CacheInvalidator
	if invalidator != nil {
		inv = invalidator
	}
	if cfg.Cache.Enabled {
		return cache.NewRedisCache(&cfg.Cache.CacheConfig, inv)
	}
	cacheCfg := cfg.Cache.CacheConfig
	if cacheCfg.DefaultTTL == 0 {
		cacheCfg.DefaultTTL = cfg.Assets.RenderTTL
	}
	return cache.NewMemoryCache(&cacheCfg, 4096, inv)
}
