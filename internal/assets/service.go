package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/annel0/mmo-assets/internal/cache"
	"github.com/annel0/mmo-assets/internal/config"
	"github.com/annel0/mmo-assets/internal/d2o"
	"github.com/annel0/mmo-assets/internal/dlm"
	"github.com/annel0/mmo-assets/internal/logging"
	"github.com/annel0/mmo-assets/internal/observability"
	"github.com/annel0/mmo-assets/internal/storage"
	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	moduleExt = ".d2o"
	mapExt    = ".dlm"
)

var (
	// ErrMapNotFound - карты нет ни в LRU, ни в архиве, ни в каталоге карт
	ErrMapNotFound = errors.New("map not found")
	// ErrNoArchive - операция требует архив карт, а он не настроен
	ErrNoArchive = errors.New("map archive is not configured")
)

// Options - зависимости сервиса. Незаданные поля заменяются значениями по умолчанию.
type Options struct {
	Config  config.AssetsConfig
	FS      afero.Fs
	Factory *d2o.Factory
	Archive *storage.MapArchive
	Cache   cache.CacheRepo
	Metrics *observability.CodecMetrics
}

// Service связывает кодеки D2O и DLM с файловой системой, архивом карт и кешем ответов.
// Контейнер D2O не потокобезопасен, поэтому все обращения к нему идут под mu.
type Service struct {
	cfg     config.AssetsConfig
	fs      afero.Fs
	archive *storage.MapArchive
	cache   cache.CacheRepo
	metrics *observability.CodecMetrics
	tracer  trace.Tracer
	log     *logging.Logger

	mu        sync.Mutex
	container *d2o.Container

	maps *lru.Cache
}

// NewService создаёт сервис
func NewService(opts Options) (*Service, error) {
	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.Factory == nil {
		opts.Factory = d2o.NewDynamicFactory()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewCodecMetrics(prometheus.NewRegistry())
	}
	if opts.Config.MapCacheSize <= 0 {
		opts.Config.MapCacheSize = 256
	}
	if opts.Cache == nil {
		mem, err := cache.NewMemoryCache(&cache.CacheConfig{DefaultTTL: opts.Config.RenderTTL}, 1024, nil)
		if err != nil {
			return nil, err
		}
		opts.Cache = mem
	}

	maps, err := lru.New(opts.Config.MapCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create map lru: %w", err)
	}

	return &Service{
		cfg:       opts.Config,
		fs:        opts.FS,
		archive:   opts.Archive,
		cache:     opts.Cache,
		metrics:   opts.Metrics,
		tracer:    observability.Tracer(),
		log:       logging.GetComponentLogger("assets"),
		container: d2o.NewContainer(opts.Factory, opts.FS),
		maps:      maps,
	}, nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// --- D2O ---

// LoadModules регистрирует все *.d2o файлы каталога под их базовыми именами.
// Ошибки отдельных файлов логируются и возвращаются вместе, остальные модули остаются загруженными.
func (s *Service) LoadModules(ctx context.Context) (int, error) {
	ctx, span := s.startSpan(ctx, "assets.LoadModules", attribute.String("dir", s.cfg.D2ODir))
	var err error
	defer func() { endSpan(span, err) }()

	entries, err := afero.ReadDir(s.fs, s.cfg.D2ODir)
	if err != nil {
		err = fmt.Errorf("read modules dir %s: %w", s.cfg.D2ODir, err)
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := 0
	var failures []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), moduleExt) {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			failures = append(failures, ctxErr)
			break
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		start := time.Now()
		regErr := s.container.RegisterFile(name, filepath.Join(s.cfg.D2ODir, entry.Name()))
		s.metrics.ObserveDecode(observability.FormatD2O, start, regErr)
		if regErr != nil {
			failures = append(failures, regErr)
			continue
		}
		loaded++
	}

	s.metrics.SetModulesLoaded(len(s.container.Modules()))
	s.log.Info("Загружено модулей D2O: %d из каталога %s", loaded, s.cfg.D2ODir)
	err = errors.Join(failures...)
	return loaded, err
}

// ModuleInfo - краткие сведения о модуле
type ModuleInfo struct {
	Name    string `json:"name"`
	Classes int    `json:"classes"`
	Records int    `json:"records"`
}

// Modules возвращает загруженные модули по имени
func (s *Service) Modules() []ModuleInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := s.container.Modules()
	out := make([]ModuleInfo, 0, len(names))
	for _, name := range names {
		out = append(out, ModuleInfo{
			Name:    name,
			Classes: len(s.container.Classes(name)),
			Records: s.container.RecordCount(name),
		})
	}
	return out
}

// Classes возвращает схемы модуля; false для незагруженного модуля
func (s *Service) Classes(module string) ([]ClassView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.container.IsLoaded(module) {
		return nil, false
	}
	classes := s.container.Classes(module)
	out := make([]ClassView, 0, len(classes))
	for _, c := range classes {
		out = append(out, newClassView(c))
	}
	return out, true
}

// ReloadModule перечитывает модуль с диска и сбрасывает его отрендеренные ответы
func (s *Service) ReloadModule(ctx context.Context, module string) error {
	ctx, span := s.startSpan(ctx, "assets.ReloadModule", attribute.String("module", module))
	var err error
	defer func() { endSpan(span, err) }()

	file := filepath.Join(s.cfg.D2ODir, module+moduleExt)

	s.mu.Lock()
	s.container.Clear(module)
	start := time.Now()
	err = s.container.RegisterFile(module, file)
	s.metrics.ObserveDecode(observability.FormatD2O, start, err)
	s.metrics.SetModulesLoaded(len(s.container.Modules()))
	s.mu.Unlock()

	// после неудачной загрузки модуль выгружен, его ответы тоже сбрасываются
	if cacheErr := s.cache.InvalidatePrefix(ctx, moduleRenderPrefix(module)); cacheErr != nil {
		s.log.Warn("Не удалось сбросить кеш модуля %s: %v", module, cacheErr)
	}
	if err != nil {
		return err
	}
	s.log.Info("Модуль %s перезагружен", module)
	return nil
}

// Objects декодирует все записи модуля; false для незагруженного модуля
func (s *Service) Objects(ctx context.Context, module string) ([]d2o.Record, bool, error) {
	_, span := s.startSpan(ctx, "d2o.ReadAll", attribute.String("module", module))
	var err error
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.container.IsLoaded(module) {
		return nil, false, nil
	}
	start := time.Now()
	records, err := s.container.ReadAll(module, false)
	s.metrics.ObserveDecode(observability.FormatD2O, start, err)
	if err != nil {
		return nil, true, err
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, true, nil
}

// Object декодирует одну запись по ключу индекса
func (s *Service) Object(ctx context.Context, module string, key int32) (d2o.Record, bool, error) {
	_, span := s.startSpan(ctx, "d2o.ReadObject",
		attribute.String("module", module), attribute.Int("key", int(key)))
	var err error
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	rec, ok, err := s.container.ReadObject(module, key)
	if ok || err != nil {
		s.metrics.ObserveDecode(observability.FormatD2O, start, err)
	}
	return rec, ok, err
}

// --- DLM ---

func mapFileName(id uint32) string {
	return strconv.FormatUint(uint64(id), 10) + mapExt
}

// MapBytes возвращает исходные байты карты: LRU, затем архив, затем файл каталога карт
func (s *Service) MapBytes(ctx context.Context, id uint32) ([]byte, error) {
	_, span := s.startSpan(ctx, "assets.MapBytes", attribute.Int64("map", int64(id)))
	var err error
	defer func() { endSpan(span, err) }()

	if raw, ok := s.maps.Get(id); ok {
		s.metrics.MapLoaded(observability.SourceLRU)
		span.SetAttributes(attribute.String("source", observability.SourceLRU))
		return raw.([]byte), nil
	}

	if s.archive != nil {
		data, archErr := s.archive.Get(id)
		if archErr == nil {
			s.maps.Add(id, data)
			s.metrics.MapLoaded(observability.SourceArchive)
			span.SetAttributes(attribute.String("source", observability.SourceArchive))
			return data, nil
		}
		if !errors.Is(archErr, storage.ErrMapNotFound) {
			err = archErr
			return nil, err
		}
	}

	data, readErr := afero.ReadFile(s.fs, filepath.Join(s.cfg.MapsDir, mapFileName(id)))
	if readErr != nil {
		if errors.Is(readErr, os.ErrNotExist) {
			err = fmt.Errorf("%w: %d", ErrMapNotFound, id)
		} else {
			err = fmt.Errorf("read map %d: %w", id, readErr)
		}
		return nil, err
	}
	s.maps.Add(id, data)
	s.metrics.MapLoaded(observability.SourceFile)
	span.SetAttributes(attribute.String("source", observability.SourceFile))
	return data, nil
}

// Map декодирует карту. Каждый вызов возвращает новую структуру.
func (s *Service) Map(ctx context.Context, id uint32) (*dlm.Map, error) {
	data, err := s.MapBytes(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.decodeMap(ctx, id, data)
}

func (s *Service) decodeMap(ctx context.Context, id uint32, data []byte) (*dlm.Map, error) {
	_, span := s.startSpan(ctx, "dlm.Decode", attribute.Int64("map", int64(id)), attribute.Int("bytes", len(data)))
	start := time.Now()
	m, err := dlm.Decode(data)
	s.metrics.ObserveDecode(observability.FormatDLM, start, err)
	if err != nil {
		logging.LogDecodeError(fmt.Sprintf("map %d", id), err, data)
	} else {
		span.SetAttributes(attribute.Int("version", int(m.Version)), attribute.Bool("encrypted", m.Encrypted))
	}
	endSpan(span, err)
	return m, err
}

// ImportReport - итог импорта карт в архив
type ImportReport struct {
	Imported  int      `json:"imported"`
	Unchanged int      `json:"unchanged"`
	Skipped   []string `json:"skipped,omitempty"`
}

// ImportMaps копирует все *.dlm файлы каталога карт в архив.
// Файлы с нечисловым именем или неверным заголовком пропускаются.
func (s *Service) ImportMaps(ctx context.Context) (ImportReport, error) {
	var report ImportReport
	if s.archive == nil {
		return report, ErrNoArchive
	}

	ctx, span := s.startSpan(ctx, "assets.ImportMaps", attribute.String("dir", s.cfg.MapsDir))
	var err error
	defer func() { endSpan(span, err) }()

	entries, err := afero.ReadDir(s.fs, s.cfg.MapsDir)
	if err != nil {
		err = fmt.Errorf("read maps dir %s: %w", s.cfg.MapsDir, err)
		return report, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if err = ctx.Err(); err != nil {
			return report, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), mapExt) {
			continue
		}
		id, parseErr := strconv.ParseUint(strings.TrimSuffix(name, filepath.Ext(name)), 10, 32)
		if parseErr != nil {
			report.Skipped = append(report.Skipped, name)
			continue
		}

		data, readErr := afero.ReadFile(s.fs, filepath.Join(s.cfg.MapsDir, name))
		if readErr != nil {
			err = fmt.Errorf("read map %s: %w", name, readErr)
			return report, err
		}
		if _, hdrErr := dlm.ReadHeader(data); hdrErr != nil {
			s.log.Warn("Карта %s пропущена: %v", name, hdrErr)
			report.Skipped = append(report.Skipped, name)
			continue
		}

		digest, changed, putErr := s.archive.Put(uint32(id), data)
		if putErr != nil {
			err = putErr
			return report, err
		}
		if changed {
			report.Imported++
			s.maps.Remove(uint32(id))
			s.log.Debug("Карта %d импортирована (blake3 %s)", id, digest)
		} else {
			report.Unchanged++
		}
	}

	s.log.Info("Импорт карт: %d новых, %d без изменений, %d пропущено",
		report.Imported, report.Unchanged, len(report.Skipped))
	return report, nil
}

// HandleInvalidation применяет инвалидацию с другого узла к локальному кешу ответов.
// Повторно в NATS ключ не публикуется.
func (s *Service) HandleInvalidation(key string) error {
	if local, ok := s.cache.(cache.Deleter); ok {
		return cache.ApplyTo(local)(key)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.cache.Delete(ctx, key)
}
