package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/annel0/mmo-assets/internal/cache"
	"github.com/annel0/mmo-assets/internal/dlm"
	"github.com/annel0/mmo-assets/internal/storage"
)

// ErrCellOutOfRange - номер ячейки вне 0..559
var ErrCellOutOfRange = errors.New("cell out of range")

// Ключи кеша отрендеренных ответов:
//
//	render:d2o:<module>:<key>     - одна запись
//	render:d2o:<module>:all       - все записи модуля
//	render:map:<id>:<blake3>      - карта; дайджест меняется вместе с байтами
//
// Перезагрузка модуля сбрасывает префикс render:d2o:<module>:.
func moduleRenderPrefix(module string) string {
	return "render:d2o:" + module + ":"
}

func mapRenderKey(id uint32, digest storage.Digest) string {
	return "render:map:" + strconv.FormatUint(uint64(id), 10) + ":" + digest.String()
}

func (s *Service) cached(ctx context.Context, key string) ([]byte, bool) {
	data, err := s.cache.Get(ctx, key)
	if err == nil {
		return data, true
	}
	if !cache.IsCacheMiss(err) {
		s.log.Warn("Чтение кеша %s: %v", key, err)
	}
	return nil, false
}

func (s *Service) store(ctx context.Context, key string, data []byte) {
	if err := s.cache.Set(ctx, key, data, s.cfg.RenderTTL); err != nil {
		s.log.Warn("Запись кеша %s: %v", key, err)
	}
}

// RenderObject возвращает JSON записи модуля. false - модуль не загружен или ключа нет.
func (s *Service) RenderObject(ctx context.Context, module string, key int32) ([]byte, bool, error) {
	cacheKey := moduleRenderPrefix(module) + strconv.FormatInt(int64(key), 10)
	if data, ok := s.cached(ctx, cacheKey); ok {
		return data, true, nil
	}

	rec, ok, err := s.Object(ctx, module, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, true, fmt.Errorf("render %s/%d: %w", module, key, err)
	}
	s.store(ctx, cacheKey, data)
	return data, true, nil
}

// RenderObjects возвращает JSON массива всех записей модуля
func (s *Service) RenderObjects(ctx context.Context, module string) ([]byte, bool, error) {
	cacheKey := moduleRenderPrefix(module) + "all"
	if data, ok := s.cached(ctx, cacheKey); ok {
		return data, true, nil
	}

	records, ok, err := s.Objects(ctx, module)
	if err != nil || !ok {
		return nil, ok, err
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, true, fmt.Errorf("render %s: %w", module, err)
	}
	s.store(ctx, cacheKey, data)
	return data, true, nil
}

// RenderMap возвращает JSON карты. Ключ кеша включает дайджест исходных байт.
func (s *Service) RenderMap(ctx context.Context, id uint32) ([]byte, error) {
	raw, err := s.MapBytes(ctx, id)
	if err != nil {
		return nil, err
	}
	digest := storage.DigestOf(raw)
	cacheKey := mapRenderKey(id, digest)
	if data, ok := s.cached(ctx, cacheKey); ok {
		return data, nil
	}

	m, err := s.decodeMap(ctx, id, raw)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(newMapView(m, digest.String()))
	if err != nil {
		return nil, fmt.Errorf("render map %d: %w", id, err)
	}
	s.store(ctx, cacheKey, data)
	return data, nil
}

// Cell возвращает одну ячейку карты с производными признаками
func (s *Service) Cell(ctx context.Context, id uint32, cell int) (CellView, error) {
	if cell < 0 || cell >= dlm.CellCount {
		return CellView{}, fmt.Errorf("%w: %d", ErrCellOutOfRange, cell)
	}
	m, err := s.Map(ctx, id)
	if err != nil {
		return CellView{}, err
	}
	c, _ := m.Cell(cell)
	return newCellView(c), nil
}
