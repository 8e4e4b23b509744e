package storage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

const (
	mapPrefix    = "map:"
	digestPrefix = "digest:"
)

// ErrMapNotFound возвращается, если карты нет в архиве
var ErrMapNotFound = errors.New("map not found in archive")

// Digest - BLAKE3 хеш исходных байт карты
type Digest [32]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// DigestOf считает хеш данных
func DigestOf(data []byte) Digest {
	return blake3.Sum256(data)
}

// MapArchive хранит исходные DLM файлы в BadgerDB.
// Значения сжаты zstd, рядом хранится хеш несжатых данных.
type MapArchive struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewMapArchive открывает архив в каталоге dataPath/maps
func NewMapArchive(dataPath string) (*MapArchive, error) {
	dbPath := filepath.Join(dataPath, "maps")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB
	return openArchive(opts, dbPath)
}

// NewMemoryMapArchive создаёт архив без записи на диск
func NewMemoryMapArchive() (*MapArchive, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openArchive(opts, "")
}

func openArchive(opts badger.Options, dbPath string) (*MapArchive, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd decoder: %w", err)
	}

	return &MapArchive{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Close закрывает архив
func (a *MapArchive) Close() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if !a.isReady {
		return nil
	}
	a.isReady = false

	a.decoder.Close()
	if err := a.encoder.Close(); err != nil {
		a.db.Close()
		return err
	}
	return a.db.Close()
}

func mapKey(id uint32) []byte {
	return []byte(mapPrefix + strconv.FormatUint(uint64(id), 10))
}

func digestKey(id uint32) []byte {
	return []byte(digestPrefix + strconv.FormatUint(uint64(id), 10))
}

// Put сохраняет карту. Если хеш совпадает с сохранённым, запись пропускается и changed == false.
func (a *MapArchive) Put(id uint32, data []byte) (digest Digest, changed bool, err error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if !a.isReady {
		return digest, false, fmt.Errorf("архив не готов")
	}

	digest = DigestOf(data)
	err = a.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(digestKey(id))
		if err == nil {
			var stored Digest
			if err := item.Value(func(val []byte) error {
				copy(stored[:], val)
				return nil
			}); err != nil {
				return err
			}
			if stored == digest {
				return nil
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		changed = true
		if err := txn.Set(mapKey(id), a.encoder.EncodeAll(data, nil)); err != nil {
			return err
		}
		return txn.Set(digestKey(id), digest[:])
	})
	if err != nil {
		return digest, false, fmt.Errorf("ошибка сохранения карты %d в BadgerDB: %w", id, err)
	}
	return digest, changed, nil
}

// Get возвращает исходные байты карты
func (a *MapArchive) Get(id uint32) ([]byte, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if !a.isReady {
		return nil, fmt.Errorf("архив не готов")
	}

	var compressed []byte
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(mapKey(id))
		if err != nil {
			return err
		}
		compressed, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrMapNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения карты %d из BadgerDB: %w", id, err)
	}

	data, err := a.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки карты %d: %w", id, err)
	}
	return data, nil
}

// Digest возвращает сохранённый хеш карты
func (a *MapArchive) Digest(id uint32) (Digest, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	var d Digest
	if !a.isReady {
		return d, fmt.Errorf("архив не готов")
	}

	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(digestKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			copy(d[:], val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return d, ErrMapNotFound
	}
	return d, err
}

// Has сообщает, есть ли карта в архиве
func (a *MapArchive) Has(id uint32) (bool, error) {
	_, err := a.Digest(id)
	if errors.Is(err, ErrMapNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Delete удаляет карту из архива
func (a *MapArchive) Delete(id uint32) error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if !a.isReady {
		return fmt.Errorf("архив не готов")
	}

	return a.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(mapKey(id)); err != nil {
			return err
		}
		return txn.Delete(digestKey(id))
	})
}

// List возвращает идентификаторы всех карт по возрастанию
func (a *MapArchive) List() ([]uint32, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if !a.isReady {
		return nil, fmt.Errorf("архив не готов")
	}

	var ids []uint32
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(mapPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			id, err := strconv.ParseUint(key[len(mapPrefix):], 10, 32)
			if err != nil {
				return fmt.Errorf("некорректный ключ %q: %w", key, err)
			}
			ids = append(ids, uint32(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
