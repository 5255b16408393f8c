package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

// BadgerConfig содержит настройки хранилища снапшотов на BadgerDB
type BadgerConfig struct {
	Path     string // каталог базы; игнорируется при InMemory
	InMemory bool   // база целиком в памяти (тесты)
	Compress bool   // сжимать полезную нагрузку zstd
}

// BadgerSnapshotRepo хранит снапшоты в BadgerDB под ключами snap:<player>:<name>.
type BadgerSnapshotRepo struct {
	db         *badger.DB
	compressor *PayloadCompressor
	mutex      sync.RWMutex
	isReady    bool
}

// NewBadgerSnapshotRepo открывает (или создаёт) базу снапшотов
func NewBadgerSnapshotRepo(cfg BadgerConfig) (*BadgerSnapshotRepo, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			cfg.Path = filepath.Join("config", "backinv", "snapshots.db")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	repo := &BadgerSnapshotRepo{db: db, isReady: true}
	if cfg.Compress {
		repo.compressor, err = NewPayloadCompressor()
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return repo, nil
}

func badgerPrefix(player string) []byte {
	return []byte("snap:" + player + ":")
}

func badgerKey(player, name string) []byte {
	return append(badgerPrefix(player), name...)
}

// Write сохраняет снапшот
func (r *BadgerSnapshotRepo) Write(ctx context.Context, player, name string, payload []byte) error {
	if err := checkKey(player, name); err != nil {
		return err
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if !r.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	value := r.compressor.Compress(payload)
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(player, name), value)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// Read загружает снапшот
func (r *BadgerSnapshotRepo) Read(ctx context.Context, player, name string) ([]byte, error) {
	if err := checkKey(player, name); err != nil {
		return nil, err
	}
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if !r.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(player, name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s/%s: %w", player, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	return r.compressor.Decompress(data)
}

// List перечисляет ключи игрока без чтения значений
func (r *BadgerSnapshotRepo) List(ctx context.Context, player string) ([]string, error) {
	if err := checkPlayer(player); err != nil {
		return nil, err
	}
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if !r.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	prefix := badgerPrefix(player)
	names := make([]string, 0)
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			names = append(names, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка перечисления BadgerDB: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

// Exists проверяет наличие ключа
func (r *BadgerSnapshotRepo) Exists(ctx context.Context, player, name string) (bool, error) {
	if err := checkKey(player, name); err != nil {
		return false, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if !r.isReady {
		return false, fmt.Errorf("хранилище не готово")
	}

	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(badgerKey(player, name))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return true, nil
}

// Close закрывает базу
func (r *BadgerSnapshotRepo) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.isReady {
		return nil
	}

	r.isReady = false
	r.compressor.Close()
	return r.db.Close()
}
