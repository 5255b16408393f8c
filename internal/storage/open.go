package storage

import (
	"fmt"
	"strings"
)

// Поддерживаемые бэкенды хранилища снапшотов
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Options выбирает и настраивает бэкенд
type Options struct {
	Backend   string
	Root      string // file
	Extension string // file
	Badger    BadgerConfig
	Redis     RedisConfig
}

// Open создаёт SnapshotRepo по имени бэкенда (по умолчанию - файловый).
func Open(opts Options) (SnapshotRepo, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendFile:
		return NewFileSnapshotRepo(opts.Root, opts.Extension)
	case BackendMemory:
		return NewMemorySnapshotRepo(), nil
	case BackendBadger:
		return NewBadgerSnapshotRepo(opts.Badger)
	case BackendRedis:
		cfg := opts.Redis
		return NewRedisSnapshotRepo(&cfg)
	default:
		return nil, fmt.Errorf("неизвестный бэкенд хранилища: %q", opts.Backend)
	}
}
