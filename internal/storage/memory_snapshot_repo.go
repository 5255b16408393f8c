package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemorySnapshotRepo реализует SnapshotRepo в памяти.
// Используется в тестах и для локальной разработки.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemorySnapshotRepo struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte // player -> name -> payload

	// FailWrites заставляет Write возвращать ошибку (для тестов отказов хранилища).
	FailWrites bool
}

// NewMemorySnapshotRepo создает новый репозиторий снапшотов в памяти.
func NewMemorySnapshotRepo() *MemorySnapshotRepo {
	return &MemorySnapshotRepo{
		data: make(map[string]map[string][]byte),
	}
}

// Write сохраняет копию полезной нагрузки.
func (r *MemorySnapshotRepo) Write(ctx context.Context, player, name string, payload []byte) error {
	if err := checkKey(player, name); err != nil {
		return err
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailWrites {
		return fmt.Errorf("хранилище недоступно для записи")
	}

	saves, ok := r.data[player]
	if !ok {
		saves = make(map[string][]byte)
		r.data[player] = saves
	}
	saves[name] = append([]byte(nil), payload...)
	return nil
}

// Read возвращает копию полезной нагрузки
func (r *MemorySnapshotRepo) Read(ctx context.Context, player, name string) ([]byte, error) {
	if err := checkKey(player, name); err != nil {
		return nil, err
	}
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	payload, ok := r.data[player][name]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", player, name, ErrNotFound)
	}
	return append([]byte(nil), payload...), nil
}

// List возвращает имена снапшотов игрока
func (r *MemorySnapshotRepo) List(ctx context.Context, player string) ([]string, error) {
	if err := checkPlayer(player); err != nil {
		return nil, err
	}
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.data[player]))
	for name := range r.data[player] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Exists проверяет наличие снапшота
func (r *MemorySnapshotRepo) Exists(ctx context.Context, player, name string) (bool, error) {
	if err := checkKey(player, name); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.data[player][name]
	return ok, nil
}

// Count возвращает общее число снапшотов (для тестов).
func (r *MemorySnapshotRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, saves := range r.data {
		n += len(saves)
	}
	return n
}

// Close ничего не делает
func (r *MemorySnapshotRepo) Close() error { return nil }
