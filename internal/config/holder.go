package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/annel0/backinv/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// Holder хранит текущую конфигурацию. Читатели получают целостный снимок,
// перезагрузка атомарно подменяет его целиком.
type Holder struct {
	cur  atomic.Pointer[Config]
	path string
}

// NewHolder создаёт держатель с начальной конфигурацией
func NewHolder(path string, cfg *Config) *Holder {
	if cfg == nil {
		cfg = Default()
	}
	h := &Holder{path: path}
	h.cur.Store(cfg)
	return h
}

// Current возвращает текущую конфигурацию. Результат нельзя изменять.
func (h *Holder) Current() *Config {
	return h.cur.Load()
}

// Path возвращает путь к документу конфигурации
func (h *Holder) Path() string { return h.path }

// Swap подменяет конфигурацию и возвращает предыдущую
func (h *Holder) Swap(cfg *Config) *Config {
	return h.cur.Swap(cfg)
}

// Reload перечитывает документ. При ошибке предыдущая конфигурация остаётся в силе.
func (h *Holder) Reload() error {
	cfg, err := Load(h.path)
	if err != nil {
		logging.Warn("⚠️ Конфигурация %s не перезагружена, остаются прежние значения: %v", h.path, err)
		return err
	}
	h.cur.Store(cfg)
	logging.Info("🔄 Конфигурация перезагружена из %s", h.path)
	return nil
}

// Watch следит за документом конфигурации и перезагружает его при изменении.
// Наблюдается каталог, а не файл: редакторы часто сохраняют через переименование.
// Блокируется до отмены ctx.
func (h *Holder) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("не удалось создать fsnotify watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(h.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("не удалось наблюдать за %s: %w", dir, err)
	}
	logging.Debug("👀 Наблюдение за конфигурацией %s", h.path)

	target := filepath.Clean(h.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				_ = h.Reload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logging.Error("❌ Ошибка наблюдения за конфигурацией: %v", err)
		}
	}
}
