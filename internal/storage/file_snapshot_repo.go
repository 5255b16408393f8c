package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// DefaultBackupsRoot - корень резервных копий относительно рабочего каталога сервера.
	DefaultBackupsRoot = "config/backinv/backups"
	// DefaultExtension - расширение файлов снапшотов.
	DefaultExtension = "json"

	tempPrefix = ".backinv-"
)

// FileSnapshotRepo хранит снапшоты в файловой системе:
// <root>/<player>/<name>.<ext>, один файл на снапшот, полезная нагрузка как есть.
type FileSnapshotRepo struct {
	root string
	ext  string
}

// NewFileSnapshotRepo создаёт файловое хранилище и его корневой каталог.
func NewFileSnapshotRepo(root, ext string) (*FileSnapshotRepo, error) {
	if root == "" {
		root = DefaultBackupsRoot
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = DefaultExtension
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", root, err)
	}

	return &FileSnapshotRepo{root: root, ext: ext}, nil
}

// Root возвращает корневой каталог хранилища
func (r *FileSnapshotRepo) Root() string { return r.root }

// Path возвращает путь к файлу снапшота.
func (r *FileSnapshotRepo) Path(player, name string) string {
	return filepath.Join(r.root, player, name+"."+r.ext)
}

// Write пишет снапшот через временный файл и rename, чтобы читатель
// не увидел недописанный файл.
func (r *FileSnapshotRepo) Write(ctx context.Context, player, name string, payload []byte) error {
	if err := checkKey(player, name); err != nil {
		return err
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}

	dir := filepath.Join(r.root, player)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла в %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ошибка записи файла %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка закрытия файла %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка установки прав %s: %w", tmpName, err)
	}

	filename := r.Path(player, name)
	if err := os.Rename(tmpName, filename); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ошибка записи файла %s: %w", filename, err)
	}

	return nil
}

// Read читает файл снапшота.
func (r *FileSnapshotRepo) Read(ctx context.Context, player, name string) ([]byte, error) {
	if err := checkKey(player, name); err != nil {
		return nil, err
	}
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	filename := r.Path(player, name)
	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", filename, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", filename, err)
	}
	return data, nil
}

// List перечисляет файлы с расширением хранилища в каталоге игрока.
// Отсутствующий каталог означает, что сохранений ещё не было.
func (r *FileSnapshotRepo) List(ctx context.Context, player string) ([]string, error) {
	if err := checkPlayer(player); err != nil {
		return nil, err
	}
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	dir := filepath.Join(r.root, player)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", dir, err)
	}

	suffix := "." + r.ext
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		filename := entry.Name()
		if strings.HasPrefix(filename, tempPrefix) || !strings.HasSuffix(filename, suffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(filename, suffix))
	}
	sort.Strings(names)
	return names, nil
}

// Exists проверяет наличие файла снапшота
func (r *FileSnapshotRepo) Exists(ctx context.Context, player, name string) (bool, error) {
	if err := checkKey(player, name); err != nil {
		return false, err
	}
	_, err := os.Stat(r.Path(player, name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка проверки файла: %w", err)
	}
	return true, nil
}

// Close ничего не делает: файловое хранилище не держит открытых ресурсов.
func (r *FileSnapshotRepo) Close() error { return nil }
