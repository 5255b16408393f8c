package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound возвращается, когда запрошенный снапшот отсутствует.
var ErrNotFound = errors.New("snapshot not found")

// SnapshotRepo определяет интерфейс хранилища снапшотов игроков.
// Хранилище - единственный источник истины: отдельного каталога-индекса нет,
// список снапшотов каждый раз строится заново по содержимому хранилища.
type SnapshotRepo interface {
	// Write сохраняет полезную нагрузку снапшота, создавая область игрока при необходимости.
	// Существующая запись с тем же именем перезаписывается.
	Write(ctx context.Context, player, name string, payload []byte) error

	// Read возвращает полезную нагрузку снапшота без изменений.
	// Возвращает ErrNotFound, если снапшота нет.
	Read(ctx context.Context, player, name string) ([]byte, error)

	// List возвращает имена снапшотов игрока в произвольном порядке.
	// Для игрока без сохранений возвращается пустой срез и nil.
	List(ctx context.Context, player string) ([]string, error)

	// Exists проверяет наличие снапшота.
	Exists(ctx context.Context, player, name string) (bool, error)

	// Close освобождает ресурсы хранилища.
	Close() error
}

// checkKey повторно проверяет компоненты ключа на уровне хранилища.
func checkKey(player, name string) error {
	if player == "" || strings.ContainsAny(player, `/\:`) || player == "." || player == ".." {
		return fmt.Errorf("недействительный игрок: %q", player)
	}
	if name == "" || strings.ContainsAny(name, `/\:`) || name == "." || name == ".." {
		return fmt.Errorf("недействительное имя снапшота: %q", name)
	}
	return nil
}

// checkPlayer проверяет только игрока (для List).
func checkPlayer(player string) error {
	return checkKey(player, "_")
}

// ctxErr возвращает ошибку отменённого контекста, если она есть.
func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
