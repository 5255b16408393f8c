package snapshot

import (
	"context"
	"errors"

	"github.com/annel0/backinv/internal/logging"
	"github.com/annel0/backinv/internal/storage"
)

// maxCollisionSuffix ограничивает подбор суффикса " (n)" для снапшотов одной секунды.
const maxCollisionSuffix = 1000

// Store управляет снапшотами игроков поверх SnapshotRepo:
// именование, перечисление и загрузка.
type Store struct {
	repo  storage.SnapshotRepo
	namer Namer
}

// NewStore создаёт хранилище снапшотов
func NewStore(repo storage.SnapshotRepo, namer Namer) *Store {
	return &Store{repo: repo, namer: namer}
}

// Repo возвращает нижележащее хранилище
func (s *Store) Repo() storage.SnapshotRepo { return s.repo }

// Save сохраняет полезную нагрузку под новым именем и возвращает его.
// Два снапшота в одну секунду не перезаписывают друг друга: второй получает суффикс " (2)".
func (s *Store) Save(ctx context.Context, player PlayerID, payload []byte) (ID, error) {
	base := s.namer.Next()

	id := base
	for seq := 2; ; seq++ {
		exists, err := s.repo.Exists(ctx, string(player), string(id))
		if err != nil {
			return "", &Error{Kind: KindStorageUnavailable, Player: string(player), Action: "saving inventory", Err: err}
		}
		if !exists {
			break
		}
		if seq > maxCollisionSuffix {
			return "", &Error{Kind: KindStorageUnavailable, Player: string(player), Save: string(base), Action: "saving inventory",
				Err: errors.New("слишком много снапшотов в одну секунду")}
		}
		id = WithSequence(base, seq)
	}

	if err := s.repo.Write(ctx, string(player), string(id), payload); err != nil {
		return "", &Error{Kind: KindStorageUnavailable, Player: string(player), Save: string(id), Action: "saving inventory", Err: err}
	}

	logging.GetStorageLogger().Debug("Saved inventory for player %s to file %s", player, id)
	return id, nil
}

// List возвращает снапшоты игрока, новые первыми.
// Ошибки чтения хранилища логируются и трактуются как «сохранений нет».
func (s *Store) List(ctx context.Context, player PlayerID) List {
	names, err := s.repo.List(ctx, string(player))
	if err != nil {
		logging.GetStorageLogger().Error("Error getting player saves for %s: %v", player, err)
		return List{}
	}

	ids := make(List, 0, len(names))
	for _, name := range names {
		ids = append(ids, ID(name))
	}
	Sort(ids)
	return ids
}

// Load возвращает сырую полезную нагрузку снапшота.
// Содержимое не разбирается: ошибки формата выявляет вызывающий при десериализации.
func (s *Store) Load(ctx context.Context, player PlayerID, id ID) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	payload, err := s.repo.Read(ctx, string(player), string(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &Error{Kind: KindNotFound, Player: string(player), Save: string(id), Err: err}
	}
	if err != nil {
		return nil, &Error{Kind: KindStorageUnavailable, Player: string(player), Save: string(id), Action: "loading inventory", Err: err}
	}
	return payload, nil
}
