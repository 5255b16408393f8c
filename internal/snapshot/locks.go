package snapshot

import "sync"

// PlayerLocks сериализует операции над снапшотами одного игрока.
// Разные игроки не блокируют друг друга; запись о мьютексе удаляется,
// когда его больше никто не держит и не ждёт.
type PlayerLocks struct {
	mu    sync.Mutex
	locks map[PlayerID]*playerLock
}

type playerLock struct {
	mu   sync.Mutex
	refs int
}

// NewPlayerLocks создаёт пустой набор блокировок
func NewPlayerLocks() *PlayerLocks {
	return &PlayerLocks{locks: make(map[PlayerID]*playerLock)}
}

// Lock захватывает блокировку игрока и возвращает функцию освобождения.
// Функцию нужно вызвать ровно один раз (обычно через defer).
func (pl *PlayerLocks) Lock(player PlayerID) (unlock func()) {
	pl.mu.Lock()
	l, ok := pl.locks[player]
	if !ok {
		l = &playerLock{}
		pl.locks[player] = l
	}
	l.refs++
	pl.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		pl.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(pl.locks, player)
		}
		pl.mu.Unlock()
	}
}

// Len возвращает число игроков с активными блокировками (для тестов).
func (pl *PlayerLocks) Len() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return len(pl.locks)
}
