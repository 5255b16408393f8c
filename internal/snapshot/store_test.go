package snapshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/annel0/backinv/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock выдаёт заданное время и сдвигает его на шаг после каждого вызова.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

func newTestStore(clock Clock) (*Store, *storage.MemorySnapshotRepo) {
	repo := storage.NewMemorySnapshotRepo()
	return NewStore(repo, NewNamer(clock)), repo
}

func TestStore_EmptyBeforeSave(t *testing.T) {
	store, _ := newTestStore(nil)

	list := store.List(context.Background(), "Alice")
	assert.NotNil(t, list)
	assert.Empty(t, list, "до первого сохранения список пуст, а не ошибка")
}

func TestStore_RoundTrip(t *testing.T) {
	store, _ := newTestStore(nil)
	ctx := context.Background()

	payload := []byte(`{"Inventory":[{"id":"minecraft:diamond","Count":3}]}`)
	id, err := store.Save(ctx, "Alice", payload)
	require.NoError(t, err)

	got, err := store.Load(ctx, "Alice", id)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestStore_NSavesDescending(t *testing.T) {
	// Старт в 23:59:58, шаг 1 секунда: снапшоты пересекают границу суток
	clock := &stepClock{now: time.Date(2024, 5, 31, 23, 59, 58, 0, time.Local), step: time.Second}
	store, _ := newTestStore(clock)
	ctx := context.Background()

	var saved []ID
	for i := 0; i < 5; i++ {
		id, err := store.Save(ctx, "Alice", []byte{byte(i)})
		require.NoError(t, err)
		saved = append(saved, id)
	}

	list := store.List(ctx, "Alice")
	require.Len(t, list, 5)
	for i := range list {
		assert.Equal(t, saved[len(saved)-1-i], list[i], "позиция %d", i+1)
	}
	for i := 1; i < len(list); i++ {
		prev, _, _ := ParseID(list[i-1])
		cur, _, _ := ParseID(list[i])
		assert.True(t, prev.After(cur), "список должен строго убывать по времени")
	}
}

func TestStore_SameSecondCollision(t *testing.T) {
	at := time.Date(2024, 6, 5, 14, 3, 22, 0, time.Local)
	store, repo := newTestStore(ClockFunc(func() time.Time { return at }))
	ctx := context.Background()

	first, err := store.Save(ctx, "Alice", []byte("first"))
	require.NoError(t, err)
	second, err := store.Save(ctx, "Alice", []byte("second"))
	require.NoError(t, err)

	assert.Equal(t, ID("14.03.22 05-06-2024"), first)
	assert.Equal(t, ID("14.03.22 05-06-2024 (2)"), second)
	assert.Equal(t, 2, repo.Count(), "второй снапшот не должен перезаписать первый")

	list := store.List(ctx, "Alice")
	assert.Equal(t, List{second, first}, list)

	got, err := store.Load(ctx, "Alice", first)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)
}

func TestStore_LoadMissing(t *testing.T) {
	store, _ := newTestStore(nil)

	_, err := store.Load(context.Background(), "Alice", "14.03.22 05-06-2024")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Load(context.Background(), "Alice", "../Bob/x")
	assert.ErrorIs(t, err, ErrSaveNotFound, "литерал с разделителем пути отвергается до обращения к хранилищу")
}

func TestStore_SaveFailure(t *testing.T) {
	store, repo := newTestStore(nil)
	repo.FailWrites = true

	_, err := store.Save(context.Background(), "Alice", []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "Alice", e.Player)
}

// brokenRepo отказывает в перечислении
type brokenRepo struct {
	storage.SnapshotRepo
}

func (brokenRepo) List(ctx context.Context, player string) ([]string, error) {
	return nil, errors.New("permission denied")
}

func TestStore_ListErrorIsEmpty(t *testing.T) {
	store := NewStore(brokenRepo{storage.NewMemorySnapshotRepo()}, NewNamer(nil))

	list := store.List(context.Background(), "Alice")
	assert.Empty(t, list, "ошибка перечисления трактуется как отсутствие сохранений")
}

func TestStore_FileScenario(t *testing.T) {
	root := t.TempDir()
	repo, err := storage.NewFileSnapshotRepo(root, "nbt")
	require.NoError(t, err)

	at := time.Date(2024, 6, 5, 14, 3, 22, 0, time.Local)
	store := NewStore(repo, NewNamer(ClockFunc(func() time.Time { return at })))

	id, err := store.Save(context.Background(), "Alice", []byte(`{"Health":20}`))
	require.NoError(t, err)
	assert.Equal(t, ID("14.03.22 05-06-2024"), id)
	assert.FileExists(t, repo.Path("Alice", "14.03.22 05-06-2024"))
}

func TestPlayerLocks_Serialize(t *testing.T) {
	locks := NewPlayerLocks()

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("Alice")
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside, "операции одного игрока не должны пересекаться")
	assert.Equal(t, 0, locks.Len(), "после освобождения записи о блокировках удаляются")
}

func TestPlayerLocks_IndependentPlayers(t *testing.T) {
	locks := NewPlayerLocks()

	unlockAlice := locks.Lock("Alice")
	defer unlockAlice()

	done := make(chan struct{})
	go func() {
		unlock := locks.Lock("Bob")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("блокировка Alice не должна мешать Bob")
	}
}
