package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// repoFactories возвращает все реализации SnapshotRepo для общего набора проверок.
func repoFactories() map[string]func(t *testing.T) SnapshotRepo {
	return map[string]func(t *testing.T) SnapshotRepo{
		"memory": func(t *testing.T) SnapshotRepo {
			return NewMemorySnapshotRepo()
		},
		"file": func(t *testing.T) SnapshotRepo {
			repo, err := NewFileSnapshotRepo(t.TempDir(), "json")
			require.NoError(t, err)
			return repo
		},
		"badger": func(t *testing.T) SnapshotRepo {
			repo, err := NewBadgerSnapshotRepo(BadgerConfig{InMemory: true, Compress: true})
			require.NoError(t, err)
			return repo
		},
		"badger-plain": func(t *testing.T) SnapshotRepo {
			repo, err := NewBadgerSnapshotRepo(BadgerConfig{InMemory: true})
			require.NoError(t, err)
			return repo
		},
		"redis": func(t *testing.T) SnapshotRepo {
			s := miniredis.RunT(t)
			repo, err := NewRedisSnapshotRepo(&RedisConfig{Addr: s.Addr(), Compress: true})
			require.NoError(t, err)
			return repo
		},
		"redis-plain": func(t *testing.T) SnapshotRepo {
			s := miniredis.RunT(t)
			repo, err := NewRedisSnapshotRepo(&RedisConfig{Addr: s.Addr()})
			require.NoError(t, err)
			return repo
		},
	}
}

func TestSnapshotRepoContract(t *testing.T) {
	for name, factory := range repoFactories() {
		factory := factory
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("Empty List", func(t *testing.T) {
				repo := factory(t)
				defer repo.Close()

				names, err := repo.List(ctx, "Alice")
				require.NoError(t, err, "список без сохранений не должен быть ошибкой")
				assert.Empty(t, names)
			})

			t.Run("Write and Read", func(t *testing.T) {
				repo := factory(t)
				defer repo.Close()

				payload := []byte(`{"inventory":{"diamond":3}}`)
				require.NoError(t, repo.Write(ctx, "Alice", "14.03.22 05-06-2024", payload))

				got, err := repo.Read(ctx, "Alice", "14.03.22 05-06-2024")
				require.NoError(t, err)
				assert.Equal(t, payload, got, "полезная нагрузка должна вернуться без изменений")

				ok, err := repo.Exists(ctx, "Alice", "14.03.22 05-06-2024")
				require.NoError(t, err)
				assert.True(t, ok)
			})

			t.Run("Opaque Binary Payload", func(t *testing.T) {
				repo := factory(t)
				defer repo.Close()

				// Байты, похожие на заголовок zstd или флаг сжатия, возвращаются без изменений
				for i, payload := range [][]byte{
					{0x28, 0xB5, 0x2F, 0xFD, 'h', 'i'},
					{0x00, 'r', 'a', 'w'},
					{0x01, 0x02, 0x03},
				} {
					name := string(rune('a' + i))
					require.NoError(t, repo.Write(ctx, "Alice", name, payload))

					got, err := repo.Read(ctx, "Alice", name)
					require.NoError(t, err)
					assert.Equal(t, payload, got)
				}
			})

			t.Run("List Is Per Player", func(t *testing.T) {
				repo := factory(t)
				defer repo.Close()

				require.NoError(t, repo.Write(ctx, "Alice", "a", []byte("1")))
				require.NoError(t, repo.Write(ctx, "Alice", "b", []byte("2")))
				require.NoError(t, repo.Write(ctx, "Bob", "c", []byte("3")))

				names, err := repo.List(ctx, "Alice")
				require.NoError(t, err)
				assert.ElementsMatch(t, []string{"a", "b"}, names)

				names, err = repo.List(ctx, "Bob")
				require.NoError(t, err)
				assert.Equal(t, []string{"c"}, names)
			})

			t.Run("Read Missing", func(t *testing.T) {
				repo := factory(t)
				defer repo.Close()

				_, err := repo.Read(ctx, "Alice", "missing")
				assert.True(t, errors.Is(err, ErrNotFound), "ожидался ErrNotFound, получено: %v", err)

				ok, err := repo.Exists(ctx, "Alice", "missing")
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("Overwrite Same Name", func(t *testing.T) {
				repo := factory(t)
				defer repo.Close()

				require.NoError(t, repo.Write(ctx, "Alice", "a", []byte("old")))
				require.NoError(t, repo.Write(ctx, "Alice", "a", []byte("new")))

				got, err := repo.Read(ctx, "Alice", "a")
				require.NoError(t, err)
				assert.Equal(t, []byte("new"), got)

				names, err := repo.List(ctx, "Alice")
				require.NoError(t, err)
				assert.Len(t, names, 1)
			})

			t.Run("Rejects Path Components", func(t *testing.T) {
				repo := factory(t)
				defer repo.Close()

				assert.Error(t, repo.Write(ctx, "../evil", "a", []byte("x")))
				assert.Error(t, repo.Write(ctx, "Alice", "../../etc/passwd", []byte("x")))
				_, err := repo.List(ctx, "..")
				assert.Error(t, err)
			})
		})
	}
}

func TestFileSnapshotRepoLayout(t *testing.T) {
	root := t.TempDir()
	repo, err := NewFileSnapshotRepo(root, ".nbt")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, repo.Write(ctx, "Alice", "14.03.22 05-06-2024", []byte("{}")))

	path := filepath.Join(root, "Alice", "14.03.22 05-06-2024.nbt")
	data, err := os.ReadFile(path)
	require.NoError(t, err, "файл снапшота должен лежать в каталоге игрока")
	assert.Equal(t, "{}", string(data))

	// Посторонние файлы и временные файлы не попадают в список
	require.NoError(t, os.WriteFile(filepath.Join(root, "Alice", "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Alice", tempPrefix+"123.tmp"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "Alice", "sub.nbt"), 0755))

	names, err := repo.List(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"14.03.22 05-06-2024"}, names)
}

func TestMemorySnapshotRepoFailWrites(t *testing.T) {
	repo := NewMemorySnapshotRepo()
	repo.FailWrites = true

	err := repo.Write(context.Background(), "Alice", "a", []byte("x"))
	assert.Error(t, err)
	assert.Equal(t, 0, repo.Count())
}

func TestMemorySnapshotRepoContextCancellation(t *testing.T) {
	repo := NewMemorySnapshotRepo()

	canceledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.Write(canceledCtx, "Alice", "a", []byte("x"))
	assert.Equal(t, context.Canceled, err)
}

func TestPayloadCompressor(t *testing.T) {
	c, err := NewPayloadCompressor()
	require.NoError(t, err)
	defer c.Close()

	payload := []byte(`{"inventory":{"stone":64,"stone_2":64,"stone_3":64}}`)
	packed := c.Compress(payload)
	assert.Equal(t, flagZstd, packed[0])

	unpacked, err := c.Decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, payload, unpacked)

	// Несжатые значения (записанные до включения сжатия) читаются как есть
	raw, err := c.Decompress(payload)
	require.NoError(t, err)
	assert.Equal(t, payload, raw)

	// Без компрессора значения не анализируются
	var nilCompressor *PayloadCompressor
	magic := []byte{0x28, 0xB5, 0x2F, 0xFD, 'h', 'i'}
	assert.Equal(t, magic, nilCompressor.Compress(magic))
	got, err := nilCompressor.Decompress(magic)
	require.NoError(t, err)
	assert.Equal(t, magic, got)
}

func TestOpenBackends(t *testing.T) {
	repo, err := Open(Options{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemorySnapshotRepo{}, repo)

	repo, err = Open(Options{Root: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileSnapshotRepo{}, repo)

	_, err = Open(Options{Backend: "tape"})
	assert.Error(t, err)
}
