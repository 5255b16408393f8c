package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string // Адрес Redis сервера
	Password  string // Пароль (пустой если не требуется)
	DB        int    // Номер базы данных
	KeyPrefix string // Префикс для ключей
	Compress  bool   // Сжимать полезную нагрузку zstd
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "backinv:snapshots:",
	}
}

// RedisSnapshotRepo хранит снапшоты игрока в одном hash: <prefix><player>,
// поле - имя снапшота, значение - полезная нагрузка.
type RedisSnapshotRepo struct {
	client     *redis.Client
	keyPrefix  string
	compressor *PayloadCompressor
}

// NewRedisSnapshotRepo подключается к Redis и проверяет соединение
func NewRedisSnapshotRepo(config *RedisConfig) (*RedisSnapshotRepo, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultRedisConfig().KeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	repo := &RedisSnapshotRepo{
		client:    client,
		keyPrefix: config.KeyPrefix,
	}
	if config.Compress {
		compressor, err := NewPayloadCompressor()
		if err != nil {
			client.Close()
			return nil, err
		}
		repo.compressor = compressor
	}
	return repo, nil
}

func (r *RedisSnapshotRepo) key(player string) string {
	return r.keyPrefix + player
}

// Write сохраняет снапшот в hash игрока
func (r *RedisSnapshotRepo) Write(ctx context.Context, player, name string, payload []byte) error {
	if err := checkKey(player, name); err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.key(player), name, r.compressor.Compress(payload)).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Read загружает снапшот
func (r *RedisSnapshotRepo) Read(ctx context.Context, player, name string) ([]byte, error) {
	if err := checkKey(player, name); err != nil {
		return nil, err
	}
	data, err := r.client.HGet(ctx, r.key(player), name).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%s/%s: %w", player, name, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return r.compressor.Decompress(data)
}

// List возвращает поля hash игрока
func (r *RedisSnapshotRepo) List(ctx context.Context, player string) ([]string, error) {
	if err := checkPlayer(player); err != nil {
		return nil, err
	}
	names, err := r.client.HKeys(ctx, r.key(player)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Exists проверяет наличие поля
func (r *RedisSnapshotRepo) Exists(ctx context.Context, player, name string) (bool, error) {
	if err := checkKey(player, name); err != nil {
		return false, err
	}
	ok, err := r.client.HExists(ctx, r.key(player), name).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check snapshot: %w", err)
	}
	return ok, nil
}

// Close закрывает соединение с Redis
func (r *RedisSnapshotRepo) Close() error {
	r.compressor.Close()
	return r.client.Close()
}
