package cache

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/athebyme/listing-sync-platform/pkg/errors"
	"github.com/athebyme/listing-sync-platform/pkg/interfaces"
	"github.com/go-redis/redis/v8"
)

// checkpointKeyPrefix — префикс ключей контрольных точек в Redis
const checkpointKeyPrefix = "sync:checkpoint:"

// RedisCheckpointStore реализация CheckpointPort поверх Redis
type RedisCheckpointStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCheckpointStore создает новое хранилище контрольных точек.
// ttl задает срок жизни точки; 0 означает хранение без ограничения срока
func NewRedisCheckpointStore(ctx context.Context, host string, port int, password string, db int, ttl time.Duration) (interfaces.CheckpointPort, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCheckpointStore{client: client, ttl: ttl}, nil
}

// buildKey строит ключ контрольной точки по хэшу источника
func (r *RedisCheckpointStore) buildKey(sourceHash string) string {
	return checkpointKeyPrefix + sourceHash
}

// Load получает контрольную точку по хэшу источника
func (r *RedisCheckpointStore) Load(ctx context.Context, sourceHash string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.buildKey(sourceHash)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.ErrCheckpointMiss
		}
		return nil, err
	}
	return val, nil
}

// Save сохраняет контрольную точку
func (r *RedisCheckpointStore) Save(ctx context.Context, sourceHash string, value []byte) error {
	return r.client.Set(ctx, r.buildKey(sourceHash), value, r.ttl).Err()
}

// Clear удаляет контрольную точку. Отсутствие ключа не является ошибкой
func (r *RedisCheckpointStore) Clear(ctx context.Context, sourceHash string) error {
	return r.client.Del(ctx, r.buildKey(sourceHash)).Err()
}

// Close закрывает соединение с Redis
func (r *RedisCheckpointStore) Close() error {
	return r.client.Close()
}
