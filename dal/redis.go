package dal

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"birthdaybot/models"
)

// RedisBackend stores the data.json document under a single key.
type RedisBackend struct {
	client *redis.Client
	key    string
}

// NewRedisBackend returns a backend using client and key.
func NewRedisBackend(client *redis.Client, key string) *RedisBackend {
	return &RedisBackend{client: client, key: key}
}

// Load reads the document. A missing key is an empty store.
func (b *RedisBackend) Load(ctx context.Context) (map[string]*models.Community, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return make(map[string]*models.Community), nil
		}
		return nil, fmt.Errorf("failed to read %s from redis: %w", b.key, err)
	}
	return decodeDocument(data)
}

// Save overwrites the document.
func (b *RedisBackend) Save(ctx context.Context, communities map[string]*models.Community) error {
	data, err := encodeDocument(communities)
	if err != nil {
		return err
	}
	if err := b.client.Set(ctx, b.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s to redis: %w", b.key, err)
	}
	return nil
}
