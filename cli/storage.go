package cli

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"birthdaybot/config"
	"birthdaybot/dal"
)

type backend interface {
	dal.Backend
	Close() error
}

type nopCloser struct{ dal.Backend }

func (nopCloser) Close() error { return nil }

type redisBackend struct {
	*dal.RedisBackend
	client *redis.Client
}

func (b redisBackend) Close() error { return b.client.Close() }

// openBackend opens the snapshot backend selected by the storage driver.
func openBackend(cfg config.StorageConfig, logger *zap.Logger) (backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := dal.InitDB(cfg.DBPath, logger)
		if err != nil {
			return nil, err
		}
		return dal.NewSQLiteBackend(db), nil
	case config.DriverJSON:
		logger.Info("using JSON data file", zap.String("path", cfg.DataFile))
		return nopCloser{dal.NewJSONFileBackend(cfg.DataFile)}, nil
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		logger.Info("using redis", zap.String("addr", cfg.Redis.Addr), zap.String("key", cfg.Redis.Key))
		return redisBackend{RedisBackend: dal.NewRedisBackend(client, cfg.Redis.Key), client: client}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
