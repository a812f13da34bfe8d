package db

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"flash-sale/internal/config/configs"
)

// NewRedisClient creates a go-redis client for the reservation store and
// verifies connectivity with a short ping. The caller owns the client's
// lifecycle and must Close it on shutdown.
func NewRedisClient(ctx context.Context, cfg configs.Redis) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctxPing).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
