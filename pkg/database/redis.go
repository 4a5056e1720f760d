package database

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ConnectRedis returns a pinged client and a lock client sharing it.
func ConnectRedis(ctx context.Context, addr string, log zerolog.Logger) (*redis.Client, *redislock.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       0,
		PoolSize: 100,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}

	log.Info().Str("addr", addr).Msg("connected to redis")
	return rdb, redislock.New(rdb), nil
}
