package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/kube-rca/rca-worker/internal/config"
	"github.com/kube-rca/rca-worker/internal/retry"
)

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// ConnectRedis - 시작 시 PING이 성공할 때까지 재시도 (MaxConnectRetries x ReconnectDelay)
func ConnectRedis(ctx context.Context, rdb *redis.Client, cfg config.RedisConfig) error {
	policy := retry.Fixed(cfg.MaxConnectRetries, cfg.ReconnectDelay)
	err := policy.Do(ctx, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}, func(attempt int, err error, wait time.Duration) {
		log.Printf("[Redis] not reachable (addr=%s, attempt=%d/%d): %v", cfg.Addr, attempt, cfg.MaxConnectRetries, err)
	})
	if err != nil {
		return fmt.Errorf("redis %s unreachable: %w", cfg.Addr, err)
	}
	log.Printf("[Redis] connected (addr=%s)", cfg.Addr)
	return nil
}
