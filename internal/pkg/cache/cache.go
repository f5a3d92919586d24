package cache

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/CoachDesk/internal/pkg/config"
)

// NewClient connects to the Redis compatible cache. The client is returned
// even when the ping fails so callers can decide how to degrade.
func NewClient(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	pong, err := client.Ping(pingCtx).Result()
	if err != nil {
		log.Warnf("[Cache] Could not connect to %s: %v", cfg.Addr(), err)
		return client, err
	}
	log.Infof("[Cache] Connected to %s: %s", cfg.Addr(), pong)
	return client, nil
}
