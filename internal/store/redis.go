package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/shokuba/honne/pkg/config"
	"github.com/shokuba/honne/pkg/logging"
)

// newRedisClient connects the change-event transport. A disabled config
// yields a nil client and the gateway runs without subscriptions.
func newRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg == nil || !cfg.Enabled {
		logging.GetLogger().Info("Redis event transport disabled, live updates unavailable")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetLogger().Info("Redis connection established")

	return client, nil
}
