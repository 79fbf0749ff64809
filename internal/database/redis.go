package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tradescan/perpsignal/internal/config"
)

// RedisClient wraps the connection backing the ranked-list store.
type RedisClient struct {
	Client *redis.Client
}

// NewRedisConnection opens and verifies the client; ranked-list change
// detection depends on it, so startup fails fast when it is down.
func NewRedisConnection(cfg config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ranked-list store unreachable: %w", err)
	}

	logrus.WithField("addr", rdb.Options().Addr).Info("ranked-list store connected")

	return &RedisClient{Client: rdb}, nil
}

func (r *RedisClient) Close() {
	if r.Client != nil {
		r.Client.Close()
		logrus.Info("ranked-list store closed")
	}
}

// HealthCheck pings the client, used by the /health endpoint.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}
