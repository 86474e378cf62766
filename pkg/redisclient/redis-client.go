package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultDialTimeout = 5 * time.Second

type Config struct {
	Host        string
	Port        int
	Password    string
	DB          int
	DialTimeout time.Duration
}

// NewRedisClient connects and pings the server, so a misconfigured address fails at startup.
func NewRedisClient(ctx context.Context, cfg *Config) (*redis.Client, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	r := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	if err := r.Ping(ctx).Err(); err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}

	return r, nil
}
