package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	redsync_redis "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	Client *redis.Client
	Lock   *redsync.Redsync
}

// NewClient connects to addr (host:port or a redis:// URL) and checks the
// connection before returning.
func NewClient(ctx context.Context, addr string) (*Client, error) {
	opts, err := options(addr)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}

	pool := redsync_redis.NewPool(client)

	return &Client{
		Client: client,
		Lock:   redsync.New(pool),
	}, nil
}

func options(addr string) (*redis.Options, error) {
	if addr == "" {
		return nil, fmt.Errorf("REDIS_URL not defined")
	}

	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
	}

	opts.PoolSize = 20
	opts.MinIdleConns = 5
	opts.DialTimeout = 500 * time.Millisecond
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = time.Second
	return opts, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}
