// Package redis wraps go-redis for the optional distributed features.
package redis

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "filestream/"

// DialInfo defines the redis connection information.
type DialInfo struct {
	Addr string
	Pwd  string
	DB   int
}

// NewClient creates a client and checks connectivity.
func NewClient(ctx context.Context, dial DialInfo) (*redis.Client, error) {
	if dial.Addr == "" {
		return nil, errors.New("redis addr is required")
	}

	cli := redis.NewClient(&redis.Options{
		Addr:     dial.Addr,
		Password: dial.Pwd,
		DB:       dial.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pingCtx).Err(); err != nil {
		_ = cli.Close()
		return nil, errors.Wrapf(err, "ping redis %s", dial.Addr)
	}

	return cli, nil
}
