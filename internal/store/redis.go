package store

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "mathify:web"

// Redis wraps the client shared by the session store and the notice feed.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts and verifies the connection.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{Client: client}, nil
}

// Key namespaces a redis key, e.g. Key("session", sid) -> mathify:web:session:<sid>.
func Key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}

// Healthy reports whether a PING succeeds.
func (r *Redis) Healthy(ctx context.Context) bool {
	return r != nil && r.Client != nil && r.Client.Ping(ctx).Err() == nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
