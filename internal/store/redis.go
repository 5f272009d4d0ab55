package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend persists blobs in Redis under a key prefix. It is the
// low-latency alternative to RecordBackend for deployments that run
// Redis next to the bot.
type RedisBackend struct {
	Client *redis.Client
	Prefix string        // e.g. "session:"
	TTL    time.Duration // 0 = no expiry
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(url, prefix string, ttl time.Duration) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.MaxRetries = 3

	c := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisBackend{Client: c, Prefix: prefix, TTL: ttl}, nil
}

// Load reads the blob for key. A missing key is not an error.
func (b *RedisBackend) Load(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := b.Client.Get(ctx, b.Prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Save writes the blob for key with the configured TTL.
func (b *RedisBackend) Save(ctx context.Context, key string, data []byte) error {
	return b.Client.Set(ctx, b.Prefix+key, data, b.TTL).Err()
}

// Delete removes the blob for key.
func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.Client.Del(ctx, b.Prefix+key).Err()
}

// Close releases the underlying connection.
func (b *RedisBackend) Close() error {
	return b.Client.Close()
}
