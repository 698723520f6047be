package sessionstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	auth "github.com/goliatone/go-auth-frontend"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "authweb:session"

// RedisOptions configures NewRedisClient.
type RedisOptions struct {
	Addr       string
	Password   string
	DB         int
	TLSEnabled bool
}

// NewRedisClient opens a pooled client and pings it once.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	options := &redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,

		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
	}

	if opts.TLSEnabled {
		options.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// RedisBackend stores each session as a JSON string under prefix:id. Every
// Save resets the key TTL.
type RedisBackend struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

var _ auth.SessionBackend = (*RedisBackend)(nil)

func NewRedisBackend(client redis.Cmdable, keyPrefix string, ttl time.Duration) *RedisBackend {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRedisPrefix
	}

	return &RedisBackend{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (r *RedisBackend) Load(ctx context.Context, id string) (auth.SessionState, bool, error) {
	payload, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return auth.SessionState{}, false, nil
	}
	if err != nil {
		return auth.SessionState{}, false, fmt.Errorf("redis get session: %w", err)
	}
	return decodeFound(payload)
}

func (r *RedisBackend) Save(ctx context.Context, id string, state auth.SessionState) error {
	payload, err := Encode(state, r.now())
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(id), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

func (r *RedisBackend) key(id string) string {
	return r.prefix + ":" + id
}
