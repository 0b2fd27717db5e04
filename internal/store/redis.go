package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	apperrors "crypto-analyst/internal/errors"
	"crypto-analyst/internal/logging"
)

// RedisOptions configures RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// TTL expires entries on the server. Zero keeps them until deleted.
	TTL time.Duration
}

// RedisStore implements AnalysisStore on Redis. Entries expire by TTL, so
// it needs no pruning.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisStore connects and pings the server.
func NewRedisStore(opts RedisOptions, logger zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  30 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "analysis"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
		logger: logging.WithComponent(logger, "redis_store"),
	}, nil
}

func (r *RedisStore) wrapKey(key Key) string {
	return r.prefix + ":" + key.String()
}

func (r *RedisStore) Get(ctx context.Context, key Key) ([]byte, error) {
	b, err := r.client.Get(ctx, r.wrapKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrDataNotFound
	}
	if err != nil {
		return nil, apperrors.NewStoreError("get", key.String(), err)
	}
	return b, nil
}

func (r *RedisStore) Put(ctx context.Context, key Key, payload []byte) error {
	if err := r.client.Set(ctx, r.wrapKey(key), payload, r.ttl).Err(); err != nil {
		return apperrors.NewStoreError("put", key.String(), err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := r.client.Unlink(ctx, r.wrapKey(key)).Err(); err != nil {
		return apperrors.NewStoreError("delete", key.String(), err)
	}
	return nil
}

// List scans for keys of the given date. SCAN may return a key twice, so
// results are deduplicated.
func (r *RedisStore) List(ctx context.Context, date string) ([]Key, error) {
	pattern := r.prefix + ":*:" + date + ":*"
	seen := make(map[Key]struct{})
	keys := make([]Key, 0)

	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		k, err := ParseKey(strings.TrimPrefix(iter.Val(), r.prefix+":"))
		if err != nil {
			r.logger.Warn().Str("key", iter.Val()).Msg("Skipping foreign key in analysis prefix")
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}

	sortKeys(keys)
	return keys, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
