// Package store persists analysis results keyed by symbol, calendar date
// and analysis type.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"crypto-analyst/internal/config"
	apperrors "crypto-analyst/internal/errors"
)

// Key identifies one stored analysis.
type Key struct {
	Symbol string
	Date   string // YYYY-MM-DD in the configured reference timezone
	Type   string
}

func (k Key) String() string {
	return k.Symbol + ":" + k.Date + ":" + k.Type
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Key{}, fmt.Errorf("malformed analysis key %q", s)
	}
	return Key{Symbol: parts[0], Date: parts[1], Type: parts[2]}, nil
}

// AnalysisStore holds encoded AnalysisResult payloads. Payloads are stored
// and returned byte for byte; Put replaces any existing value for the key.
type AnalysisStore interface {
	// Get returns apperrors.ErrDataNotFound when the key has no value.
	Get(ctx context.Context, key Key) ([]byte, error)
	Put(ctx context.Context, key Key, payload []byte) error
	Delete(ctx context.Context, key Key) error
	// List returns the keys stored for date, sorted by symbol then type.
	List(ctx context.Context, date string) ([]Key, error)
	Close() error
}

// Pruner is implemented by stores that do not expire entries on their own.
type Pruner interface {
	// Prune deletes entries dated before date and reports how many went.
	Prune(ctx context.Context, before string) (int64, error)
}

// New opens the configured backend.
func New(cfg config.CacheConfig, redisPassword string, logger zerolog.Logger) (AnalysisStore, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	case "redis":
		return NewRedisStore(RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: redisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
			TTL:      cfg.TTL,
		}, logger)
	}
	return nil, fmt.Errorf("%w: unknown cache backend %q", apperrors.ErrConfigInvalid, cfg.Backend)
}
