// Package cache is a small byte cache with memory and Redis backends.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Cache stores byte values with an optional TTL. ttl <= 0 never expires.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	ErrNotFound = errors.New("cache: key not found")
	ErrClosed   = errors.New("cache: cache is closed")
)

// GetOrSetJSON returns the JSON value cached under key, computing and
// storing it on a miss. hit reports whether compute was skipped.
func GetOrSetJSON[T any](ctx context.Context, c Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (result T, hit bool, err error) {
	data, err := c.Get(ctx, key)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &result); err == nil {
			return result, true, nil
		}
		// A value that no longer decodes is treated as a miss.
	case !errors.Is(err, ErrNotFound):
		return result, false, err
	}

	result, err = compute(ctx)
	if err != nil {
		return result, false, err
	}
	data, err = json.Marshal(result)
	if err != nil {
		return result, false, err
	}
	if err := c.Set(ctx, key, data, ttl); err != nil {
		return result, false, err
	}
	return result, false, nil
}
