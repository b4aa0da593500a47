// Package lookup serves code lists ("lookups") such as EMPLOYEE_GENDER that
// grid fields resolve through their lookupUrl.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/dalemusser/usergrid/internal/cache"
	"go.uber.org/zap"
)

// ErrUnknownCode is returned for code names with no list.
var ErrUnknownCode = errors.New("unknown lookup code")

// Value is one entry of a code list.
type Value struct {
	Value   string `json:"value"`
	Meaning string `json:"meaning"`
}

// Provider resolves a code name to its values.
type Provider interface {
	Values(ctx context.Context, code string) ([]Value, error)
}

// Static is a Provider over a fixed map.
type Static map[string][]Value

// DefaultCodes returns the built-in code lists.
func DefaultCodes() Static {
	return Static{
		"EMPLOYEE_GENDER": {
			{Value: "M", Meaning: "男"},
			{Value: "F", Meaning: "女"},
		},
	}
}

func (s Static) Values(_ context.Context, code string) ([]Value, error) {
	vals, ok := s[code]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCode, code)
	}
	return slices.Clone(vals), nil
}

// Codes lists the code names in sorted order.
func (s Static) Codes() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Cached fronts a Provider with a cache. Cache failures are logged and
// fall through to the provider.
type Cached struct {
	next   Provider
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCached wraps next. ttl <= 0 caches forever.
func NewCached(next Provider, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, cache: c, ttl: ttl, logger: logger}
}

func (c *Cached) Values(ctx context.Context, code string) ([]Value, error) {
	vals, hit, err := cache.GetOrSetJSON(ctx, c.cache, "lookup:"+code, c.ttl, func(ctx context.Context) ([]Value, error) {
		return c.next.Values(ctx, code)
	})
	switch {
	case err == nil:
		c.logger.Debug("lookup resolved", zap.String("code", code), zap.Bool("cache_hit", hit))
		return vals, nil
	case errors.Is(err, ErrUnknownCode):
		return nil, err
	default:
		c.logger.Warn("lookup cache unavailable; reading provider", zap.String("code", code), zap.Error(err))
		return c.next.Values(ctx, code)
	}
}

// Invalidate drops the cached list for code.
func (c *Cached) Invalidate(ctx context.Context, code string) error {
	return c.cache.Delete(ctx, "lookup:"+code)
}
