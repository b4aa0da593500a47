package optionstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/usergrid/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidSession is returned for session ids that are not UUIDs.
var ErrInvalidSession = errors.New("invalid session id")

// ErrTooManySessions is returned when a new session would exceed the
// registry's limit and no idle session can make room.
var ErrTooManySessions = errors.New("too many option sessions")

// DefaultSessionTTL is how long an untouched session survives.
const DefaultSessionTTL = 30 * time.Minute

// DefaultMaxSessions bounds the live sessions of a Registry.
const DefaultMaxSessions = 10000

type entry struct {
	store    *Store
	lastUsed time.Time
}

// Registry maps editor session ids to their Store.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
	max      int
	now      func() time.Time
	logger   *zap.Logger
}

// NewRegistry returns a Registry evicting sessions idle for longer than ttl.
// ttl <= 0 selects DefaultSessionTTL.
func NewRegistry(ttl time.Duration, logger *zap.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		max:      DefaultMaxSessions,
		now:      time.Now,
		logger:   logger,
	}
}

// SetMaxSessions changes the session limit. n <= 0 removes it.
func (r *Registry) SetMaxSessions(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.max = n
}

// SessionID returns the canonical form of id, or a fresh id when id is
// empty. No store is allocated; Session creates it on first use.
func (r *Registry) SessionID(id string) (string, error) {
	if id == "" {
		return uuid.NewString(), nil
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidSession, id)
	}
	return parsed.String(), nil
}

// Session returns the store for id, creating it when absent. An empty id
// allocates a fresh session. The canonical id is returned alongside. At
// the limit the least recently used session without subscribers is
// evicted to make room.
func (r *Registry) Session(id string) (string, *Store, error) {
	id, err := r.SessionID(id)
	if err != nil {
		return "", nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		if r.max > 0 && len(r.sessions) >= r.max && !r.evictOldestLocked() {
			r.logger.Warn("option session limit reached", zap.Int("limit", r.max))
			return "", nil, ErrTooManySessions
		}
		e = &entry{store: New()}
		r.sessions[id] = e
		metrics.SetOptionSessions(len(r.sessions))
		r.logger.Debug("option session created", zap.String("session", id))
	}
	e.lastUsed = r.now()
	return id, e.store, nil
}

func (r *Registry) evictOldestLocked() bool {
	var oldestID string
	var oldest *entry
	for id, e := range r.sessions {
		if e.store.Subscribers() > 0 {
			continue
		}
		if oldest == nil || e.lastUsed.Before(oldest.lastUsed) {
			oldestID, oldest = id, e
		}
	}
	if oldest == nil {
		return false
	}
	oldest.store.Close()
	delete(r.sessions, oldestID)
	r.logger.Debug("option session evicted for room", zap.String("session", oldestID))
	return true
}

// Lookup returns the store for an existing session without creating one.
func (r *Registry) Lookup(id string) (*Store, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[parsed.String()]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.store, true
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle past the TTL that have no open subscriptions
// and returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	evicted := 0
	for id, e := range r.sessions {
		if e.lastUsed.After(cutoff) || e.store.Subscribers() > 0 {
			continue
		}
		e.store.Close()
		delete(r.sessions, id)
		evicted++
	}
	if evicted > 0 {
		metrics.SetOptionSessions(len(r.sessions))
		r.logger.Debug("option sessions evicted", zap.Int("evicted", evicted), zap.Int("remaining", len(r.sessions)))
	}
	return evicted
}

// Run sweeps every interval until ctx is done, then closes all sessions.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.ttl / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.sessions {
		e.store.Close()
		delete(r.sessions, id)
	}
	metrics.SetOptionSessions(0)
}
