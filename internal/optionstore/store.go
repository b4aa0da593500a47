// Package optionstore holds the option lists the email editor renders.
//
// A Store is the editor's data source: every suggestion event replaces its
// contents wholesale and subscribers are told about the new snapshot. A
// Registry keeps one Store per editor session.
package optionstore

import (
	"slices"
	"sync"

	"github.com/dalemusser/usergrid/internal/suggest"
)

// Snapshot is the content of a Store at one version.
type Snapshot struct {
	Version uint64               `json:"version"`
	Options []suggest.Suggestion `json:"options"`
}

// Store is a full-replace container of suggestions. Writers are serialized;
// the last write wins. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	version uint64
	records []suggest.Suggestion
	subs    map[int]chan Snapshot
	nextSub int
	closed  bool
}

// New returns an empty Store at version 0.
func New() *Store {
	return &Store{records: []suggest.Suggestion{}, subs: make(map[int]chan Snapshot)}
}

// LoadData replaces the store's contents with records, bumps the version
// and notifies subscribers. It returns the new version.
func (s *Store) LoadData(records []suggest.Suggestion) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = slices.Clone(records)
	if s.records == nil {
		s.records = []suggest.Suggestion{}
	}
	s.version++

	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		offer(ch, snap)
	}
	return s.version
}

// Records returns a copy of the current contents.
func (s *Store) Records() []suggest.Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

// Version returns the number of loads performed so far.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Snapshot returns the current version and a copy of the contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{Version: s.version, Options: slices.Clone(s.records)}
}

// Subscribe returns a channel that receives a Snapshot after every load.
// A subscriber that falls behind only ever sees the latest snapshot. The
// channel is closed by cancel or when the store is closed.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Subscribers reports how many subscriptions are open.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close closes every subscription. Later loads still succeed but notify nobody.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// offer delivers snap without blocking, replacing an undelivered older
// snapshot. Callers hold the store lock, so they are the only sender.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
