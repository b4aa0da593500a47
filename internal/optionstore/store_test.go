package optionstore

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/usergrid/internal/suggest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opts(values ...string) []suggest.Suggestion {
	out := make([]suggest.Suggestion, 0, len(values))
	for _, v := range values {
		out = append(out, suggest.Suggestion{Value: v, Label: v})
	}
	return out
}

func TestStore_LoadDataReplaces(t *testing.T) {
	s := New()
	assert.Empty(t, s.Records())
	assert.Equal(t, uint64(0), s.Version())

	v := s.LoadData(opts("a@qq.com", "a@163.com"))
	assert.Equal(t, uint64(1), v)
	assert.Equal(t, opts("a@qq.com", "a@163.com"), s.Records())

	v = s.LoadData(nil)
	assert.Equal(t, uint64(2), v)
	got := s.Records()
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStore_RecordsAreCopies(t *testing.T) {
	s := New()
	in := opts("x@qq.com")
	s.LoadData(in)
	in[0].Value = "mutated"

	out := s.Records()
	out[0].Label = "mutated"
	assert.Equal(t, opts("x@qq.com"), s.Records())
}

func TestStore_Subscribe(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe()
	defer cancel()

	s.LoadData(opts("a@qq.com"))
	snap := <-ch
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, opts("a@qq.com"), snap.Options)
}

func TestStore_SlowSubscriberSeesLatest(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe()
	defer cancel()

	s.LoadData(opts("a"))
	s.LoadData(opts("ab"))
	s.LoadData(opts("abc"))

	snap := <-ch
	assert.Equal(t, uint64(3), snap.Version)
	assert.Equal(t, opts("abc"), snap.Options)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected stale snapshot %+v", extra)
	default:
	}
}

func TestStore_CancelAndClose(t *testing.T) {
	s := New()
	ch1, cancel1 := s.Subscribe()
	ch2, _ := s.Subscribe()
	assert.Equal(t, 2, s.Subscribers())

	cancel1()
	cancel1()
	_, ok := <-ch1
	assert.False(t, ok)
	assert.Equal(t, 1, s.Subscribers())

	s.Close()
	_, ok = <-ch2
	assert.False(t, ok)

	ch3, cancel3 := s.Subscribe()
	defer cancel3()
	_, ok = <-ch3
	assert.False(t, ok, "subscribing to a closed store yields a closed channel")

	assert.Equal(t, uint64(1), s.LoadData(opts("still works")))
}

func TestStore_ConcurrentWritersLastWriteWins(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.LoadData(suggest.Generate(string(rune('a'+i%26)), suggest.DefaultSuffixes))
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(50), s.Version())
	assert.Len(t, s.Records(), len(suggest.DefaultSuffixes), "every write is a full replacement")
}

func TestStore_ImplementsSuggestStore(t *testing.T) {
	s := New()
	h := suggest.NewHandler(suggest.DefaultSuffixes, nil)

	out, err := h.Handle(s, suggest.Event{Kind: suggest.FocusGained, Value: "alice"})
	require.NoError(t, err)
	assert.Equal(t, s.Snapshot(), Snapshot{Version: out.Version, Options: out.Options})
}

func TestRegistry_Session(t *testing.T) {
	r := NewRegistry(time.Minute, nil)

	id, s1, err := r.Session("")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	again, s2, err := r.Session(id)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Same(t, s1, s2)

	_, _, err = r.Session("not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidSession)

	got, ok := r.Lookup(id)
	assert.True(t, ok)
	assert.Same(t, s1, got)

	_, ok = r.Lookup("00000000-0000-0000-0000-000000000001")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Sweep(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(10*time.Minute, nil)
	r.now = func() time.Time { return now }

	idle, _, err := r.Session("")
	require.NoError(t, err)
	_, watched, err := r.Session("")
	require.NoError(t, err)
	_, cancel := watched.Subscribe()
	defer cancel()

	now = now.Add(5 * time.Minute)
	fresh, _, err := r.Session("")
	require.NoError(t, err)

	now = now.Add(6 * time.Minute)
	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 2, r.Len())

	_, ok := r.Lookup(idle)
	assert.False(t, ok, "idle session evicted")
	_, ok = r.Lookup(fresh)
	assert.True(t, ok)
}

func TestRegistry_SessionIDDoesNotAllocate(t *testing.T) {
	r := NewRegistry(time.Minute, nil)

	id, err := r.SessionID("")
	require.NoError(t, err)
	_, ok := r.Lookup(id)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	upper, err := r.SessionID(strings.ToUpper(id))
	require.NoError(t, err)
	assert.Equal(t, id, upper)

	_, err = r.SessionID("nope")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRegistry_MaxSessions(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(time.Hour, nil)
	r.now = func() time.Time { now = now.Add(time.Second); return now }
	r.SetMaxSessions(2)

	oldest, _, err := r.Session("")
	require.NoError(t, err)
	_, watched, err := r.Session("")
	require.NoError(t, err)
	_, cancel := watched.Subscribe()
	defer cancel()

	third, _, err := r.Session("")
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	_, ok := r.Lookup(oldest)
	assert.False(t, ok, "least recently used idle session evicted")

	_, s, err := r.Session(third)
	require.NoError(t, err)
	_, cancel2 := s.Subscribe()
	defer cancel2()

	_, _, err = r.Session("")
	assert.ErrorIs(t, err, ErrTooManySessions)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_RunClosesOnCancel(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	_, s, err := r.Session("")
	require.NoError(t, err)
	ch, _ := s.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}
