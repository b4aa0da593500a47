package suggest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		suffixes []string
		want     []Suggestion
	}{
		{
			name:     "appends every suffix in order",
			value:    "alice",
			suffixes: DefaultSuffixes,
			want: []Suggestion{
				{"alice@qq.com", "alice@qq.com"},
				{"alice@163.com", "alice@163.com"},
				{"alice@hand-china.com", "alice@hand-china.com"},
			},
		},
		{
			name:     "value containing @ defers to manual input",
			value:    "bob@",
			suffixes: DefaultSuffixes,
			want:     []Suggestion{},
		},
		{
			name:     "@ anywhere suppresses suggestions",
			value:    "a@b",
			suffixes: []string{"@qq.com"},
			want:     []Suggestion{},
		},
		{
			name:     "empty value yields bare suffixes",
			value:    "",
			suffixes: []string{"@qq.com"},
			want:     []Suggestion{{"@qq.com", "@qq.com"}},
		},
		{
			name:     "no suffixes",
			value:    "carol",
			suffixes: nil,
			want:     []Suggestion{},
		},
		{
			name:     "duplicate suffixes are kept",
			value:    "dan",
			suffixes: []string{"@qq.com", "@qq.com"},
			want:     []Suggestion{{"dan@qq.com", "dan@qq.com"}, {"dan@qq.com", "dan@qq.com"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(tt.value, tt.suffixes)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerate_ValueEqualsLabel(t *testing.T) {
	values := []string{"x", "张三", " spaced ", "dot.name", "+tag"}
	for _, v := range values {
		got := Generate(v, DefaultSuffixes)
		require.Len(t, got, len(DefaultSuffixes))
		for i, s := range got {
			assert.Equal(t, s.Value, s.Label)
			assert.Equal(t, v+DefaultSuffixes[i], s.Value)
		}
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	first := Generate("erin", DefaultSuffixes)
	second := Generate("erin", DefaultSuffixes)
	assert.Equal(t, first, second)

	// Mutating a result must not leak into the next call.
	first[0].Value = "changed"
	assert.Equal(t, "erin@qq.com", Generate("erin", DefaultSuffixes)[0].Value)
}

func TestParseEventKind(t *testing.T) {
	k, err := ParseEventKind("input")
	require.NoError(t, err)
	assert.Equal(t, InputChanged, k)

	k, err = ParseEventKind("focus")
	require.NoError(t, err)
	assert.Equal(t, FocusGained, k)

	_, err = ParseEventKind("blur")
	assert.ErrorIs(t, err, ErrUnknownEvent)

	assert.Equal(t, []string{"input", "focus"}, EventNames)
}

func TestEvent_JSON(t *testing.T) {
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(`{"type":"focus","value":"al"}`), &ev))
	assert.Equal(t, Event{Kind: FocusGained, Value: "al"}, ev)

	err := json.Unmarshal([]byte(`{"type":"change","value":"al"}`), &ev)
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

type recordingStore struct {
	loads   [][]Suggestion
	version uint64
}

func (s *recordingStore) LoadData(records []Suggestion) uint64 {
	s.loads = append(s.loads, records)
	s.version++
	return s.version
}

func TestHandler_ReplacesStore(t *testing.T) {
	h := NewHandler(DefaultSuffixes, nil)
	store := &recordingStore{}

	out, err := h.Handle(store, Event{Kind: InputChanged, Value: "alice"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), out.Version)
	assert.Len(t, out.Options, 3)

	out, err = h.Handle(store, Event{Kind: InputChanged, Value: "alice@"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), out.Version)
	assert.Empty(t, out.Options)

	require.Len(t, store.loads, 2)
	assert.Empty(t, store.loads[1], "second event replaces, never appends")
}

func TestHandler_FocusMatchesInput(t *testing.T) {
	h := NewHandler(DefaultSuffixes, nil)

	in, err := h.Handle(&recordingStore{}, Event{Kind: InputChanged, Value: "bo"})
	require.NoError(t, err)
	focus, err := h.Handle(&recordingStore{}, Event{Kind: FocusGained, Value: "bo"})
	require.NoError(t, err)

	assert.Equal(t, in, focus)
}

func TestHandler_RejectsUnknownKind(t *testing.T) {
	store := &recordingStore{}
	_, err := NewHandler(DefaultSuffixes, nil).Handle(store, Event{Kind: 9, Value: "x"})
	assert.ErrorIs(t, err, ErrUnknownEvent)
	assert.Empty(t, store.loads)
}

func TestHandler_SuffixesAreImmutable(t *testing.T) {
	suffixes := []string{"@qq.com"}
	h := NewHandler(suffixes, nil)
	suffixes[0] = "@evil.example"

	got := h.Suffixes()
	got[0] = "@other.example"
	assert.Equal(t, []string{"@qq.com"}, h.Suffixes())
}
