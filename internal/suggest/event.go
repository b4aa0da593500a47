package suggest

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dalemusser/usergrid/metrics"
	"go.uber.org/zap"
)

// ErrUnknownEvent is returned when an event name is neither "input" nor "focus".
var ErrUnknownEvent = errors.New("unknown suggestion event")

// EventKind identifies what the editor reported.
type EventKind int

const (
	// InputChanged fires on every keystroke.
	InputChanged EventKind = iota + 1
	// FocusGained fires when the editor receives focus.
	FocusGained
)

// EventNames lists the wire names of all event kinds, in declaration order.
var EventNames = []string{InputChanged.String(), FocusGained.String()}

func (k EventKind) String() string {
	switch k {
	case InputChanged:
		return "input"
	case FocusGained:
		return "focus"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// ParseEventKind maps a wire name to its EventKind.
func ParseEventKind(name string) (EventKind, error) {
	switch name {
	case "input":
		return InputChanged, nil
	case "focus":
		return FocusGained, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}

func (k EventKind) MarshalText() ([]byte, error) {
	if k != InputChanged && k != FocusGained {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEvent, int(k))
	}
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(text []byte) error {
	parsed, err := ParseEventKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Event is an editor notification carrying the editor's current text.
type Event struct {
	Kind  EventKind `json:"type"`
	Value string    `json:"value"`
}

// Store receives a full replacement of the option list and reports the
// version it assigned to it.
type Store interface {
	LoadData(records []Suggestion) uint64
}

// Outcome is what Handle wrote to the store.
type Outcome struct {
	Version uint64       `json:"version"`
	Options []Suggestion `json:"options"`
}

// Handler turns editor events into store replacements. It holds the
// domain suffix set, which is copied at construction and never changes.
type Handler struct {
	suffixes []string
	logger   *zap.Logger
}

// NewHandler returns a Handler for suffixes. A nil logger disables logging.
func NewHandler(suffixes []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{suffixes: slices.Clone(suffixes), logger: logger}
}

// Suffixes returns a copy of the configured suffix set.
func (h *Handler) Suffixes() []string {
	return slices.Clone(h.suffixes)
}

// Handle recomputes the option list for ev and replaces store's contents
// with it. Input and focus events are handled the same way.
func (h *Handler) Handle(store Store, ev Event) (Outcome, error) {
	if ev.Kind != InputChanged && ev.Kind != FocusGained {
		return Outcome{}, fmt.Errorf("%w: %d", ErrUnknownEvent, int(ev.Kind))
	}

	options := Generate(ev.Value, h.suffixes)
	version := store.LoadData(options)
	metrics.ObserveSuggestion(ev.Kind.String(), len(options))

	h.logger.Debug("suggestions replaced",
		zap.Stringer("event", ev.Kind),
		zap.Int("options", len(options)),
		zap.Uint64("version", version),
	)
	return Outcome{Version: version, Options: options}, nil
}
