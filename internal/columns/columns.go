// Package columns describes the grid's columns and the editor each one uses.
package columns

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/dalemusser/usergrid/internal/dataset"
	"github.com/dalemusser/usergrid/internal/suggest"
)

// EmailAutocomplete is the factory name of the email suggestion editor.
const EmailAutocomplete = "email-autocomplete"

// ErrUnknownFactory is returned for editor factory names with no registration.
var ErrUnknownFactory = errors.New("unknown editor factory")

// Editor is either a flag (use the field type's default editor, or none)
// or the name of a registered editor factory.
type Editor struct {
	Enabled bool
	Factory string
}

// DefaultEditor enables the type's default editor.
var DefaultEditor = Editor{Enabled: true}

// FactoryEditor selects a named factory.
func FactoryEditor(name string) Editor { return Editor{Enabled: true, Factory: name} }

// MarshalJSON encodes a flag editor as a bool and a factory editor as its name.
func (e Editor) MarshalJSON() ([]byte, error) {
	if e.Factory != "" {
		return json.Marshal(e.Factory)
	}
	return json.Marshal(e.Enabled)
}

func (e *Editor) UnmarshalJSON(data []byte) error {
	var flag bool
	if err := json.Unmarshal(data, &flag); err == nil {
		*e = Editor{Enabled: flag}
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("editor must be a bool or a factory name: %w", err)
	}
	*e = FactoryEditor(name)
	return nil
}

// Column is one grid column.
type Column struct {
	Name   string `json:"name"`
	Editor Editor `json:"editor"`
}

// Default returns the user grid's columns in display order.
func Default() []Column {
	return []Column{
		{Name: "name", Editor: DefaultEditor},
		{Name: "age", Editor: DefaultEditor},
		{Name: "sex", Editor: DefaultEditor},
		{Name: "email", Editor: FactoryEditor(EmailAutocomplete)},
		{Name: "code", Editor: DefaultEditor},
		{Name: "startDate", Editor: DefaultEditor},
		{Name: "active", Editor: DefaultEditor},
	}
}

// Binding is what a factory hands the grid for one editor instance.
type Binding struct {
	Component  string   `json:"component"`
	Session    string   `json:"session,omitempty"`
	Events     []string `json:"events,omitempty"`
	OptionsURL string   `json:"optionsUrl,omitempty"`
	EventsURL  string   `json:"eventsUrl,omitempty"`
	StreamURL  string   `json:"streamUrl,omitempty"`
	SocketURL  string   `json:"socketUrl,omitempty"`
}

// BindContext carries what a factory may need to build a binding.
type BindContext struct {
	Field   dataset.Field
	Session string
}

// Factory builds an editor binding for a column.
type Factory func(BindContext) (Binding, error)

// Registry maps factory names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds or replaces the factory called name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Names lists registered factory names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Bind runs the factory called name.
func (r *Registry) Bind(name string, bc BindContext) (Binding, error) {
	f, ok := r.factories[name]
	if !ok {
		return Binding{}, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownFactory, name, strings.Join(r.Names(), ", "))
	}
	return f(bc)
}

// SessionFunc allocates or validates an option session id.
type SessionFunc func(id string) (string, error)

// EmailAutocompleteFactory binds the email editor to an option session.
// The editor reports input and focus events to eventsURL and reads its
// options from the session's store through the other endpoints.
func EmailAutocompleteFactory(base string, session SessionFunc) Factory {
	return func(bc BindContext) (Binding, error) {
		id, err := session(bc.Session)
		if err != nil {
			return Binding{}, err
		}
		q := "?session=" + id
		return Binding{
			Component:  "AutoComplete",
			Session:    id,
			Events:     slices.Clone(suggest.EventNames),
			OptionsURL: base + q,
			EventsURL:  base + "/events",
			StreamURL:  base + "/stream" + q,
			SocketURL:  base + "/ws" + q,
		}, nil
	}
}

// Resolved is a column with its field metadata and, for factory editors,
// its binding.
type Resolved struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Type    string   `json:"type"`
	Editor  Editor   `json:"editor"`
	Binding *Binding `json:"binding,omitempty"`
}

// Resolve joins cols with the dataset fields and binds every factory
// editor. Columns that name no field are an error.
func (r *Registry) Resolve(cols []Column, cfg *dataset.Config, labels map[string]string, session string) ([]Resolved, error) {
	out := make([]Resolved, 0, len(cols))
	for _, c := range cols {
		f, ok := cfg.Field(c.Name)
		if !ok {
			return nil, fmt.Errorf("column %q: no such field in dataset %q", c.Name, cfg.Name)
		}
		res := Resolved{Name: c.Name, Label: labels[c.Name], Type: f.Type, Editor: c.Editor}
		if c.Editor.Factory != "" {
			b, err := r.Bind(c.Editor.Factory, BindContext{Field: f, Session: session})
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", c.Name, err)
			}
			res.Binding = &b
		}
		out = append(out, res)
	}
	return out, nil
}
