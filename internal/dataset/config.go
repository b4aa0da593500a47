// Package dataset describes the user grid's data source: its fields, query
// fields and transport, the rules that validate records, and a client-side
// mirror (DataSet) of the records a grid holds between loads and submits.
package dataset

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed user.yaml
var defaultUserYAML []byte

// Field types understood by the grid.
const (
	TypeNumber  = "number"
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeDate    = "date"
)

// dataToJSON modes.
const (
	SubmitDirty = "dirty"
	SubmitAll   = "all"
)

var (
	// ErrUnknownRule is returned when a field names a requiredWhen rule
	// that is not registered.
	ErrUnknownRule = errors.New("unknown rule")
	// ErrInvalidConfig wraps every other schema problem.
	ErrInvalidConfig = errors.New("invalid dataset config")
)

// knownFormats are the validator tags a string field may name as format.
var knownFormats = map[string]bool{
	"email":    true,
	"url":      true,
	"uuid":     true,
	"e164":     true,
	"hostname": true,
	"alphanum": true,
	"numeric":  true,
}

// Field describes one column of the data source.
type Field struct {
	Name         string   `yaml:"name"`
	Type         string   `yaml:"type"`
	Label        Text     `yaml:"label,omitempty"`
	Help         Text     `yaml:"help,omitempty"`
	Unique       bool     `yaml:"unique,omitempty"`
	Required     bool     `yaml:"required,omitempty"`
	RequiredWhen string   `yaml:"requiredWhen,omitempty"`
	Format       string   `yaml:"format,omitempty"`
	Min          *float64 `yaml:"min,omitempty"`
	Max          *float64 `yaml:"max,omitempty"`
	Step         *float64 `yaml:"step,omitempty"`
	Sortable     bool     `yaml:"sortable,omitempty"`
	LookupURL    string   `yaml:"lookupUrl,omitempty"`
}

// Request is one transport endpoint.
type Request struct {
	URL    string `yaml:"url" json:"url"`
	Method string `yaml:"method" json:"method"`
}

// Transport holds the endpoints the grid talks to.
type Transport struct {
	Read   Request  `yaml:"read" json:"read"`
	Submit *Request `yaml:"submit,omitempty" json:"submit,omitempty"`
}

// Config is a parsed dataset definition bound to a rule registry.
type Config struct {
	Name        string    `yaml:"name"`
	PrimaryKey  string    `yaml:"primaryKey"`
	DataKey     string    `yaml:"dataKey"`
	PageSize    int       `yaml:"pageSize"`
	AutoQuery   bool      `yaml:"autoQuery"`
	DataToJSON  string    `yaml:"dataToJSON"`
	Transport   Transport `yaml:"transport"`
	Fields      []Field   `yaml:"fields"`
	QueryFields []Field   `yaml:"queryFields"`

	rules Rules
}

// Default returns the built-in user dataset bound to DefaultRules.
func Default() (*Config, error) {
	return Parse(defaultUserYAML, DefaultRules())
}

// DefaultYAML returns the raw built-in definition.
func DefaultYAML() []byte {
	return slices.Clone(defaultUserYAML)
}

// Load reads a dataset definition from path. An empty path loads Default.
func Load(path string, rules Rules) (*Config, error) {
	if path == "" {
		return Parse(defaultUserYAML, rules)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	cfg, err := Parse(data, rules)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and checks a YAML dataset definition. Unknown keys are
// rejected; every requiredWhen must name a rule in rules.
func Parse(data []byte, rules Rules) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if rules == nil {
		rules = DefaultRules()
	}
	cfg.rules = rules

	cfg.applyDefaults()
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataKey == "" {
		c.DataKey = "rows"
	}
	if c.PageSize <= 0 {
		c.PageSize = 10
	}
	if c.DataToJSON == "" {
		c.DataToJSON = SubmitDirty
	}
	if c.Transport.Read.Method == "" {
		c.Transport.Read.Method = "GET"
	}
	if c.Transport.Submit != nil && c.Transport.Submit.Method == "" {
		c.Transport.Submit.Method = "POST"
	}
}

func (c *Config) check() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if c.DataToJSON != SubmitDirty && c.DataToJSON != SubmitAll {
		return fmt.Errorf("%w: dataToJSON must be %q or %q, got %q", ErrInvalidConfig, SubmitDirty, SubmitAll, c.DataToJSON)
	}
	if c.Transport.Read.URL == "" {
		return fmt.Errorf("%w: transport.read.url is required", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		if err := c.checkField(f); err != nil {
			return err
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidConfig, f.Name)
		}
		seen[f.Name] = true
	}
	if c.PrimaryKey != "" && !seen[c.PrimaryKey] {
		return fmt.Errorf("%w: primaryKey %q is not a field", ErrInvalidConfig, c.PrimaryKey)
	}
	for _, f := range c.QueryFields {
		if err := c.checkField(f); err != nil {
			return fmt.Errorf("queryFields: %w", err)
		}
	}
	return nil
}

func (c *Config) checkField(f Field) error {
	if f.Name == "" {
		return fmt.Errorf("%w: field without name", ErrInvalidConfig)
	}
	switch f.Type {
	case TypeNumber, TypeString, TypeBoolean, TypeDate:
	default:
		return fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidConfig, f.Name, f.Type)
	}
	if f.RequiredWhen != "" {
		if _, ok := c.rules[f.RequiredWhen]; !ok {
			return fmt.Errorf("field %q: %w %q", f.Name, ErrUnknownRule, f.RequiredWhen)
		}
	}
	if f.Format != "" && !knownFormats[f.Format] {
		return fmt.Errorf("%w: field %q has unknown format %q", ErrInvalidConfig, f.Name, f.Format)
	}
	if f.Format != "" && f.Type != TypeString {
		return fmt.Errorf("%w: field %q: format applies to strings only", ErrInvalidConfig, f.Name)
	}
	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		return fmt.Errorf("%w: field %q has min > max", ErrInvalidConfig, f.Name)
	}
	if f.Step != nil && *f.Step <= 0 {
		return fmt.Errorf("%w: field %q has non-positive step", ErrInvalidConfig, f.Name)
	}
	return nil
}

// Field returns the field called name.
func (c *Config) Field(name string) (Field, bool) {
	i := slices.IndexFunc(c.Fields, func(f Field) bool { return f.Name == name })
	if i < 0 {
		return Field{}, false
	}
	return c.Fields[i], true
}

// QueryField returns the query field called name.
func (c *Config) QueryField(name string) (Field, bool) {
	i := slices.IndexFunc(c.QueryFields, func(f Field) bool { return f.Name == name })
	if i < 0 {
		return Field{}, false
	}
	return c.QueryFields[i], true
}

// FieldNames lists field names in declaration order.
func (c *Config) FieldNames() []string {
	names := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		names[i] = f.Name
	}
	return names
}

// SortableFields lists the fields a query may sort by.
func (c *Config) SortableFields() []string {
	var names []string
	for _, f := range c.Fields {
		if f.Sortable {
			names = append(names, f.Name)
		}
	}
	return names
}
