package dataset

import (
	"fmt"
	"maps"

	"github.com/spf13/cast"
)

// Record is one row of the data source keyed by field name.
type Record map[string]any

// Number reads key as a float64. Numeric strings count as numbers.
func (r Record) Number(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	n, err := toNumber(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// toNumber converts numbers and numeric strings. cast would also turn
// booleans into 0 and 1, which a number field must not accept.
func toNumber(v any) (float64, error) {
	switch v.(type) {
	case bool, []any, map[string]any:
		return 0, fmt.Errorf("unable to cast %#v of type %T to float64", v, v)
	}
	return cast.ToFloat64E(v)
}

// String reads key as a string; a missing key reads as "".
func (r Record) String(key string) string {
	return cast.ToString(r[key])
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	return maps.Clone(r)
}

// Rule is a named predicate over a record, referenced by requiredWhen.
type Rule func(Record) bool

// Rules is a rule registry keyed by name.
type Rules map[string]Rule

// DefaultRules returns the built-in registry:
//
//	adult  record.age > 18
func DefaultRules() Rules {
	return Rules{
		"adult": func(r Record) bool {
			age, ok := r.Number("age")
			return ok && age > 18
		},
	}
}

// With returns a copy of rs with name bound to rule.
func (rs Rules) With(name string, rule Rule) Rules {
	out := maps.Clone(rs)
	if out == nil {
		out = Rules{}
	}
	out[name] = rule
	return out
}

// RequiredFor reports whether field is required for rec, either
// unconditionally or through its requiredWhen rule.
func (c *Config) RequiredFor(f Field, rec Record) bool {
	if f.Required {
		return true
	}
	if f.RequiredWhen == "" {
		return false
	}
	rule, ok := c.rules[f.RequiredWhen]
	return ok && rule(rec)
}
