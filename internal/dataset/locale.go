package dataset

import (
	"maps"
	"slices"

	"golang.org/x/text/language"
)

// Supported locales. The first is the fallback.
var supported = []language.Tag{language.MustParse("zh-CN"), language.English}

var matcher = language.NewMatcher(supported)

// Text is a string translated per locale, keyed by BCP 47 tag.
type Text map[string]string

// In returns the translation best matching tag: the exact tag, then the
// same base language, then the supported locales in order, then the first
// key in sorted order.
func (t Text) In(tag language.Tag) string {
	if len(t) == 0 {
		return ""
	}
	if s, ok := t[tag.String()]; ok {
		return s
	}
	keys := slices.Sorted(maps.Keys(t))
	base, _ := tag.Base()
	for _, k := range keys {
		if kb, _ := language.Make(k).Base(); kb == base {
			return t[k]
		}
	}
	for _, st := range supported {
		if s, ok := t[st.String()]; ok {
			return s
		}
	}
	return t[keys[0]]
}

// Negotiate picks a supported locale from an Accept-Language header or a
// bare tag such as "en". Unparseable input yields fallback.
func Negotiate(accept string, fallback language.Tag) language.Tag {
	if accept == "" {
		return fallback
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return fallback
	}
	return supported[idx]
}

// ParseLocale parses a configured locale, defaulting to zh-CN.
func ParseLocale(s string) language.Tag {
	if s == "" {
		return supported[0]
	}
	tag, err := language.Parse(s)
	if err != nil {
		return supported[0]
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return supported[0]
	}
	return supported[idx]
}

// FieldSpec is a Field with its texts resolved to one locale.
type FieldSpec struct {
	Name         string   `json:"name" yaml:"name"`
	Type         string   `json:"type" yaml:"type"`
	Label        string   `json:"label,omitempty" yaml:"label,omitempty"`
	Help         string   `json:"help,omitempty" yaml:"help,omitempty"`
	Unique       bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
	Required     bool     `json:"required,omitempty" yaml:"required,omitempty"`
	RequiredWhen string   `json:"requiredWhen,omitempty" yaml:"requiredWhen,omitempty"`
	Format       string   `json:"format,omitempty" yaml:"format,omitempty"`
	Min          *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max          *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Step         *float64 `json:"step,omitempty" yaml:"step,omitempty"`
	Sortable     bool     `json:"sortable,omitempty" yaml:"sortable,omitempty"`
	LookupURL    string   `json:"lookupUrl,omitempty" yaml:"lookupUrl,omitempty"`
}

// Spec is the dataset definition as served to a grid in one locale.
type Spec struct {
	Name        string      `json:"name" yaml:"name"`
	Locale      string      `json:"locale" yaml:"locale"`
	PrimaryKey  string      `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty"`
	DataKey     string      `json:"dataKey" yaml:"dataKey"`
	PageSize    int         `json:"pageSize" yaml:"pageSize"`
	AutoQuery   bool        `json:"autoQuery" yaml:"autoQuery"`
	DataToJSON  string      `json:"dataToJSON" yaml:"dataToJSON"`
	Transport   Transport   `json:"transport" yaml:"transport"`
	Fields      []FieldSpec `json:"fields" yaml:"fields"`
	QueryFields []FieldSpec `json:"queryFields" yaml:"queryFields"`
}

// Localize resolves every label and help text to tag.
func (c *Config) Localize(tag language.Tag) Spec {
	return Spec{
		Name:        c.Name,
		Locale:      tag.String(),
		PrimaryKey:  c.PrimaryKey,
		DataKey:     c.DataKey,
		PageSize:    c.PageSize,
		AutoQuery:   c.AutoQuery,
		DataToJSON:  c.DataToJSON,
		Transport:   c.Transport,
		Fields:      localizeFields(c.Fields, tag),
		QueryFields: localizeFields(c.QueryFields, tag),
	}
}

// Labels maps field names to their label in tag; unlabeled fields map to
// their name.
func (c *Config) Labels(tag language.Tag) map[string]string {
	out := make(map[string]string, len(c.Fields))
	for _, f := range c.Fields {
		out[f.Name] = f.label(tag)
	}
	return out
}

func (f Field) label(tag language.Tag) string {
	if l := f.Label.In(tag); l != "" {
		return l
	}
	return f.Name
}

func localizeFields(fields []Field, tag language.Tag) []FieldSpec {
	out := make([]FieldSpec, len(fields))
	for i, f := range fields {
		out[i] = FieldSpec{
			Name:         f.Name,
			Type:         f.Type,
			Label:        f.Label.In(tag),
			Help:         f.Help.In(tag),
			Unique:       f.Unique,
			Required:     f.Required,
			RequiredWhen: f.RequiredWhen,
			Format:       f.Format,
			Min:          f.Min,
			Max:          f.Max,
			Step:         f.Step,
			Sortable:     f.Sortable,
			LookupURL:    f.LookupURL,
		}
	}
	return out
}
