// Package suggest produces the option list of the email autocomplete editor.
//
// Each input or focus event recomputes the whole list from the value being
// typed and the configured domain suffixes, and the list replaces whatever
// the editor's store held before.
package suggest

import "strings"

// DefaultSuffixes are the domains offered when none are configured.
var DefaultSuffixes = []string{"@qq.com", "@163.com", "@hand-china.com"}

// Suggestion is one autocomplete option. Value and Label are always equal.
type Suggestion struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Generate returns one suggestion per suffix, in suffix order, formed by
// appending the suffix to currentValue. A value that already contains '@'
// yields no suggestions. The result is never nil.
func Generate(currentValue string, suffixes []string) []Suggestion {
	if strings.Contains(currentValue, "@") {
		return []Suggestion{}
	}
	out := make([]Suggestion, 0, len(suffixes))
	for _, suffix := range suffixes {
		email := currentValue + suffix
		out = append(out, Suggestion{Value: email, Label: email})
	}
	return out
}
