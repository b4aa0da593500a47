package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rules(errs ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		out[e.Field] = e.Rule
	}
	return out
}

func TestValidate(t *testing.T) {
	cfg := mustDefault(t)

	tests := []struct {
		name string
		rec  Record
		want map[string]string
	}{
		{"minor without sex", Record{"name": "Tom", "age": 12}, map[string]string{}},
		{"adult without sex", Record{"name": "Ann", "age": 30}, map[string]string{"sex": "required"}},
		{"adult with sex", Record{"name": "Ann", "age": 30, "sex": "F"}, map[string]string{}},
		{"exactly eighteen", Record{"age": 18}, map[string]string{}},
		{"age as numeric string", Record{"age": "19"}, map[string]string{"sex": "required"}},
		{"age too high", Record{"age": 101, "sex": "M"}, map[string]string{"age": "max"}},
		{"age too low", Record{"age": 0}, map[string]string{"age": "min"}},
		{"fractional age", Record{"age": 3.5}, map[string]string{"age": "step"}},
		{"age not a number", Record{"age": "old"}, map[string]string{"age": "type"}},
		{"age true", Record{"age": true}, map[string]string{"age": "type"}},
		{"age false", Record{"age": false}, map[string]string{"age": "type"}},
		{"bad email", Record{"email": "alice"}, map[string]string{"email": "format"}},
		{"good email", Record{"email": "alice@qq.com"}, map[string]string{}},
		{"date", Record{"startDate": "2021-07-01"}, map[string]string{}},
		{"timestamp date", Record{"startDate": "2021-07-01T08:00:00Z"}, map[string]string{}},
		{"bad date", Record{"startDate": "July 1st"}, map[string]string{"startDate": "type"}},
		{"active string bool", Record{"active": "true"}, map[string]string{}},
		{"active garbage", Record{"active": "maybe"}, map[string]string{"active": "type"}},
		{"name not a string", Record{"name": 5}, map[string]string{"name": "type"}},
		{"blank values are absent", Record{"email": "  ", "name": ""}, map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rules(cfg.Validate(tt.rec)))
		})
	}
}

func TestValidateAll_Unique(t *testing.T) {
	cfg := mustDefault(t)

	errs := cfg.ValidateAll([]Record{
		{"name": "Ann"},
		{"name": "Bob"},
		{"name": "Ann"},
		{"name": "Ann", StatusKey: "delete"},
	})
	require.Len(t, errs, 1)
	assert.Equal(t, ValidationError{Index: 2, Field: "name", Rule: "unique", Message: `"Ann" duplicates record 0`}, errs[0])
	assert.Contains(t, errs.Error(), "[2].name")
}

func TestValidateAll_IndexesFailures(t *testing.T) {
	cfg := mustDefault(t)
	errs := cfg.ValidateAll([]Record{{"age": 20, "sex": "M"}, {"age": 20}})
	require.Len(t, errs, 1)
	assert.Equal(t, 1, errs[0].Index)
	assert.Equal(t, "sex", errs[0].Field)
}
