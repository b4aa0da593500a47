package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func mustDefault(t *testing.T) *Config {
	t.Helper()
	cfg, err := Default()
	require.NoError(t, err)
	return cfg
}

func TestDefault_UserDataset(t *testing.T) {
	cfg := mustDefault(t)

	assert.Equal(t, "user", cfg.Name)
	assert.Equal(t, "id", cfg.PrimaryKey)
	assert.Equal(t, "content", cfg.DataKey)
	assert.Equal(t, 8, cfg.PageSize)
	assert.True(t, cfg.AutoQuery)
	assert.Equal(t, SubmitAll, cfg.DataToJSON)
	assert.Equal(t, Request{URL: "/mock/guide/user", Method: "GET"}, cfg.Transport.Read)
	assert.Equal(t, []string{"id", "name", "code", "sex", "active", "age", "email", "startDate"}, cfg.FieldNames())
	assert.Equal(t, []string{"age"}, cfg.SortableFields())

	age, ok := cfg.Field("age")
	require.True(t, ok)
	assert.Equal(t, 1.0, *age.Min)
	assert.Equal(t, 100.0, *age.Max)
	assert.Equal(t, 1.0, *age.Step)

	sex, _ := cfg.Field("sex")
	assert.Equal(t, "/mock/EMPLOYEE_GENDER", sex.LookupURL)
	assert.Equal(t, "adult", sex.RequiredWhen)

	name, _ := cfg.Field("name")
	assert.True(t, name.Unique)

	require.Len(t, cfg.QueryFields, 3)
	assert.Equal(t, "email", cfg.QueryFields[2].Name)
	age, ok := cfg.QueryField("age")
	require.True(t, ok)
	assert.Equal(t, TypeNumber, age.Type)
	_, ok = cfg.QueryField("sex")
	assert.False(t, ok)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{"unknown rule", `
name: u
transport: {read: {url: /x}}
fields: [{name: sex, type: string, requiredWhen: senior}]
`, ErrUnknownRule},
		{"unknown key", `
name: u
transport: {read: {url: /x}}
fields: [{name: a, type: string, colour: red}]
`, ErrInvalidConfig},
		{"bad type", `
name: u
transport: {read: {url: /x}}
fields: [{name: a, type: money}]
`, ErrInvalidConfig},
		{"primary key missing", `
name: u
primaryKey: id
transport: {read: {url: /x}}
fields: [{name: a, type: string}]
`, ErrInvalidConfig},
		{"min over max", `
name: u
transport: {read: {url: /x}}
fields: [{name: a, type: number, min: 5, max: 1}]
`, ErrInvalidConfig},
		{"unknown format", `
name: u
transport: {read: {url: /x}}
fields: [{name: a, type: string, format: shoe-size}]
`, ErrInvalidConfig},
		{"bad submit mode", `
name: u
dataToJSON: selected
transport: {read: {url: /x}}
`, ErrInvalidConfig},
		{"no read url", `name: u`, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("name: u\ntransport: {read: {url: /x}}\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "rows", cfg.DataKey)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, SubmitDirty, cfg.DataToJSON)
	assert.Equal(t, "GET", cfg.Transport.Read.Method)
}

func TestParse_CustomRule(t *testing.T) {
	rules := DefaultRules().With("senior", func(r Record) bool {
		age, ok := r.Number("age")
		return ok && age >= 65
	})
	cfg, err := Parse([]byte(`
name: u
transport: {read: {url: /x}}
fields:
  - {name: age, type: number}
  - {name: pension, type: string, requiredWhen: senior}
`), rules)
	require.NoError(t, err)

	assert.Empty(t, cfg.Validate(Record{"age": 40}))
	errs := cfg.Validate(Record{"age": 70})
	require.Len(t, errs, 1)
	assert.Equal(t, "pension", errs[0].Field)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.yaml")
	require.NoError(t, os.WriteFile(path, DefaultYAML(), 0o600))

	cfg, err := Load(path, DefaultRules())
	require.NoError(t, err)
	assert.Equal(t, "user", cfg.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestLocalize(t *testing.T) {
	cfg := mustDefault(t)

	zh := cfg.Localize(ParseLocale("zh-CN"))
	assert.Equal(t, "zh-CN", zh.Locale)
	assert.Equal(t, "姓名", zh.Fields[1].Label)
	assert.Equal(t, "主键，区分用户", zh.Fields[1].Help)

	en := cfg.Localize(language.English)
	assert.Equal(t, "Name", en.Fields[1].Label)
	assert.Equal(t, "Email", en.QueryFields[2].Label)

	labels := cfg.Labels(language.English)
	assert.Equal(t, "id", labels["id"], "unlabeled fields fall back to their name")
	assert.Equal(t, "Start date", labels["startDate"])
}

func TestText_In(t *testing.T) {
	tests := []struct {
		name string
		text Text
		tag  string
		want string
	}{
		{"exact", Text{"zh-CN": "姓名", "en": "Name"}, "en", "Name"},
		{"same base", Text{"zh-CN": "姓名", "en-GB": "Name"}, "en-US", "Name"},
		{"base ties pick the first sorted key", Text{"en-US": "Color", "en-GB": "Colour"}, "en-AU", "Colour"},
		{"supported fallback", Text{"en": "Name", "fr": "Nom"}, "de", "Name"},
		{"zh-CN before en", Text{"en": "Name", "zh-CN": "姓名"}, "de", "姓名"},
		{"first sorted key", Text{"ja": "名前", "fr": "Nom"}, "de", "Nom"},
		{"empty", Text{}, "en", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for range 20 {
				require.Equal(t, tt.want, tt.text.In(language.MustParse(tt.tag)))
			}
		})
	}
}

func TestNegotiate(t *testing.T) {
	zh := language.MustParse("zh-CN")
	tests := []struct {
		accept string
		want   language.Tag
	}{
		{"", zh},
		{"en-US,en;q=0.9", language.English},
		{"zh-CN,zh;q=0.8,en;q=0.5", zh},
		{"en", language.English},
		{"!!", zh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Negotiate(tt.accept, zh), "accept=%q", tt.accept)
	}
}
