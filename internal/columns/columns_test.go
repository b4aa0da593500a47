package columns

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dalemusser/usergrid/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func fixedSession(id string, err error) SessionFunc {
	return func(requested string) (string, error) {
		if requested != "" {
			return requested, err
		}
		return id, err
	}
}

func TestDefault_Order(t *testing.T) {
	var names []string
	for _, c := range Default() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"name", "age", "sex", "email", "code", "startDate", "active"}, names)
	assert.Equal(t, FactoryEditor(EmailAutocomplete), Default()[3].Editor)
}

func TestEditor_JSON(t *testing.T) {
	data, err := json.Marshal(Default()[2:4])
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"sex","editor":true},{"name":"email","editor":"email-autocomplete"}]`, string(data))

	var cols []Column
	require.NoError(t, json.Unmarshal([]byte(`[{"name":"a","editor":false},{"name":"b","editor":"x"}]`), &cols))
	assert.Equal(t, Editor{Enabled: false}, cols[0].Editor)
	assert.Equal(t, FactoryEditor("x"), cols[1].Editor)

	assert.Error(t, json.Unmarshal([]byte(`{"name":"c","editor":3}`), &Column{}))
}

func TestRegistry_Bind(t *testing.T) {
	r := NewRegistry()
	r.Register(EmailAutocomplete, EmailAutocompleteFactory("/api/suggestions/email", fixedSession("s-1", nil)))
	assert.Equal(t, []string{EmailAutocomplete}, r.Names())

	b, err := r.Bind(EmailAutocomplete, BindContext{})
	require.NoError(t, err)
	assert.Equal(t, Binding{
		Component:  "AutoComplete",
		Session:    "s-1",
		Events:     []string{"input", "focus"},
		OptionsURL: "/api/suggestions/email?session=s-1",
		EventsURL:  "/api/suggestions/email/events",
		StreamURL:  "/api/suggestions/email/stream?session=s-1",
		SocketURL:  "/api/suggestions/email/ws?session=s-1",
	}, b)

	_, err = r.Bind("rich-text", BindContext{})
	assert.ErrorIs(t, err, ErrUnknownFactory)
	assert.ErrorContains(t, err, "registered: "+EmailAutocomplete)
}

func TestRegistry_Resolve(t *testing.T) {
	cfg, err := dataset.Default()
	require.NoError(t, err)

	r := NewRegistry()
	r.Register(EmailAutocomplete, EmailAutocompleteFactory("/api/suggestions/email", fixedSession("s-2", nil)))

	cols, err := r.Resolve(Default(), cfg, cfg.Labels(language.English), "")
	require.NoError(t, err)
	require.Len(t, cols, 7)

	assert.Equal(t, "Email", cols[3].Label)
	assert.Equal(t, "string", cols[3].Type)
	require.NotNil(t, cols[3].Binding)
	assert.Equal(t, "s-2", cols[3].Binding.Session)
	assert.Nil(t, cols[0].Binding)
	assert.Equal(t, "boolean", cols[6].Type)
}

func TestRegistry_ResolveErrors(t *testing.T) {
	cfg, err := dataset.Default()
	require.NoError(t, err)

	_, err = NewRegistry().Resolve([]Column{{Name: "salary", Editor: DefaultEditor}}, cfg, nil, "")
	assert.ErrorContains(t, err, "salary")

	_, err = NewRegistry().Resolve(Default(), cfg, nil, "")
	assert.ErrorIs(t, err, ErrUnknownFactory, "email editor needs a registered factory")

	sessionErr := errors.New("bad session")
	r := NewRegistry()
	r.Register(EmailAutocomplete, EmailAutocompleteFactory("/x", fixedSession("", sessionErr)))
	_, err = r.Resolve(Default(), cfg, nil, "nope")
	assert.ErrorIs(t, err, sessionErr)
}
