package substitute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvz-tools/dothttp/internal/restscript"
)

func TestExpander_ResolvesKnownPlaceholders(t *testing.T) {
	tpl, err := restscript.NewTemplate("{{host}}/users/{{id}}")
	require.NoError(t, err)

	values := map[string]any{"host": "https://api.example.com", "id": 42}
	exp := NewExpander(func(name string) (any, bool) {
		v, ok := values[name]
		return v, ok
	}, nil)

	assert.Equal(t, "https://api.example.com/users/42", exp.Expand(tpl))
}

func TestExpander_MissingPlaceholderKeepsLiteralAndWarnsOnce(t *testing.T) {
	tpl, err := restscript.NewTemplate("{{missing}}-{{missing}}")
	require.NoError(t, err)

	var warnings int
	exp := NewExpander(func(string) (any, bool) { return nil, false }, func(string, ...any) {
		warnings++
	})

	assert.Equal(t, "{{missing}}-{{missing}}", exp.Expand(tpl))
	assert.Equal(t, 1, warnings)
}

func TestExpander_FallsBackToDynamicVariables(t *testing.T) {
	tpl, err := restscript.NewTemplate("id-{{$uuid}}")
	require.NoError(t, err)

	exp := NewExpander(func(string) (any, bool) { return nil, false }, nil)
	got := exp.Expand(tpl)
	assert.NotEqual(t, "id-{{$uuid}}", got)
	assert.Len(t, got, len("id-")+36)
}

func TestExpander_SerializesObjectsAsJSON(t *testing.T) {
	tpl, err := restscript.NewTemplate("{{payload}}")
	require.NoError(t, err)

	exp := NewExpander(func(string) (any, bool) {
		return map[string]any{"a": 1}, true
	}, nil)
	assert.Equal(t, `{"a":1}`, exp.Expand(tpl))
}

func TestExpander_NeverRescansSubstitutedOutput(t *testing.T) {
	tpl, err := restscript.NewTemplate("{{injected}}")
	require.NoError(t, err)

	exp := NewExpander(func(string) (any, bool) {
		return "{{host}}", true
	}, nil)
	assert.Equal(t, "{{host}}", exp.Expand(tpl))
}
