package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngine_Substitute(t *testing.T) {
	e := New()
	vars := MapLookup(map[string]interface{}{
		"id":     float64(42),
		"name":   "alice",
		"ratio":  3.5,
		"active": true,
		"empty":  nil,
	})

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no placeholders", "/users", "/users"},
		{"integral float", "/x/{{id}}", "/x/42"},
		{"spaces and dot", "/x/{{ .id }}/{{ name }}", "/x/42/alice"},
		{"fractional float", "ratio={{ratio}}", "ratio=3.5"},
		{"bool", "active={{active}}", "active=true"},
		{"nil", "v={{empty}}", "v=null"},
		{"unresolved passes through", "/x/{{missing}}", "/x/{{missing}}"},
		{"mixed", "{{name}}-{{missing}}-{{id}}", "alice-{{missing}}-42"},
		{"repeated", "{{id}}{{id}}", "4242"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.Substitute(tt.input, vars))
		})
	}
}

func TestEngine_SubstituteNilLookup(t *testing.T) {
	assert.Equal(t, "/x/{{id}}", New().Substitute("/x/{{id}}", nil))
}

func TestEngine_Replace(t *testing.T) {
	e := New()
	vars := MapLookup(map[string]interface{}{"token": "abc", "n": float64(3)})

	input := map[string]interface{}{
		"auth":  "Bearer {{token}}",
		"count": float64(1),
		"items": []interface{}{"{{n}}", "{{other}}", true},
	}

	got := e.Replace(input, vars).(map[string]interface{})
	assert.Equal(t, "Bearer abc", got["auth"])
	assert.Equal(t, float64(1), got["count"])
	assert.Equal(t, []interface{}{"3", "{{other}}", true}, got["items"])

	headers := e.Replace(map[string]string{"X-Token": "{{token}}"}, vars).(map[string]string)
	assert.Equal(t, "abc", headers["X-Token"])
}

func TestEngine_Unresolved(t *testing.T) {
	e := New()
	vars := MapLookup(map[string]interface{}{"a": "1"})

	missing := e.Unresolved(map[string]interface{}{
		"x": "{{a}}/{{c}}",
		"y": []interface{}{"{{b}}"},
	}, vars)

	assert.Equal(t, []string{"b", "c"}, missing)
}

func TestChainLookup(t *testing.T) {
	first := MapLookup(map[string]interface{}{"a": "first"})
	second := MapLookup(map[string]interface{}{"a": "second", "b": "second"})

	lookup := ChainLookup(first, nil, second)

	v, ok := lookup("a")
	assert.True(t, ok)
	assert.Equal(t, "first", v)

	v, ok = lookup("b")
	assert.True(t, ok)
	assert.Equal(t, "second", v)

	_, ok = lookup("c")
	assert.False(t, ok)
}
