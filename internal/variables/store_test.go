package variables

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGetSnapshot(t *testing.T) {
	s := NewStore()

	s.Set("id", 42)
	s.Set("name", "alice")
	s.Set("tags", []string{"a", "b"})
	s.Set("nothing", nil)

	v, ok := s.Get("id")
	require.True(t, ok)
	assert.Equal(t, float64(42), v)

	v, ok = s.Get("tags")
	require.True(t, ok)
	assert.Equal(t, `["a","b"]`, v)

	_, ok = s.Get("missing")
	assert.False(t, ok)

	snap := s.Snapshot()
	assert.Len(t, snap, 4)
	snap["id"] = "mutated"
	v, _ = s.Get("id")
	assert.Equal(t, float64(42), v, "snapshot must be a copy")
}

func TestStore_Substitute(t *testing.T) {
	s := NewStore()
	s.Set("id", float64(42))

	assert.Equal(t, "/x/42", s.Substitute("/x/{{id}}"))
	assert.Equal(t, "/x/{{other}}", s.Substitute("/x/{{other}}"))
	assert.Equal(t, []string{"other"}, s.Unresolved("/x/{{id}}/{{other}}"))
}

func TestStore_LastResponse(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.LastResponse())

	resp := &HTTPResponse{Status: 200, Body: map[string]any{"ok": true}}
	s.SetLastResponse(resp)
	assert.Same(t, resp, s.LastResponse())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Set("k", i)
			_, _ = s.Get("k")
			_ = s.Snapshot()
		}(i)
	}
	wg.Wait()

	_, ok := s.Get("k")
	assert.True(t, ok)
}

func TestToGJSONPath(t *testing.T) {
	tests := map[string]string{
		"data.id":                  "data.id",
		"data.items[0].id":         "data.items.0.id",
		"$.data.items[10].tags[2]": "data.items.10.tags.2",
		"[0].name":                 "0.name",
		"":                         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, ToGJSONPath(in), in)
	}
}

func TestLookup(t *testing.T) {
	body := `{"data":{"id":42,"name":"alice","items":[{"id":"a1"},{"id":"a2"}],"active":false,"nothing":null}}`

	tests := []struct {
		path  string
		want  any
		found bool
	}{
		{"data.id", float64(42), true},
		{"data.name", "alice", true},
		{"data.items[1].id", "a2", true},
		{"data.active", false, true},
		{"data.nothing", nil, true},
		{"data.missing", nil, false},
		{"data.items[5].id", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, found := LookupJSON(body, tt.path)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookup_DecodedAndResponse(t *testing.T) {
	decoded := map[string]any{"user": map[string]any{"id": float64(7)}}

	v, ok := Lookup(decoded, "user.id")
	require.True(t, ok)
	assert.Equal(t, float64(7), v)

	_, ok = Lookup(nil, "user.id")
	assert.False(t, ok)

	_, ok = LookupJSON("not json", "a")
	assert.False(t, ok)

	resp := &HTTPResponse{RawBody: `{"token":"t"}`}
	v, ok = LookupResponse(resp, "token")
	require.True(t, ok)
	assert.Equal(t, "t", v)

	_, ok = LookupResponse(nil, "token")
	assert.False(t, ok)
}
