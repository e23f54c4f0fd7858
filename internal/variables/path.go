package variables

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var indexPattern = regexp.MustCompile(`\[(\d+)\]`)

// ToGJSONPath converts a dotted path with bracket indices ("data.items[0].id")
// into gjson syntax ("data.items.0.id"). A leading "$." is accepted.
func ToGJSONPath(path string) string {
	p := strings.TrimSpace(path)
	p = strings.TrimPrefix(p, "$")
	p = strings.TrimPrefix(p, ".")
	p = indexPattern.ReplaceAllString(p, ".$1")
	return strings.TrimPrefix(p, ".")
}

// LookupJSON evaluates path against a raw JSON document.
func LookupJSON(raw string, path string) (any, bool) {
	if !gjson.Valid(raw) {
		return nil, false
	}
	p := ToGJSONPath(path)
	if p == "" {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, false
		}
		return v, true
	}
	res := gjson.Get(raw, p)
	if !res.Exists() {
		return nil, false
	}
	return res.Value(), true
}

// Lookup evaluates path against an already decoded value.
func Lookup(data any, path string) (any, bool) {
	switch v := data.(type) {
	case nil:
		return nil, false
	case string:
		return LookupJSON(v, path)
	case json.RawMessage:
		return LookupJSON(string(v), path)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	return LookupJSON(string(raw), path)
}

// LookupResponse evaluates path against the body of resp.
func LookupResponse(resp *HTTPResponse, path string) (any, bool) {
	if resp == nil {
		return nil, false
	}
	if resp.RawBody != "" {
		return LookupJSON(resp.RawBody, path)
	}
	return Lookup(resp.Body, path)
}
