package executor

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"assay/internal/template"
)

// looseEqual compares two decoded JSON values, tolerating representation
// differences such as 42 vs "42" or "true" vs true.
func looseEqual(actual, expected interface{}) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}

	actualVal := reflect.ValueOf(actual)
	expectedVal := reflect.ValueOf(expected)

	if actualVal.Kind() == reflect.Slice || actualVal.Kind() == reflect.Array {
		if expectedVal.Kind() != reflect.Slice && expectedVal.Kind() != reflect.Array {
			return false
		}
		if actualVal.Len() != expectedVal.Len() {
			return false
		}
		for i := 0; i < actualVal.Len(); i++ {
			if !looseEqual(actualVal.Index(i).Interface(), expectedVal.Index(i).Interface()) {
				return false
			}
		}
		return true
	}

	if actualVal.Kind() == reflect.Map && expectedVal.Kind() == reflect.Map {
		if actualVal.Len() != expectedVal.Len() {
			return false
		}
		for _, key := range expectedVal.MapKeys() {
			a := actualVal.MapIndex(key)
			if !a.IsValid() {
				return false
			}
			if !looseEqual(a.Interface(), expectedVal.MapIndex(key).Interface()) {
				return false
			}
		}
		return true
	}

	if actualVal.Type().Comparable() && expectedVal.Type().Comparable() && actual == expected {
		return true
	}

	if af, ok := toNumber(actual); ok {
		if ef, ok := toNumber(expected); ok {
			return af == ef
		}
	}

	if eb, ok := expected.(bool); ok {
		if s, ok := actual.(string); ok {
			return strings.EqualFold(s, strconv.FormatBool(eb))
		}
	}
	if ab, ok := actual.(bool); ok {
		if s, ok := expected.(string); ok {
			return strings.EqualFold(s, strconv.FormatBool(ab))
		}
	}

	return template.FormatValue(actual) == template.FormatValue(expected)
}

// toNumber converts numbers and numeric strings to float64.
func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// containsValue reports whether haystack contains needle: substring for
// strings, element membership for arrays.
func containsValue(haystack, needle interface{}) bool {
	switch h := haystack.(type) {
	case nil:
		return false
	case string:
		if strings.HasPrefix(strings.TrimSpace(h), "[") {
			var items []interface{}
			if err := json.Unmarshal([]byte(h), &items); err == nil {
				return containsValue(items, needle)
			}
		}
		return strings.Contains(h, template.FormatValue(needle))
	case []interface{}:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true
			}
		}
		return false
	}
	return strings.Contains(template.FormatValue(haystack), template.FormatValue(needle))
}

// compareOrdered returns -1, 0 or 1 comparing a to b numerically, falling
// back to string order when either side is not a number.
func compareOrdered(a, b interface{}) int {
	if af, ok := toNumber(a); ok {
		if bf, ok := toNumber(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(template.FormatValue(a), template.FormatValue(b))
}

func describe(v interface{}) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return template.FormatValue(v)
}
