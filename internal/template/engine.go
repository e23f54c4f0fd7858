package template

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
)

// Lookup resolves a variable name to its current value.
type Lookup func(name string) (interface{}, bool)

// MapLookup adapts a plain map to a Lookup.
func MapLookup(m map[string]interface{}) Lookup {
	return func(name string) (interface{}, bool) {
		v, ok := m[name]
		return v, ok
	}
}

// Engine substitutes {{ name }} placeholders in step configuration values.
//
// Placeholders whose variable cannot be resolved are left untouched, so a
// URL such as "/users/{{id}}" stays literal until "id" has been extracted.
type Engine struct {
	// Pattern to match template variables like {{ variableName }}
	templatePattern *regexp.Regexp
}

// New creates a new template engine
func New() *Engine {
	return &Engine{
		templatePattern: regexp.MustCompile(`\{\{\s*\.?([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`),
	}
}

// Substitute replaces every resolvable placeholder in s.
func (e *Engine) Substitute(s string, lookup Lookup) string {
	if lookup == nil {
		return s
	}
	return e.templatePattern.ReplaceAllStringFunc(s, func(placeholder string) string {
		match := e.templatePattern.FindStringSubmatch(placeholder)
		if len(match) < 2 {
			return placeholder
		}
		value, ok := lookup(match[1])
		if !ok {
			return placeholder
		}
		return FormatValue(value)
	})
}

// Replace walks strings, maps and slices and substitutes placeholders in
// every string it finds. Other values are returned as-is.
func (e *Engine) Replace(value interface{}, lookup Lookup) interface{} {
	switch v := value.(type) {
	case string:
		return e.Substitute(v, lookup)
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, val := range v {
			result[key] = e.Replace(val, lookup)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, val := range v {
			result[i] = e.Replace(val, lookup)
		}
		return result
	case map[string]string:
		result := make(map[string]string, len(v))
		for key, val := range v {
			result[key] = e.Substitute(val, lookup)
		}
		return result
	default:
		return value
	}
}

// Unresolved returns the sorted names of placeholders in value that lookup
// cannot resolve.
func (e *Engine) Unresolved(value interface{}, lookup Lookup) []string {
	var missing []string
	for _, name := range e.ExtractVariables(value) {
		if lookup == nil {
			missing = append(missing, name)
			continue
		}
		if _, ok := lookup(name); !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// ExtractVariables extracts all template variable names from a value
func (e *Engine) ExtractVariables(value interface{}) []string {
	variables := make(map[string]bool)
	e.extractVariablesRecursive(value, variables)

	result := make([]string, 0, len(variables))
	for varName := range variables {
		result = append(result, varName)
	}
	sort.Strings(result)

	return result
}

func (e *Engine) extractVariablesRecursive(value interface{}, variables map[string]bool) {
	switch v := value.(type) {
	case string:
		matches := e.templatePattern.FindAllStringSubmatch(v, -1)
		for _, match := range matches {
			if len(match) >= 2 {
				variables[match[1]] = true
			}
		}
	case map[string]interface{}:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	case map[string]string:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	case []interface{}:
		for _, val := range v {
			e.extractVariablesRecursive(val, variables)
		}
	}
}

// FormatValue renders a variable value the way it appears inside a URL or
// body. Integral floats print without a fractional part.
func FormatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case json.RawMessage:
		return string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
