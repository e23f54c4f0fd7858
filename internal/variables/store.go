package variables

import (
	"encoding/json"
	"sync"

	"assay/internal/template"
)

// HTTPResponse is the captured result of the most recent request step.
type HTTPResponse struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	// Body is the decoded JSON body, or the raw text when it is not JSON
	Body    any    `json:"body"`
	RawBody string `json:"-"`
	// ResponseTime is the request latency in milliseconds
	ResponseTime int64 `json:"responseTime"`
}

// Store holds the named variables of a single run plus the typed
// last-response slot. A Store is never shared between runs.
type Store struct {
	mu           sync.RWMutex
	values       map[string]any
	lastResponse *HTTPResponse
	engine       *template.Engine
}

// NewStore creates an empty variable store
func NewStore() *Store {
	return &Store{
		values: make(map[string]any),
		engine: template.New(),
	}
}

// Set stores a value under name. Composite values (maps, slices) are kept as
// their JSON text so every stored value is a string, number, bool or null.
func (s *Store) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = normalize(value)
}

// Get returns the value stored under name.
func (s *Store) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Snapshot returns a copy of all named variables.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// SetLastResponse records the response of the latest request step.
func (s *Store) SetLastResponse(resp *HTTPResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResponse = resp
}

// LastResponse returns the latest response, or nil before any request step.
func (s *Store) LastResponse() *HTTPResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastResponse
}

// Lookup exposes the store to the template engine.
func (s *Store) Lookup() template.Lookup {
	return s.Get
}

// Substitute replaces {{name}} placeholders in text with stored values.
// Unknown placeholders are left in place.
func (s *Store) Substitute(text string) string {
	return s.engine.Substitute(text, s.Get)
}

// Unresolved lists placeholders in text without a stored value.
func (s *Store) Unresolved(text string) []string {
	return s.engine.Unresolved(text, s.Get)
}

func normalize(value any) any {
	switch v := value.(type) {
	case nil, string, float64, bool:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case float32:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return string(data)
	}
}
