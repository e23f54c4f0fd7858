package mocktarget

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes a mock HTTP API.
type Config struct {
	// Name is shown in logs and on the status endpoint
	Name string `yaml:"name,omitempty"`
	// Routes are matched in declaration order
	Routes []Route `yaml:"routes"`
}

// Route maps a method and chi path pattern to one or more responses.
//
// The top-level Status, Headers, Body and Delay fields describe the response
// used when Responses is empty.
type Route struct {
	Method string `yaml:"method,omitempty"`
	// Path is a chi pattern such as /users/{id}
	Path string `yaml:"path"`

	Status  int               `yaml:"status,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    interface{}       `yaml:"body,omitempty"`
	Delay   string            `yaml:"delay,omitempty"`

	// Responses lists conditional responses; the first match wins
	Responses []Response `yaml:"responses,omitempty"`
}

// Response is a conditional response for a route.
type Response struct {
	// When matches against path parameters, query values and top-level JSON
	// body fields. An empty When matches every request.
	When    map[string]interface{} `yaml:"when,omitempty"`
	Status  int                    `yaml:"status,omitempty"`
	Headers map[string]string      `yaml:"headers,omitempty"`
	Body    interface{}            `yaml:"body,omitempty"`
	// Delay simulates response latency (e.g., "2s", "500ms")
	Delay string `yaml:"delay,omitempty"`
}

var supportedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// LoadConfig reads a YAML route file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mock target config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates a YAML route document.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse mock target config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every route and fills in defaults.
func (c *Config) Validate() error {
	if len(c.Routes) == 0 {
		return fmt.Errorf("mock target config has no routes")
	}
	for i := range c.Routes {
		r := &c.Routes[i]
		if !strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf("route %d: path %q must start with /", i+1, r.Path)
		}
		if r.Method == "" {
			r.Method = http.MethodGet
		}
		r.Method = strings.ToUpper(r.Method)
		if !supportedMethods[r.Method] {
			return fmt.Errorf("route %d: unsupported method %q", i+1, r.Method)
		}
		if len(r.Responses) == 0 {
			r.Responses = []Response{{
				Status:  r.Status,
				Headers: r.Headers,
				Body:    r.Body,
				Delay:   r.Delay,
			}}
		}
		for j := range r.Responses {
			resp := &r.Responses[j]
			if resp.Status == 0 {
				resp.Status = http.StatusOK
			}
			if resp.Status < 100 || resp.Status > 599 {
				return fmt.Errorf("route %s %s: invalid status %d", r.Method, r.Path, resp.Status)
			}
			if resp.Delay != "" {
				if _, err := time.ParseDuration(resp.Delay); err != nil {
					return fmt.Errorf("route %s %s: invalid delay %q: %w", r.Method, r.Path, resp.Delay, err)
				}
			}
		}
	}
	return nil
}
