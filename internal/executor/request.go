package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"assay/internal/suite"
	"assay/internal/variables"
	"assay/pkg/logging"
)

// maxBodyBytes bounds how much of a response body is kept.
const maxBodyBytes = 10 << 20

// RequestExecutor performs a single HTTP request and stores the response as
// the run's last response.
type RequestExecutor struct {
	Client  *http.Client
	Timeout time.Duration
}

// ResolveURL substitutes variables in raw and prefixes baseURL unless the
// result is already absolute.
func ResolveURL(baseURL, raw string, vars *variables.Store) string {
	u := raw
	if vars != nil {
		u = vars.Substitute(raw)
	}
	if isAbsolute(u) || baseURL == "" {
		return u
	}
	if strings.HasSuffix(baseURL, "/") && strings.HasPrefix(u, "/") {
		return baseURL + u[1:]
	}
	return baseURL + u
}

func isAbsolute(u string) bool {
	lower := strings.ToLower(u)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func methodHasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// renderBody turns a configured body into request bytes. A JSON string is
// sent as its unquoted text; anything else is sent as JSON.
func renderBody(raw json.RawMessage, vars *variables.Store) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	text := string(trimmed)
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			text = s
		}
	}
	if vars != nil {
		text = vars.Substitute(text)
	}
	return []byte(text)
}

func (e *RequestExecutor) Execute(ctx context.Context, step suite.Step, env *Env) Result {
	// A failed request must not leave the previous step's response in place.
	env.Vars.SetLastResponse(nil)

	cfg, ok := step.Config.(*suite.RequestConfig)
	if !ok || cfg == nil {
		return Result{Message: "Invalid request configuration", Error: "request step requires a request config"}
	}
	if cfg.URL == "" {
		return Result{Message: "Invalid request configuration", Error: "url is required"}
	}

	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}
	url := ResolveURL(env.BaseURL, cfg.URL, env.Vars)
	if missing := env.Vars.Unresolved(cfg.URL); len(missing) > 0 {
		logging.Debug("Executor", "Step %q: unresolved variables in url: %s", step.DisplayName(), strings.Join(missing, ", "))
	}

	var body io.Reader
	if methodHasBody(method) {
		if data := renderBody(cfg.Body, env.Vars); data != nil {
			body = bytes.NewReader(data)
		}
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultSettings().RequestTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, cfg.TimeoutOr(timeout))
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, body)
	if err != nil {
		return Result{Message: fmt.Sprintf("%s %s: invalid request", method, url), Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, env.Vars.Substitute(v))
	}

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		if reqCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return Result{
				Message: fmt.Sprintf("%s %s timed out after %dms", method, url, elapsed.Milliseconds()),
				Error:   err.Error(),
			}
		}
		return Result{Message: fmt.Sprintf("%s %s failed", method, url), Error: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	elapsed := time.Since(start)
	if err != nil {
		return Result{Message: fmt.Sprintf("%s %s: failed to read response", method, url), Error: err.Error()}
	}

	captured := captureResponse(resp, raw, elapsed)
	env.Vars.SetLastResponse(captured)

	var reasons []string
	if v := cfg.Validation; v != nil {
		if v.StatusCode != nil && *v.StatusCode != captured.Status {
			reasons = append(reasons, fmt.Sprintf("expected status %d, got %d", *v.StatusCode, captured.Status))
		}
		if v.ResponseTime != nil && captured.ResponseTime > *v.ResponseTime {
			reasons = append(reasons, fmt.Sprintf("response time %dms exceeds %dms", captured.ResponseTime, *v.ResponseTime))
		}
	}

	msg := fmt.Sprintf("%s %s -> %d %s (%dms)", method, url, captured.Status, captured.StatusText, captured.ResponseTime)
	data := map[string]any{
		"request": map[string]any{
			"method": method,
			"url":    url,
		},
		"response": captured,
	}

	if len(reasons) > 0 {
		joined := strings.Join(reasons, "; ")
		return Result{Message: msg + ": " + joined, Data: data, Error: joined}
	}
	return Result{Success: true, Message: msg, Data: data}
}

func captureResponse(resp *http.Response, raw []byte, elapsed time.Duration) *variables.HTTPResponse {
	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		headers[k] = strings.Join(v, ", ")
	}

	var body any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			body = string(raw)
		}
	}

	return &variables.HTTPResponse{
		Status:       resp.StatusCode,
		StatusText:   http.StatusText(resp.StatusCode),
		Headers:      headers,
		Body:         body,
		RawBody:      string(raw),
		ResponseTime: elapsed.Milliseconds(),
	}
}
