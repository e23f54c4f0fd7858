package executor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"assay/internal/browser"
	"assay/internal/loadgen"
	"assay/internal/suite"
	"assay/internal/variables"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int         { return &v }
func int64Ptr(v int64) *int64   { return &v }
func floatPtr(v float64) *float64 { return &v }

func newEnv(baseURL string) *Env {
	return &Env{BaseURL: baseURL, Vars: variables.NewStore(), Progress: func(Progress) {}}
}

type capturedRequest struct {
	Method  string
	Path    string
	Headers http.Header
	Body    string
}

func recordingServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, capturedRequest{Method: r.Method, Path: r.URL.RequestURI(), Headers: r.Header.Clone(), Body: string(body)})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), reqs...)
	}
}

func TestResolveURL(t *testing.T) {
	vars := variables.NewStore()
	vars.Set("id", 42)

	tests := []struct {
		base, raw, want string
	}{
		{"http://api", "/users/{{id}}", "http://api/users/42"},
		{"http://api/", "/users", "http://api/users"},
		{"http://api", "https://other/x", "https://other/x"},
		{"", "/users", "/users"},
		{"http://api", "/x/{{missing}}", "http://api/x/{{missing}}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveURL(tt.base, tt.raw, vars))
	}
}

func TestRequestExecutor(t *testing.T) {
	srv, requests := recordingServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		case "/users":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":42}`))
		default:
			http.NotFound(w, r)
		}
	})

	t.Run("GET 200 with validation", func(t *testing.T) {
		env := newEnv(srv.URL)
		step := suite.Step{Name: "health", Type: suite.StepRequest, Config: &suite.RequestConfig{
			URL:        "/health",
			Validation: &suite.RequestValidation{StatusCode: intPtr(200)},
		}}

		res := (&RequestExecutor{Timeout: time.Second}).Execute(context.Background(), step, env)
		require.True(t, res.Success, res.Error)
		assert.Contains(t, res.Message, "GET "+srv.URL+"/health -> 200")

		last := env.Vars.LastResponse()
		require.NotNil(t, last)
		assert.Equal(t, 200, last.Status)
		assert.Equal(t, map[string]any{"status": "ok"}, last.Body)
	})

	t.Run("404 against expected 200 fails and names both codes", func(t *testing.T) {
		env := newEnv(srv.URL)
		step := suite.Step{Name: "missing", Type: suite.StepRequest, Config: &suite.RequestConfig{
			URL:        "/nope",
			Validation: &suite.RequestValidation{StatusCode: intPtr(200)},
		}}

		res := (&RequestExecutor{}).Execute(context.Background(), step, env)
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "200")
		assert.Contains(t, res.Message, "404")
		assert.Equal(t, 404, env.Vars.LastResponse().Status)
	})

	t.Run("POST sends substituted JSON body and default content type", func(t *testing.T) {
		env := newEnv(srv.URL)
		env.Vars.Set("name", "alice")
		step := suite.Step{Name: "create", Type: suite.StepRequest, Config: &suite.RequestConfig{
			Method:  "post",
			URL:     "/users",
			Headers: map[string]string{"X-User": "{{name}}"},
			Body:    json.RawMessage(`{"name":"{{name}}"}`),
		}}

		res := (&RequestExecutor{}).Execute(context.Background(), step, env)
		require.True(t, res.Success, res.Error)

		reqs := requests()
		last := reqs[len(reqs)-1]
		assert.Equal(t, http.MethodPost, last.Method)
		assert.JSONEq(t, `{"name":"alice"}`, last.Body)
		assert.Equal(t, "application/json", last.Headers.Get("Content-Type"))
		assert.Equal(t, "alice", last.Headers.Get("X-User"))
	})

	t.Run("GET never sends a body and header override wins", func(t *testing.T) {
		env := newEnv(srv.URL)
		step := suite.Step{Name: "get", Type: suite.StepRequest, Config: &suite.RequestConfig{
			URL:     "/health",
			Headers: map[string]string{"content-type": "text/plain"},
			Body:    json.RawMessage(`{"ignored":true}`),
		}}

		res := (&RequestExecutor{}).Execute(context.Background(), step, env)
		require.True(t, res.Success, res.Error)

		reqs := requests()
		last := reqs[len(reqs)-1]
		assert.Empty(t, last.Body)
		assert.Equal(t, "text/plain", last.Headers.Get("Content-Type"))
	})

	t.Run("response time ceiling", func(t *testing.T) {
		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(50 * time.Millisecond)
		}))
		defer slow.Close()

		env := newEnv(slow.URL)
		step := suite.Step{Name: "slow", Type: suite.StepRequest, Config: &suite.RequestConfig{
			URL:        "/",
			Validation: &suite.RequestValidation{ResponseTime: int64Ptr(1)},
		}}
		res := (&RequestExecutor{}).Execute(context.Background(), step, env)
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "exceeds 1ms")
	})

	t.Run("timeout", func(t *testing.T) {
		hang := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(500 * time.Millisecond)
		}))
		defer hang.Close()

		env := newEnv(hang.URL)
		step := suite.Step{Name: "hang", Type: suite.StepRequest, Config: &suite.RequestConfig{URL: "/", Timeout: 50}}
		res := (&RequestExecutor{}).Execute(context.Background(), step, env)
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "timed out")
		assert.Nil(t, env.Vars.LastResponse())
	})

	t.Run("zero executor timeout falls back to default", func(t *testing.T) {
		env := newEnv(srv.URL)
		step := suite.Step{Name: "health", Type: suite.StepRequest, Config: &suite.RequestConfig{URL: "/health"}}
		res := (&RequestExecutor{Timeout: 0}).Execute(context.Background(), step, env)
		require.True(t, res.Success, res.Message)
		assert.NotContains(t, res.Message, "timed out")
	})

	t.Run("failed request clears previous response", func(t *testing.T) {
		env := newEnv(srv.URL)
		ok := suite.Step{Name: "health", Type: suite.StepRequest, Config: &suite.RequestConfig{URL: "/health"}}
		res := (&RequestExecutor{Timeout: time.Second}).Execute(context.Background(), ok, env)
		require.True(t, res.Success, res.Error)
		require.NotNil(t, env.Vars.LastResponse())

		unreachable := suite.Step{Name: "down", Type: suite.StepRequest, Config: &suite.RequestConfig{URL: "http://127.0.0.1:1/"}}
		res = (&RequestExecutor{Timeout: time.Second}).Execute(context.Background(), unreachable, env)
		require.False(t, res.Success)
		assert.Nil(t, env.Vars.LastResponse())

		check := suite.Step{Type: suite.StepValidation, Config: &suite.ValidationConfig{StatusCode: intPtr(200)}}
		res = (&ValidationExecutor{}).Execute(context.Background(), check, env)
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "No response")
	})

	t.Run("invalid config", func(t *testing.T) {
		res := (&RequestExecutor{}).Execute(context.Background(), suite.Step{Type: suite.StepRequest, Config: &suite.RequestConfig{}}, newEnv(srv.URL))
		assert.False(t, res.Success)
		assert.Equal(t, "url is required", res.Error)
	})
}

func TestValidationExecutor(t *testing.T) {
	withResponse := func(status int, body string, ms int64) *Env {
		env := newEnv("")
		var decoded any
		_ = json.Unmarshal([]byte(body), &decoded)
		env.Vars.SetLastResponse(&variables.HTTPResponse{Status: status, Body: decoded, RawBody: body, ResponseTime: ms})
		return env
	}

	tests := []struct {
		name        string
		env         *Env
		cfg         *suite.ValidationConfig
		wantSuccess bool
		wantParts   []string
	}{
		{
			name:        "no response",
			env:         newEnv(""),
			cfg:         &suite.ValidationConfig{StatusCode: intPtr(200)},
			wantSuccess: false,
			wantParts:   []string{"No response"},
		},
		{
			name:        "all criteria pass",
			env:         withResponse(200, `{"data":{"id":42,"name":"alice"}}`, 10),
			cfg:         &suite.ValidationConfig{StatusCode: intPtr(200), JSONPath: "data.id", ExpectedValue: "42", ResponseTime: int64Ptr(100)},
			wantSuccess: true,
			wantParts:   []string{"status 200", "data.id = 42"},
		},
		{
			name:        "failures accumulate",
			env:         withResponse(500, `{"data":{"id":7}}`, 300),
			cfg:         &suite.ValidationConfig{StatusCode: intPtr(200), JSONPath: "data.id", ExpectedValue: float64(42), ResponseTime: int64Ptr(100)},
			wantSuccess: false,
			wantParts:   []string{"expected status 200, got 500", "expected 42 at data.id, got 7", "response time 300ms exceeds 100ms"},
		},
		{
			name:        "missing path",
			env:         withResponse(200, `{"data":{}}`, 1),
			cfg:         &suite.ValidationConfig{JSONPath: "data.items[0].id"},
			wantSuccess: false,
			wantParts:   []string{"path data.items[0].id not found"},
		},
		{
			name:        "body contains",
			env:         withResponse(200, `{"msg":"hello world"}`, 1),
			cfg:         &suite.ValidationConfig{BodyContains: "hello"},
			wantSuccess: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := (&ValidationExecutor{}).Execute(context.Background(), suite.Step{Type: suite.StepValidation, Config: tt.cfg}, tt.env)
			assert.Equal(t, tt.wantSuccess, res.Success, res.Message)
			for _, part := range tt.wantParts {
				assert.Contains(t, res.Message, part)
			}
		})
	}
}

func TestExtractionExecutor(t *testing.T) {
	env := newEnv("")
	env.Vars.SetLastResponse(&variables.HTTPResponse{
		Status:  201,
		Headers: map[string]string{"Location": "/users/42"},
		RawBody: `{"data":{"items":[{"id":42}]}}`,
	})

	exec := &ExtractionExecutor{}
	run := func(cfg *suite.ExtractionConfig) Result {
		return exec.Execute(context.Background(), suite.Step{Type: suite.StepExtraction, Config: cfg}, env)
	}

	res := run(&suite.ExtractionConfig{VariableName: "id", JSONPath: "data.items[0].id"})
	require.True(t, res.Success)
	v, _ := env.Vars.Get("id")
	assert.Equal(t, float64(42), v)

	res = run(&suite.ExtractionConfig{VariableName: "token", JSONPath: "data.token", DefaultValue: "none"})
	require.True(t, res.Success)
	assert.Equal(t, true, res.Data.(map[string]any)["usedDefault"])
	v, _ = env.Vars.Get("token")
	assert.Equal(t, "none", v)

	res = run(&suite.ExtractionConfig{VariableName: "missing", JSONPath: "nope"})
	require.True(t, res.Success)
	v, ok := env.Vars.Get("missing")
	assert.True(t, ok)
	assert.Nil(t, v)

	res = run(&suite.ExtractionConfig{VariableName: "loc", Source: suite.SourceHeader, JSONPath: "location"})
	require.True(t, res.Success)
	v, _ = env.Vars.Get("loc")
	assert.Equal(t, "/users/42", v)

	res = run(&suite.ExtractionConfig{VariableName: "code", Source: suite.SourceStatus})
	require.True(t, res.Success)
	v, _ = env.Vars.Get("code")
	assert.Equal(t, float64(201), v)

	res = run(&suite.ExtractionConfig{JSONPath: "x"})
	assert.False(t, res.Success)

	res = exec.Execute(context.Background(), suite.Step{Config: &suite.ExtractionConfig{VariableName: "x"}}, newEnv(""))
	assert.False(t, res.Success)

	empty := newEnv("")
	res = exec.Execute(context.Background(), suite.Step{Config: &suite.ExtractionConfig{VariableName: "id", DefaultValue: "x"}}, empty)
	assert.False(t, res.Success)
	assert.Equal(t, "No response to extract from", res.Message)
	_, ok = empty.Vars.Get("id")
	assert.False(t, ok, "default must not be stored without a response")
}

func TestConditionalExecutor(t *testing.T) {
	env := newEnv("")
	env.Vars.Set("count", 5)
	env.Vars.Set("name", "alice smith")
	env.Vars.Set("tags", []string{"a", "b"})

	tests := []struct {
		variable, op string
		value        any
		wantMet      bool
	}{
		{"count", suite.OpEquals, "5", true},
		{"count", suite.OpEquals, float64(6), false},
		{"count", suite.OpGreaterThan, float64(3), true},
		{"count", suite.OpLessThan, float64(3), false},
		{"name", suite.OpContains, "smith", true},
		{"tags", suite.OpContains, "b", true},
		{"tags", suite.OpContains, "z", false},
		{"name", suite.OpExists, nil, true},
		{"ghost", suite.OpExists, nil, false},
		{"ghost", suite.OpNotExists, nil, true},
		{"ghost", suite.OpGreaterThan, float64(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.variable+" "+tt.op, func(t *testing.T) {
			res := (&ConditionalExecutor{}).Execute(context.Background(), suite.Step{
				Type: suite.StepConditional,
				Config: &suite.ConditionalConfig{
					Variable: tt.variable, Operator: tt.op, Value: tt.value,
					TrueStep: "yes", FalseStep: "no",
				},
			}, env)
			require.True(t, res.Success, res.Error)
			data := res.Data.(map[string]any)
			assert.Equal(t, tt.wantMet, data["conditionMet"])
			if tt.wantMet {
				assert.Equal(t, "yes", data["nextStep"])
			} else {
				assert.Equal(t, "no", data["nextStep"])
			}
		})
	}

	res := (&ConditionalExecutor{}).Execute(context.Background(), suite.Step{
		Config: &suite.ConditionalConfig{Variable: "count", Operator: "like"},
	}, env)
	assert.False(t, res.Success)
}

func TestLooseEqual(t *testing.T) {
	assert.True(t, looseEqual(float64(42), "42"))
	assert.True(t, looseEqual("true", true))
	assert.True(t, looseEqual(true, "TRUE"))
	assert.True(t, looseEqual([]any{float64(1), "a"}, []any{1, "a"}))
	assert.True(t, looseEqual(map[string]any{"a": float64(1)}, map[string]any{"a": "1"}))
	assert.True(t, looseEqual(nil, nil))
	assert.False(t, looseEqual(nil, "null"))
	assert.False(t, looseEqual("a", "b"))
	assert.False(t, looseEqual([]any{1}, "1"))
}

func functionalEnv(pages map[string]browser.FakePage) (*Env, *browser.Fake) {
	fake := browser.NewFake(pages)
	env := newEnv("http://app")
	env.Browser = fake
	return env, fake
}

func TestBrowserExecutors(t *testing.T) {
	env, fake := functionalEnv(map[string]browser.FakePage{
		"http://app/login": {
			"#user":   {Visible: true},
			"#agree":  {Visible: true},
			"#hidden": {Visible: false},
			"#submit": {Visible: true, OnClick: func(f *browser.Fake) {
				f.SetElement("#banner", &browser.FakeElement{Visible: true, Text: "Welcome alice", Classes: []string{"ok"}})
			}},
		},
	})
	env.Vars.Set("user", "alice")
	ctx := context.Background()

	nav := &NavigationExecutor{Timeout: time.Second}
	interact := &InteractionExecutor{Timeout: 50 * time.Millisecond}
	assertion := &AssertionExecutor{Timeout: 150 * time.Millisecond}

	res := nav.Execute(ctx, suite.Step{Config: &suite.NavigationConfig{URL: "/login"}}, env)
	require.True(t, res.Success, res.Error)

	res = interact.Execute(ctx, suite.Step{Config: &suite.InteractionConfig{Action: suite.ActionType, Selector: "#user", Value: "{{user}}"}}, env)
	require.True(t, res.Success, res.Error)
	res = interact.Execute(ctx, suite.Step{Config: &suite.InteractionConfig{Action: suite.ActionCheck, Selector: "#agree"}}, env)
	require.True(t, res.Success, res.Error)
	res = interact.Execute(ctx, suite.Step{Config: &suite.InteractionConfig{Action: suite.ActionClick, Selector: "#submit"}}, env)
	require.True(t, res.Success, res.Error)
	res = interact.Execute(ctx, suite.Step{Config: &suite.InteractionConfig{Action: suite.ActionScroll}}, env)
	require.True(t, res.Success, res.Error)

	res = interact.Execute(ctx, suite.Step{Config: &suite.InteractionConfig{Action: suite.ActionClick, Selector: "#nope"}}, env)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "#nope not found")

	cases := []struct {
		cfg  suite.AssertionConfig
		want bool
	}{
		{suite.AssertionConfig{Selector: "#banner", Assertion: suite.AssertVisible}, true},
		{suite.AssertionConfig{Selector: "#hidden", Assertion: suite.AssertVisible}, false},
		{suite.AssertionConfig{Selector: "#banner", Assertion: suite.AssertExists}, true},
		{suite.AssertionConfig{Selector: "#ghost", Assertion: suite.AssertExists}, false},
		{suite.AssertionConfig{Selector: "#banner", Assertion: suite.AssertContainsText, ExpectedValue: "{{user}}"}, true},
		{suite.AssertionConfig{Selector: "#banner", Assertion: suite.AssertContainsText, ExpectedValue: "bob"}, false},
		{suite.AssertionConfig{Selector: "#banner", Assertion: suite.AssertHasClass, ExpectedValue: "ok"}, true},
		{suite.AssertionConfig{Selector: "#user", Assertion: suite.AssertHasValue, ExpectedValue: "alice"}, true},
	}
	for _, c := range cases {
		cfg := c.cfg
		res := assertion.Execute(ctx, suite.Step{Config: &cfg}, env)
		assert.Equal(t, c.want, res.Success, "%s %s: %s", cfg.Selector, cfg.Assertion, res.Message)
	}

	assert.Equal(t, []string{
		"navigate http://app/login",
		"type #user alice",
		"checked #agree true",
		"click #submit",
		"scroll ",
	}, fake.Actions())
}

func TestBrowserExecutors_NoSession(t *testing.T) {
	env := newEnv("http://app")
	res := (&NavigationExecutor{}).Execute(context.Background(), suite.Step{Config: &suite.NavigationConfig{URL: "/"}}, env)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no browser session")
}

func TestLoadTestExecutor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/fail") {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	var progress []Progress
	var mu sync.Mutex
	env := newEnv(srv.URL)
	env.Progress = func(p Progress) {
		mu.Lock()
		progress = append(progress, p)
		mu.Unlock()
	}

	exec := &LoadTestExecutor{Generator: loadgen.New(nil), Settings: DefaultSettings()}

	res := exec.Execute(context.Background(), suite.Step{Config: &suite.LoadTestConfig{
		TargetURL: "/ok", VirtualUsers: 2, Duration: 1.2, ThinkTime: int64Ptr(20),
	}}, env)
	require.True(t, res.Success, res.Error)
	m := res.Data.(loadgen.Metrics)
	assert.Zero(t, m.TotalErrors)
	assert.Positive(t, m.TotalRequests)

	mu.Lock()
	assert.NotEmpty(t, progress)
	mu.Unlock()

	res = exec.Execute(context.Background(), suite.Step{Config: &suite.LoadTestConfig{
		TargetURL: "/fail", VirtualUsers: 1, Duration: 0.2, ThinkTime: int64Ptr(20), MaxErrorRate: floatPtr(0.05),
	}}, env)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "error rate")

	res = exec.Execute(context.Background(), suite.Step{Config: &suite.LoadTestConfig{VirtualUsers: 0, Duration: 1}}, env)
	assert.False(t, res.Success)
}

func TestDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry(Options{})

	assert.Equal(t, []suite.StepType{suite.StepConditional, suite.StepExtraction, suite.StepRequest, suite.StepValidation}, r.StepTypes(suite.TestTypeAPI))
	assert.Equal(t, []suite.StepType{suite.StepAssertion, suite.StepConditional, suite.StepInteraction, suite.StepNavigation}, r.StepTypes(suite.TestTypeFunctional))

	_, ok := r.Lookup(suite.TestTypePerformance, suite.StepLoadTest)
	assert.True(t, ok)
	_, ok = r.Lookup(suite.TestTypeAPI, suite.StepLoadTest)
	assert.False(t, ok)
	_, ok = r.Lookup(suite.TestTypeAPI, "warp")
	assert.False(t, ok)
}

func TestRegistry_Validate(t *testing.T) {
	r := NewDefaultRegistry(Options{})

	s, err := suite.Parse([]byte(`
name: mixed
testType: API
steps:
  - type: request
    config: {method: GET, url: /health}
  - type: navigation
    config: {url: /login}
`))
	require.NoError(t, err)

	err = r.Validate(s)
	require.Error(t, err)
	var verrs suite.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, 2, verrs[0].Step)
	assert.Contains(t, verrs[0].Message, "not supported in API suites")

	s.Steps = s.Steps[:1]
	assert.NoError(t, r.Validate(s))
	assert.Error(t, r.Validate(nil))
}
