package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"assay/internal/config"
	"assay/internal/runner"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wireMessage struct {
	Type       string          `json:"type"`
	RunID      string          `json:"runId"`
	StepNumber int             `json:"stepNumber"`
	Payload    json.RawMessage `json:"payload"`
	Error      string          `json:"error"`
}

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wireMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readUntil collects messages up to and including the first of type want.
func readUntil(t *testing.T, conn *websocket.Conn, want string) []wireMessage {
	t.Helper()
	var out []wireMessage
	for {
		msg := readMessage(t, conn)
		out = append(out, msg)
		if msg.Type == want {
			return out
		}
	}
}

func types(msgs []wireMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func TestWebsocket_PingPongAndUnknown(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	conn := dialWS(t, env)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessagePing}))
	assert.Equal(t, MessagePong, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "dance"}))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageError, msg.Type)
	assert.Contains(t, msg.Error, "unknown message type")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageStop}))
	msg = readMessage(t, conn)
	assert.Equal(t, MessageError, msg.Type)
	assert.Equal(t, "no run in progress", msg.Error)
}

func TestWebsocket_ExecuteStreamsEvents(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	conn := dialWS(t, env)

	require.NoError(t, conn.WriteJSON(ClientMessage{
		Type:    MessageExecute,
		Suite:   json.RawMessage(suiteJSON("ws smoke", "/ok", "/ok")),
		BaseURL: env.target.URL,
	}))

	msgs := readUntil(t, conn, MessageRunResult)
	assert.Equal(t, []string{
		"suite_start",
		"step_prepare", "step_start", "step_complete",
		"step_prepare", "step_start", "step_complete",
		"suite_complete",
		MessageRunResult,
	}, types(msgs))

	last := msgs[len(msgs)-1]
	var result runner.RunResult
	require.NoError(t, json.Unmarshal(last.Payload, &result))
	assert.Equal(t, runner.StatusPassed, result.Status)
	assert.Equal(t, result.RunID, last.RunID)
	assert.Equal(t, result.RunID, msgs[0].RunID)

	require.Eventually(t, func() bool {
		_, err := env.store.Get(t.Context(), result.RunID)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "result is saved")
}

func TestWebsocket_InvalidSuite(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	conn := dialWS(t, env)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageExecute}))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageError, msg.Type)
	assert.Equal(t, "suite is required", msg.Error)
}

func TestWebsocket_SecondExecuteRejected(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	conn := dialWS(t, env)

	execute := ClientMessage{
		Type:    MessageExecute,
		Suite:   json.RawMessage(suiteJSON("slow", "/slow")),
		BaseURL: env.target.URL,
	}
	require.NoError(t, conn.WriteJSON(execute))
	require.NoError(t, conn.WriteJSON(execute))

	var sawError bool
	results := 0
	for results == 0 {
		msg := readMessage(t, conn)
		switch msg.Type {
		case MessageError:
			sawError = true
			assert.Equal(t, runner.ErrAlreadyRunning.Error(), msg.Error)
		case MessageRunResult:
			results++
		}
	}
	assert.True(t, sawError, "second execute must be rejected")
}

func TestWebsocket_StopDuringRun(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{})
	conn := dialWS(t, env)

	require.NoError(t, conn.WriteJSON(ClientMessage{
		Type:    MessageExecute,
		Suite:   json.RawMessage(suiteJSON("stoppable", "/slow", "/ok", "/ok")),
		BaseURL: env.target.URL,
	}))

	readUntil(t, conn, "step_start")
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageStop}))

	msgs := readUntil(t, conn, MessageRunResult)
	assert.Contains(t, types(msgs), "suite_stopped")

	var result runner.RunResult
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Payload, &result))
	assert.Equal(t, runner.StatusStopped, result.Status)
	assert.Len(t, result.Steps, 1)
}

func TestWebsocket_ConnectionLimit(t *testing.T) {
	env := newTestEnv(t, config.ServerConfig{MaxConnections: 1})
	first := dialWS(t, env)

	require.NoError(t, first.WriteJSON(ClientMessage{Type: MessagePing}))
	require.Equal(t, MessagePong, readMessage(t, first).Type)

	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
