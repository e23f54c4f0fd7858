package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"assay/internal/events"
	"assay/internal/metrics"
	"assay/internal/runner"
	"assay/pkg/logging"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait       = 10 * time.Second
	maxMessageBytes = 4 << 20
	sendBufferSize  = 256
)

// Client message types.
const (
	MessageExecute = "execute"
	MessageStop    = "stop"
	MessagePing    = "ping"
)

// Server-only message types; progress events use their event type.
const (
	MessageRunResult = "run_result"
	MessageError     = "error"
	MessagePong      = "pong"
)

// ClientMessage is a message received on /ws.
type ClientMessage struct {
	Type    string          `json:"type"`
	Suite   json.RawMessage `json:"suite,omitempty"`
	BaseURL string          `json:"baseUrl,omitempty"`
}

// ServerMessage is a non-event message sent on /ws.
type ServerMessage struct {
	Type      string    `json:"type"`
	RunID     string    `json:"runId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// wsClient is one websocket connection with its own orchestrator.
type wsClient struct {
	id     string
	server *Server
	conn   *websocket.Conn
	orch   *runner.Orchestrator

	send chan []byte
	done chan struct{}

	closeOnce sync.Once
	runs      sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if !s.conns.reserve() {
		writeError(w, http.StatusServiceUnavailable, "too many websocket connections")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn(subsystem, "Websocket upgrade failed: %v", err)
		return
	}
	if !s.conns.add(conn) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many connections"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(s.runCtx)
	c := &wsClient{
		id:     uuid.NewString(),
		server: s,
		conn:   conn,
		orch:   s.newOrchestrator(""),
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}

	closed := metrics.ConnectionOpened()
	logging.Info(subsystem, "Websocket client %s connected from %s", c.id, r.RemoteAddr)

	go c.writePump()
	c.readPump()

	c.close()
	c.runs.Wait()
	s.conns.remove(conn)
	closed()
	logging.Info(subsystem, "Websocket client %s disconnected", c.id)
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.done)
	})
}

func (c *wsClient) readPump() {
	pongWait := 2 * c.server.cfg.PingInterval
	c.conn.SetReadLimit(maxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug(subsystem, "Websocket client %s read error: %v", c.id, err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handleMessage(msg)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.server.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logging.Debug(subsystem, "Websocket client %s write failed: %v", c.id, err)
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// enqueue queues v for the writer without blocking. Messages are dropped
// when the client falls behind or has gone away.
func (c *wsClient) enqueue(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error(subsystem, err, "Failed to encode websocket message")
		return
	}
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- data:
	default:
		metrics.RecordDroppedMessage()
		logging.Warn(subsystem, "Send queue full for websocket client %s, dropping message", c.id)
	}
}

func (c *wsClient) sendError(runID, msg string) {
	c.enqueue(ServerMessage{Type: MessageError, RunID: runID, Timestamp: time.Now(), Error: msg})
}

// Report implements events.Reporter by forwarding events verbatim.
func (c *wsClient) Report(e events.Event) {
	c.enqueue(e)
}

func (c *wsClient) handleMessage(msg ClientMessage) {
	switch msg.Type {
	case MessageExecute:
		c.execute(msg)
	case MessageStop:
		if !c.orch.Running() {
			c.sendError("", "no run in progress")
			return
		}
		c.orch.Stop()
	case MessagePing:
		c.enqueue(ServerMessage{Type: MessagePong, Timestamp: time.Now()})
	default:
		c.sendError("", "unknown message type: "+msg.Type)
	}
}

func (c *wsClient) execute(msg ClientMessage) {
	if c.orch.Running() {
		c.sendError("", runner.ErrAlreadyRunning.Error())
		return
	}
	ts, err := decodeSuite(msg.Suite)
	if err != nil {
		c.sendError("", err.Error())
		return
	}
	c.server.prepareSuite(ts, msg.BaseURL)

	c.runs.Add(1)
	go func() {
		defer c.runs.Done()
		result, err := c.orch.Run(c.ctx, ts, c)
		if errors.Is(err, runner.ErrAlreadyRunning) {
			c.sendError("", err.Error())
			return
		}
		c.server.saveResult(result)
		c.enqueue(ServerMessage{
			Type:      MessageRunResult,
			RunID:     result.RunID,
			Timestamp: time.Now(),
			Payload:   result,
		})
	}()
}
