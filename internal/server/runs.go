package server

import (
	"sync"

	"assay/internal/events"
	"assay/internal/runner"

	"github.com/gorilla/websocket"
)

// maxFinishedRuns bounds the event logs kept for runs that have finished.
const maxFinishedRuns = 100

// trackedRun is a run started through the REST API.
type trackedRun struct {
	id       string
	orch     *runner.Orchestrator
	recorder *events.Recorder
	done     chan struct{}

	mu     sync.Mutex
	result *runner.RunResult
}

func (r *trackedRun) finish(result *runner.RunResult) {
	r.mu.Lock()
	r.result = result
	r.mu.Unlock()
	close(r.done)
}

func (r *trackedRun) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// runTracker indexes active and recently finished runs by ID.
type runTracker struct {
	mu       sync.RWMutex
	runs     map[string]*trackedRun
	finished []string
}

func newRunTracker() *runTracker {
	return &runTracker{runs: make(map[string]*trackedRun)}
}

func (t *runTracker) add(run *trackedRun) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[run.id] = run
}

func (t *runTracker) get(id string) (*trackedRun, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	run, ok := t.runs[id]
	return run, ok
}

// markFinished keeps the run's event log around until maxFinishedRuns
// newer runs have finished.
func (t *runTracker) markFinished(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finished = append(t.finished, id)
	for len(t.finished) > maxFinishedRuns {
		delete(t.runs, t.finished[0])
		t.finished = t.finished[1:]
	}
}

func (t *runTracker) activeCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, run := range t.runs {
		if !run.finished() {
			n++
		}
	}
	return n
}

// connLimiter caps and tracks open websocket connections.
type connLimiter struct {
	max int

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newConnLimiter(max int) *connLimiter {
	return &connLimiter{max: max, conns: make(map[*websocket.Conn]struct{})}
}

// reserve reports whether another connection may be opened.
func (l *connLimiter) reserve() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.max <= 0 || len(l.conns) < l.max
}

func (l *connLimiter) add(c *websocket.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.max > 0 && len(l.conns) >= l.max {
		return false
	}
	l.conns[c] = struct{}{}
	return true
}

func (l *connLimiter) remove(c *websocket.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.conns, c)
}

func (l *connLimiter) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}

func (l *connLimiter) closeAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for c := range l.conns {
		c.Close()
	}
}
