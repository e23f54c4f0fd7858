package events

import (
	"sync"
	"sync/atomic"

	"assay/pkg/logging"
)

// Reporter receives progress events. Implementations must not block the
// caller for long; wrap slow sinks in an Async reporter.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(Event)

// Report calls f(e).
func (f ReporterFunc) Report(e Event) { f(e) }

type nopReporter struct{}

func (nopReporter) Report(Event) {}

// Nop returns a Reporter that discards every event.
func Nop() Reporter { return nopReporter{} }

// Multi fans events out to several reporters in order.
func Multi(reporters ...Reporter) Reporter {
	filtered := make([]Reporter, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			filtered = append(filtered, r)
		}
	}
	return ReporterFunc(func(e Event) {
		for _, r := range filtered {
			r.Report(e)
		}
	})
}

// Recorder keeps every reported event in memory.
type Recorder struct {
	mu     sync.RWMutex
	events []Event
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Report appends e.
func (r *Recorder) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []EventType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// LogReporter writes events through the logging package.
type LogReporter struct {
	Subsystem string
}

// Report logs e at debug level, failures at warn level.
func (l LogReporter) Report(e Event) {
	subsystem := l.Subsystem
	if subsystem == "" {
		subsystem = "Events"
	}
	switch e.Type {
	case EventStepError, EventSuiteError:
		if p, ok := e.Payload.(ErrorPayload); ok {
			logging.Warn(subsystem, "run %s: %s (step %d): %s", e.RunID, e.Type, p.StepNumber, p.Error)
			return
		}
		logging.Warn(subsystem, "run %s: %s", e.RunID, e.Type)
	default:
		logging.Debug(subsystem, "run %s: %s (step %d)", e.RunID, e.Type, e.StepNumber)
	}
}

// DefaultAsyncBuffer is the queue size used by NewAsync when size <= 0.
const DefaultAsyncBuffer = 256

// Async decouples the producer from a slow sink. Report enqueues without
// blocking and drops the event when the queue is full; a single goroutine
// delivers queued events to the sink in order.
type Async struct {
	sink    Reporter
	queue   chan Event
	done    chan struct{}
	dropped atomic.Int64

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewAsync starts the delivery goroutine for sink.
func NewAsync(sink Reporter, size int) *Async {
	if size <= 0 {
		size = DefaultAsyncBuffer
	}
	a := &Async{
		sink:  sink,
		queue: make(chan Event, size),
		done:  make(chan struct{}),
	}
	go a.drain()
	return a
}

func (a *Async) drain() {
	defer close(a.done)
	for e := range a.queue {
		a.deliver(e)
	}
}

func (a *Async) deliver(e Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("Events", "reporter panicked while handling %s: %v", e.Type, r)
		}
	}()
	a.sink.Report(e)
}

// Report enqueues e. It never blocks.
func (a *Async) Report(e Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return
	}
	select {
	case a.queue <- e:
	default:
		a.dropped.Add(1)
		logging.Debug("Events", "event queue full, dropping %s for run %s", e.Type, e.RunID)
	}
}

// Dropped returns how many events were discarded.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits until queued events are delivered.
func (a *Async) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.queue)
		a.mu.Unlock()
	})
	<-a.done
}
