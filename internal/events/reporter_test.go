package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventType_Terminal(t *testing.T) {
	assert.True(t, EventSuiteComplete.Terminal())
	assert.True(t, EventSuiteStopped.Terminal())
	assert.True(t, EventSuiteError.Terminal())
	assert.False(t, EventStepComplete.Terminal())
	assert.False(t, EventSuiteStart.Terminal())
}

func TestRecorderAndMulti(t *testing.T) {
	a := NewRecorder()
	b := NewRecorder()
	var count int

	r := Multi(a, nil, b, ReporterFunc(func(Event) { count++ }))
	r.Report(New(EventSuiteStart, "run-1", 0, SuiteStartPayload{SuiteName: "s"}))
	r.Report(New(EventStepStart, "run-1", 1, nil))

	assert.Equal(t, []EventType{EventSuiteStart, EventStepStart}, a.Types())
	assert.Equal(t, a.Types(), b.Types())
	assert.Equal(t, 2, count)

	evts := a.Events()
	require.Len(t, evts, 2)
	assert.Equal(t, "run-1", evts[0].RunID)
	assert.Equal(t, 1, evts[1].StepNumber)
	assert.False(t, evts[0].Timestamp.IsZero())
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop().Report(Event{Type: EventSuiteStart}) })
}

func TestAsync_DeliversInOrder(t *testing.T) {
	rec := NewRecorder()
	a := NewAsync(rec, 16)

	for i := 1; i <= 10; i++ {
		a.Report(New(EventStepComplete, "r", i, nil))
	}
	a.Close()

	evts := rec.Events()
	require.Len(t, evts, 10)
	for i, e := range evts {
		assert.Equal(t, i+1, e.StepNumber)
	}
	assert.Zero(t, a.Dropped())
}

func TestAsync_NeverBlocksOnSlowSink(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var delivered int
	slow := ReporterFunc(func(Event) {
		<-release
		mu.Lock()
		delivered++
		mu.Unlock()
	})

	a := NewAsync(slow, 2)

	start := time.Now()
	for i := 0; i < 50; i++ {
		a.Report(New(EventStepProgress, "r", 1, nil))
	}
	assert.Less(t, time.Since(start), time.Second, "Report must not block")
	assert.Positive(t, a.Dropped())

	close(release)
	a.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int64(50), int64(delivered)+a.Dropped())
}

func TestAsync_SurvivesPanickingSink(t *testing.T) {
	rec := NewRecorder()
	first := true
	sink := ReporterFunc(func(e Event) {
		if first {
			first = false
			panic("boom")
		}
		rec.Report(e)
	})

	a := NewAsync(sink, 4)
	a.Report(New(EventSuiteStart, "r", 0, nil))
	a.Report(New(EventSuiteComplete, "r", 0, nil))
	a.Close()

	assert.Equal(t, []EventType{EventSuiteComplete}, rec.Types())

	a.Report(New(EventSuiteStart, "r", 0, nil))
	assert.Equal(t, int64(1), a.Dropped(), "reports after Close are dropped")
}
