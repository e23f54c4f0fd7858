package loadgen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"assay/pkg/logging"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// DefaultThinkTime is the pause between two calls of one virtual user.
	DefaultThinkTime = 100 * time.Millisecond
	// DefaultRequestTimeout bounds a single call.
	DefaultRequestTimeout = 10 * time.Second
	// DefaultErrorPenalty is the latency recorded for a call that failed
	// without a response.
	DefaultErrorPenalty = 5 * time.Second
	// DefaultTickInterval is how often OnTick receives running totals.
	DefaultTickInterval = time.Second
)

// ErrInvalidOptions is wrapped by every option validation error.
var ErrInvalidOptions = errors.New("invalid load options")

// Options describes one constant-concurrency load run.
type Options struct {
	TargetURL string
	Method    string
	Headers   map[string]string
	Body      []byte

	VirtualUsers int
	Duration     time.Duration

	// ThinkTime is used as-is; callers apply DefaultThinkTime when unset
	ThinkTime      time.Duration
	RequestTimeout time.Duration
	ErrorPenalty   time.Duration
	// RPS caps the combined request rate when positive
	RPS float64

	TickInterval time.Duration
	OnTick       func(Metrics)
}

func (o *Options) validate() error {
	if o.TargetURL == "" {
		return fmt.Errorf("%w: target URL is required", ErrInvalidOptions)
	}
	if !strings.HasPrefix(o.TargetURL, "http://") && !strings.HasPrefix(o.TargetURL, "https://") {
		return fmt.Errorf("%w: target URL %q must be absolute", ErrInvalidOptions, o.TargetURL)
	}
	if o.VirtualUsers <= 0 {
		return fmt.Errorf("%w: virtual users must be greater than 0", ErrInvalidOptions)
	}
	if o.Duration <= 0 {
		return fmt.Errorf("%w: duration must be greater than 0", ErrInvalidOptions)
	}
	return nil
}

func (o *Options) applyDefaults() {
	if o.Method == "" {
		o.Method = http.MethodGet
	}
	o.Method = strings.ToUpper(o.Method)
	if o.ThinkTime < 0 {
		o.ThinkTime = 0
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.ErrorPenalty <= 0 {
		o.ErrorPenalty = DefaultErrorPenalty
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
}

// Generator runs load against HTTP targets.
type Generator struct {
	client *http.Client
}

// New creates a generator. A nil client gets a pooled transport sized per run.
func New(client *http.Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) clientFor(vus int) *http.Client {
	if g.client != nil {
		return g.client
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = vus * 2
	transport.MaxIdleConnsPerHost = vus
	return &http.Client{Transport: transport}
}

// Run starts exactly VirtualUsers callers at once and lets each call the
// target until Duration elapses, pausing ThinkTime between calls. A failed
// call never stops its caller. Cancelling ctx ends the run early; the
// metrics then cover what completed.
func (g *Generator) Run(ctx context.Context, opts Options) (Metrics, error) {
	if err := opts.validate(); err != nil {
		return Metrics{}, err
	}
	opts.applyDefaults()

	client := g.clientFor(opts.VirtualUsers)
	if g.client == nil {
		defer client.CloseIdleConnections()
	}

	var limiter *rate.Limiter
	if opts.RPS > 0 {
		burst := int(opts.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	logging.Debug("LoadGen", "Starting %d virtual users against %s %s for %s", opts.VirtualUsers, opts.Method, opts.TargetURL, opts.Duration)

	col := &collector{}
	start := time.Now()
	deadline := start.Add(opts.Duration)

	tickCtx, stopTicks := context.WithCancel(ctx)
	defer stopTicks()
	if opts.OnTick != nil {
		go func() {
			ticker := time.NewTicker(opts.TickInterval)
			defer ticker.Stop()
			for {
				select {
				case <-tickCtx.Done():
					return
				case <-ticker.C:
					opts.OnTick(col.snapshot(opts.VirtualUsers, time.Since(start)))
				}
			}
		}()
	}

	var group errgroup.Group
	for id := 0; id < opts.VirtualUsers; id++ {
		w := &worker{
			id:       id,
			client:   client,
			opts:     &opts,
			limiter:  limiter,
			col:      col,
			deadline: deadline,
		}
		group.Go(func() error {
			col.collect(w.run(ctx))
			return nil
		})
	}
	_ = group.Wait()
	stopTicks()

	m := col.aggregate(opts.VirtualUsers, opts.Duration)
	logging.Debug("LoadGen", "Load run finished: %d requests, %d errors, avg %.1fms", m.TotalRequests, m.TotalErrors, m.AvgResponseTime)
	return m, nil
}

type worker struct {
	id       int
	client   *http.Client
	opts     *Options
	limiter  *rate.Limiter
	col      *collector
	deadline time.Time
}

func (w *worker) run(ctx context.Context) vuReport {
	var report vuReport
	timer := time.NewTimer(0)
	<-timer.C
	defer timer.Stop()

	for {
		if ctx.Err() != nil || !time.Now().Before(w.deadline) {
			return report
		}

		if w.limiter != nil {
			waitCtx, cancel := context.WithDeadline(ctx, w.deadline)
			err := w.limiter.Wait(waitCtx)
			cancel()
			if err != nil {
				return report
			}
		}

		latency, failed, cancelled := w.call(ctx)
		if cancelled {
			return report
		}
		report.requests++
		report.latencies = append(report.latencies, latency)
		if failed {
			report.errors++
		}
		w.col.observe(latency, failed)

		if w.opts.ThinkTime > 0 {
			remaining := time.Until(w.deadline)
			if remaining <= 0 {
				return report
			}
			pause := w.opts.ThinkTime
			if pause > remaining {
				pause = remaining
			}
			timer.Reset(pause)
			select {
			case <-ctx.Done():
				return report
			case <-timer.C:
			}
		}
	}
}

// call performs one request. A call aborted because ctx ended is reported
// as cancelled and not counted.
func (w *worker) call(ctx context.Context) (latency time.Duration, failed bool, cancelled bool) {
	reqCtx, cancel := context.WithTimeout(ctx, w.opts.RequestTimeout)
	defer cancel()

	var body io.Reader
	if len(w.opts.Body) > 0 {
		body = bytes.NewReader(w.opts.Body)
	}

	req, err := http.NewRequestWithContext(reqCtx, w.opts.Method, w.opts.TargetURL, body)
	if err != nil {
		return w.opts.ErrorPenalty, true, false
	}
	for k, v := range w.opts.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := w.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, false, true
		}
		logging.Debug("LoadGen", "virtual user %d: request failed: %v", w.id, err)
		return w.opts.ErrorPenalty, true, false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return time.Since(start), resp.StatusCode >= 400, false
}
