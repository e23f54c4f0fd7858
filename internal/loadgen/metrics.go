package loadgen

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics summarises a load run. Latencies are in milliseconds.
type Metrics struct {
	VirtualUsers      int     `json:"virtualUsers"`
	Duration          float64 `json:"duration"`
	TotalRequests     int64   `json:"totalRequests"`
	TotalErrors       int64   `json:"totalErrors"`
	AvgResponseTime   float64 `json:"avgResponseTime"`
	MinResponseTime   float64 `json:"minResponseTime"`
	MaxResponseTime   float64 `json:"maxResponseTime"`
	P95ResponseTime   float64 `json:"p95ResponseTime"`
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	ErrorRate         float64 `json:"errorRate"`
}

// vuReport is what a single virtual user hands back when it finishes.
type vuReport struct {
	requests  int64
	errors    int64
	latencies []time.Duration
}

// collector gathers per-user reports and keeps running totals for ticks.
type collector struct {
	mu      sync.Mutex
	reports []vuReport

	requests  atomic.Int64
	errors    atomic.Int64
	latencyNs atomic.Int64
}

func (c *collector) observe(latency time.Duration, failed bool) {
	c.requests.Add(1)
	c.latencyNs.Add(int64(latency))
	if failed {
		c.errors.Add(1)
	}
}

func (c *collector) collect(r vuReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
}

// snapshot returns running totals while the run is in progress.
func (c *collector) snapshot(vus int, elapsed time.Duration) Metrics {
	m := Metrics{
		VirtualUsers:  vus,
		Duration:      elapsed.Seconds(),
		TotalRequests: c.requests.Load(),
		TotalErrors:   c.errors.Load(),
	}
	if m.TotalRequests > 0 {
		m.AvgResponseTime = toMillis(time.Duration(c.latencyNs.Load())) / float64(m.TotalRequests)
		m.ErrorRate = float64(m.TotalErrors) / float64(m.TotalRequests)
	}
	if m.Duration > 0 {
		m.RequestsPerSecond = float64(m.TotalRequests) / m.Duration
	}
	return m
}

// aggregate merges every user report into the final metrics.
func (c *collector) aggregate(vus int, duration time.Duration) Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := Metrics{
		VirtualUsers: vus,
		Duration:     duration.Seconds(),
	}

	var total time.Duration
	var all []time.Duration
	for _, r := range c.reports {
		m.TotalRequests += r.requests
		m.TotalErrors += r.errors
		for _, l := range r.latencies {
			total += l
		}
		all = append(all, r.latencies...)
	}

	if m.TotalRequests > 0 {
		m.AvgResponseTime = toMillis(total) / float64(m.TotalRequests)
		m.ErrorRate = float64(m.TotalErrors) / float64(m.TotalRequests)
	}
	if m.Duration > 0 {
		m.RequestsPerSecond = float64(m.TotalRequests) / m.Duration
	}

	if len(all) > 0 {
		sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
		m.MinResponseTime = toMillis(all[0])
		m.MaxResponseTime = toMillis(all[len(all)-1])
		m.P95ResponseTime = toMillis(percentile(all, 0.95))
	}
	return m
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
