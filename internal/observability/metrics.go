package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics keeps in-process request and error counters. Keys are
// path|method|status (requests) and path|method|code (errors). A nil
// receiver is a no-op so wiring stays optional in tests.
type Metrics struct {
	mu        sync.Mutex
	requests  map[string]int64
	errors    map[string]int64
	totalTime map[string]time.Duration
}

// NewMetrics builds empty counter maps.
func NewMetrics() *Metrics {
	return &Metrics{
		requests:  make(map[string]int64),
		errors:    make(map[string]int64),
		totalTime: make(map[string]time.Duration),
	}
}

// RecordRequest counts one served request and accumulates its latency.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[key]++
	m.totalTime[key] += duration
}

// RecordError counts one request that ended in a domain error.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[key]++
}

// Snapshot copies out the request counters.
func (m *Metrics) Snapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyCounters(m.requests)
}

// ErrorSnapshot copies out the error counters.
func (m *Metrics) ErrorSnapshot() map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyCounters(m.errors)
}

func copyCounters(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
