package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	turnCount     map[string]int64
	completions   map[string]int64
	closures      map[string]int64
	completionDur time.Duration
}

// Snapshot is a point in time copy of all counters.
type Snapshot struct {
	Requests              map[string]int64 `json:"requests"`
	Errors                map[string]int64 `json:"errors"`
	Turns                 map[string]int64 `json:"turns"`
	Completions           map[string]int64 `json:"completions"`
	Closures              map[string]int64 `json:"closures"`
	CompletionMillisTotal int64            `json:"completion_millis_total"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		turnCount:    make(map[string]int64),
		completions:  make(map[string]int64),
		closures:     make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordTurn counts a processed ticket message by outcome.
func (m *Metrics) RecordTurn(intent, action string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turnCount[intent+"|"+action]++
}

// RecordCompletion counts a provider call and its latency.
func (m *Metrics) RecordCompletion(ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	key := "error"
	if ok {
		key = "ok"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions[key]++
	m.completionDur += duration
}

// RecordClosure counts ticket closures by trigger.
func (m *Metrics) RecordClosure(trigger string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closures[trigger]++
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Requests:              copyCounts(m.requestCount),
		Errors:                copyCounts(m.errorCount),
		Turns:                 copyCounts(m.turnCount),
		Completions:           copyCounts(m.completions),
		Closures:              copyCounts(m.closures),
		CompletionMillisTotal: m.completionDur.Milliseconds(),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
