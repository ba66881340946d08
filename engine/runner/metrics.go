package runner

import "sync"

// Metrics is the host counter-metric API. Token usage counters are emitted
// through it as a side effect of task execution, not returned in-band.
type Metrics interface {
	Counter(name string, value int64)
}

// NopMetrics discards every emission.
type NopMetrics struct{}

func (NopMetrics) Counter(string, int64) {}

// Recorder accumulates counters in memory, for tests and local inspection.
type Recorder struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewRecorder() *Recorder {
	return &Recorder{counts: make(map[string]int64)}
}

func (r *Recorder) Counter(name string, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[name] += value
}

func (r *Recorder) Get(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}
