package observability

import (
	"sync"
)

// Metrics provides basic in-memory counters for handled gateway events,
// executed commands and reported errors.
type Metrics struct {
	mu           sync.Mutex
	eventCount   map[string]int64
	commandCount map[string]int64
	errorCount   map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		eventCount:   make(map[string]int64),
		commandCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordEvent increments the counter for a translated gateway event.
func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCount[eventType]++
}

// RecordCommand increments the counter for an executed staff command.
func (m *Metrics) RecordCommand(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commandCount[name]++
}

// RecordError increments error counters by source.
func (m *Metrics) RecordError(source string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[source]++
}

// Snapshot returns copies of all counters.
func (m *Metrics) Snapshot() (events, commands, errors map[string]int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyCounts(m.eventCount), copyCounts(m.commandCount), copyCounts(m.errorCount)
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
