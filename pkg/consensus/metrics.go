package consensus

import (
	"sync"
	"time"
)

// Metrics tracks consensus engine activity
type Metrics struct {
	requestsCreated   int64
	responsesAccepted int64
	responsesRejected int64
	requestsFinalized int64
	requestsExpired   int64
	lastUpdate        time.Time
	mu                sync.RWMutex
}

// Stats is a point-in-time view of consensus activity
type Stats struct {
	ActiveRequests    int
	RequestsCreated   int64
	ResponsesAccepted int64
	ResponsesRejected int64
	RequestsFinalized int64
	RequestsExpired   int64
	LastUpdate        time.Time
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncrementRequestsCreated increments the requestsCreated counter
func (m *Metrics) IncrementRequestsCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsCreated++
	m.lastUpdate = time.Now()
}

// IncrementResponsesAccepted increments the responsesAccepted counter
func (m *Metrics) IncrementResponsesAccepted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responsesAccepted++
	m.lastUpdate = time.Now()
}

// IncrementResponsesRejected increments the responsesRejected counter
func (m *Metrics) IncrementResponsesRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responsesRejected++
	m.lastUpdate = time.Now()
}

// IncrementRequestsFinalized increments the requestsFinalized counter
func (m *Metrics) IncrementRequestsFinalized() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsFinalized++
	m.lastUpdate = time.Now()
}

// IncrementRequestsExpired increments the requestsExpired counter
func (m *Metrics) IncrementRequestsExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsExpired++
	m.lastUpdate = time.Now()
}

// GetStats returns the current consensus statistics
func (m *Metrics) GetStats(activeRequests int) Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		ActiveRequests:    activeRequests,
		RequestsCreated:   m.requestsCreated,
		ResponsesAccepted: m.responsesAccepted,
		ResponsesRejected: m.responsesRejected,
		RequestsFinalized: m.requestsFinalized,
		RequestsExpired:   m.requestsExpired,
		LastUpdate:        m.lastUpdate,
	}
}
