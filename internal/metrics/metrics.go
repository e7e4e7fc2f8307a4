package metrics

import (
	"sync"
	"time"
)

// Metrics accumulates monitoring counters. Unlike the mirror records, these
// are read from the status endpoint's goroutine while the loop writes them,
// so access is mutex-guarded.
type Metrics struct {
	mutex      sync.RWMutex
	checks     map[string]int64
	failures   map[string]int64
	verdicts   map[string]map[string]int64
	lastJudged map[string]time.Time
	startTime  time.Time
}

// Snapshot is a point-in-time copy of all counters, shaped for JSON.
type Snapshot struct {
	Uptime        time.Duration            `json:"uptime"`
	TotalChecks   int64                    `json:"total_checks"`
	TotalFailures int64                    `json:"total_failures"`
	Domains       map[string]DomainMetrics `json:"domains"`
}

// DomainMetrics are the counters for one mirror group's domain.
type DomainMetrics struct {
	Checks     int64            `json:"checks"`
	Failures   int64            `json:"failures"`
	Verdicts   map[string]int64 `json:"verdicts,omitempty"`
	LastJudged time.Time        `json:"last_judged,omitzero"`
}

// New creates an empty Metrics.
func New() *Metrics {
	return &Metrics{
		checks:     make(map[string]int64),
		failures:   make(map[string]int64),
		verdicts:   make(map[string]map[string]int64),
		lastJudged: make(map[string]time.Time),
		startTime:  time.Now(),
	}
}

// RecordCheck counts one check attempt against a domain.
func (m *Metrics) RecordCheck(domain string, success bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.checks[domain]++
	if !success {
		m.failures[domain]++
	}
}

// RecordVerdict counts one per-mirror verdict for a domain.
func (m *Metrics) RecordVerdict(domain, verdict string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.verdicts[domain] == nil {
		m.verdicts[domain] = make(map[string]int64)
	}
	m.verdicts[domain][verdict]++
}

// MarkJudged records that a domain's group was judged at the given time.
func (m *Metrics) MarkJudged(domain string, at time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.lastJudged[domain] = at
}

// Snapshot copies all counters out under the read lock.
func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:  time.Since(m.startTime),
		Domains: make(map[string]DomainMetrics),
	}

	domains := make(map[string]bool)
	for d := range m.checks {
		domains[d] = true
	}
	for d := range m.verdicts {
		domains[d] = true
	}
	for d := range m.lastJudged {
		domains[d] = true
	}

	for d := range domains {
		snap.TotalChecks += m.checks[d]
		snap.TotalFailures += m.failures[d]

		dm := DomainMetrics{
			Checks:     m.checks[d],
			Failures:   m.failures[d],
			LastJudged: m.lastJudged[d],
		}
		if counts := m.verdicts[d]; len(counts) > 0 {
			dm.Verdicts = make(map[string]int64, len(counts))
			for v, n := range counts {
				dm.Verdicts[v] = n
			}
		}
		snap.Domains[d] = dm
	}
	return snap
}
