// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

// Package metrics records one AttemptRecord per provider attempt and serves
// aggregated statistics over them. Retention is bounded: raw records live in
// a fixed-capacity ring buffer while per-provider counters are maintained
// incrementally on append, so aggregate totals survive ring eviction and
// only tail-latency percentiles are limited to the ring window.
package metrics

import (
	"cmp"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kiln-dev/kiln/internal/provider"
	"github.com/kiln-dev/kiln/pkg/types"
)

// DefaultRetention is the default ring-buffer capacity.
const DefaultRetention = 4096

// Attempt is the immutable record of one provider attempt within a request.
type Attempt struct {
	Time        time.Time            `json:"time"`
	RequestID   string               `json:"request_id"`
	Provider    string               `json:"provider"`
	Modality    types.Modality       `json:"modality"`
	Tier        types.Tier           `json:"tier"`
	Success     bool                 `json:"success"`
	FailureKind provider.FailureKind `json:"failure_kind,omitempty"`
	Latency     time.Duration        `json:"latency"`
	BilledUnits int64                `json:"billed_units"`
}

// counters is the incrementally maintained aggregate for one provider.
type counters struct {
	attempts       int64
	successes      int64
	failures       int64
	failuresByKind map[provider.FailureKind]int64
	totalLatency   time.Duration
	billedUnits    int64
}

func newCounters() *counters {
	return &counters{failuresByKind: make(map[provider.FailureKind]int64)}
}

func (c *counters) add(a Attempt) {
	c.attempts++
	c.totalLatency += a.Latency
	if a.Success {
		c.successes++
		c.billedUnits += a.BilledUnits
		return
	}
	c.failures++
	if a.FailureKind != "" {
		c.failuresByKind[a.FailureKind]++
	}
}

// Collector is the process-wide attempt store. Appends are O(1) under a
// short critical section; Report copies state out under the lock and folds
// percentiles outside it.
type Collector struct {
	mu        sync.Mutex
	ring      []Attempt
	next      int
	filled    bool
	byProv    map[string]*counters
	total     *counters
	clearedAt time.Time
}

// NewCollector creates a Collector retaining up to retention raw records.
// A non-positive retention falls back to DefaultRetention.
func NewCollector(retention int) *Collector {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Collector{
		ring:   make([]Attempt, retention),
		byProv: make(map[string]*counters),
		total:  newCounters(),
	}
}

// Record appends one attempt record.
func (c *Collector) Record(a Attempt) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ring[c.next] = a
	c.next++
	if c.next == len(c.ring) {
		c.next = 0
		c.filled = true
	}

	pc, ok := c.byProv[a.Provider]
	if !ok {
		pc = newCounters()
		c.byProv[a.Provider] = pc
	}
	pc.add(a)
	c.total.add(a)
}

// Clear discards all records and aggregates.
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.next = 0
	c.filled = false
	c.byProv = make(map[string]*counters)
	c.total = newCounters()
	c.clearedAt = time.Now()
}

// Recent returns up to n of the most recent records, newest first.
func (c *Collector) Recent(n int) []Attempt {
	c.mu.Lock()
	records := c.snapshotRingLocked()
	c.mu.Unlock()

	if n <= 0 || n > len(records) {
		n = len(records)
	}
	out := make([]Attempt, n)
	for i := 0; i < n; i++ {
		out[i] = records[len(records)-1-i]
	}
	return out
}

// snapshotRingLocked copies current ring contents oldest-first.
// Caller must hold c.mu.
func (c *Collector) snapshotRingLocked() []Attempt {
	if !c.filled {
		return slices.Clone(c.ring[:c.next])
	}
	out := make([]Attempt, 0, len(c.ring))
	out = append(out, c.ring[c.next:]...)
	out = append(out, c.ring[:c.next]...)
	return out
}

// ProviderStats is the aggregated view of one provider's attempts.
type ProviderStats struct {
	Provider       string           `json:"provider"`
	Attempts       int64            `json:"attempts"`
	Successes      int64            `json:"successes"`
	Failures       int64            `json:"failures"`
	FailuresByKind map[string]int64 `json:"failures_by_kind,omitempty"`
	AvgLatencyMS   int64            `json:"avg_latency_ms"`
	P95LatencyMS   int64            `json:"p95_latency_ms"`
	BilledUnits    int64            `json:"billed_units"`
}

// Report is the full aggregated metrics view.
type Report struct {
	GeneratedAt    time.Time       `json:"generated_at"`
	ClearedAt      *time.Time      `json:"cleared_at,omitempty"`
	TotalAttempts  int64           `json:"total_attempts"`
	TotalSuccesses int64           `json:"total_successes"`
	TotalFailures  int64           `json:"total_failures"`
	TotalBilled    int64           `json:"total_billed_units"`
	Providers      []ProviderStats `json:"providers"`
}

// Report aggregates current state. Counter totals reflect every record ever
// appended since the last Clear; p95 latency is computed over the retained
// ring window.
func (c *Collector) Report() Report {
	c.mu.Lock()
	records := c.snapshotRingLocked()
	provCopy := make(map[string]counters, len(c.byProv))
	for id, pc := range c.byProv {
		cp := *pc
		cp.failuresByKind = make(map[provider.FailureKind]int64, len(pc.failuresByKind))
		for k, v := range pc.failuresByKind {
			cp.failuresByKind[k] = v
		}
		provCopy[id] = cp
	}
	total := *c.total
	clearedAt := c.clearedAt
	c.mu.Unlock()

	// Percentile fold happens outside the lock.
	latByProv := make(map[string][]time.Duration)
	for _, a := range records {
		latByProv[a.Provider] = append(latByProv[a.Provider], a.Latency)
	}

	rep := Report{
		GeneratedAt:    time.Now(),
		TotalAttempts:  total.attempts,
		TotalSuccesses: total.successes,
		TotalFailures:  total.failures,
		TotalBilled:    total.billedUnits,
	}
	if !clearedAt.IsZero() {
		rep.ClearedAt = &clearedAt
	}

	for id, pc := range provCopy {
		st := ProviderStats{
			Provider:    id,
			Attempts:    pc.attempts,
			Successes:   pc.successes,
			Failures:    pc.failures,
			BilledUnits: pc.billedUnits,
		}
		if len(pc.failuresByKind) > 0 {
			st.FailuresByKind = make(map[string]int64, len(pc.failuresByKind))
			for k, v := range pc.failuresByKind {
				st.FailuresByKind[string(k)] = v
			}
		}
		if pc.attempts > 0 {
			st.AvgLatencyMS = (pc.totalLatency / time.Duration(pc.attempts)).Milliseconds()
		}
		st.P95LatencyMS = percentile(latByProv[id], 95).Milliseconds()
		rep.Providers = append(rep.Providers, st)
	}

	slices.SortFunc(rep.Providers, func(a, b ProviderStats) int {
		return cmp.Compare(a.Provider, b.Provider)
	})
	return rep
}

// percentile computes the pth percentile (nearest-rank) of the given
// latencies; zero when no samples are retained.
func percentile(lat []time.Duration, p int) time.Duration {
	if len(lat) == 0 {
		return 0
	}
	sorted := slices.Clone(lat)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rank := (p*len(sorted) + 99) / 100 // ceil(p/100 * n)
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
