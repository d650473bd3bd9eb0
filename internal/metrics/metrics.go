package metrics

import (
	"sync"
	"time"
)

// Counter and gauge names used across the bridge.
const (
	PollCycles           = "poll_cycles_total"
	PollEntryErrors      = "poll_entry_errors_total"
	PollCounterShrink    = "poll_counter_shrink_total"
	InboundForwarded     = "inbound_forwarded_total"
	InboundDropped       = "inbound_dropped_total"
	OutboundForwarded    = "outbound_forwarded_total"
	OutboundSendFailures = "outbound_send_failures_total"
	CommandsDispatched   = "commands_dispatched_total"
	JoinAttempts         = "join_attempts_total"
	JoinAbandoned        = "join_abandoned_total"
	BridgeCount          = "bridge_count"
)

// Registry is a minimal in-memory metrics store backing the operational
// HTTP endpoint. No external scrape format; the snapshot is served as
// JSON.
type Registry struct {
	mu        sync.RWMutex
	counters  map[string]int64
	gauges    map[string]float64
	startTime time.Time
}

// NewRegistry creates a new metrics registry
func NewRegistry() *Registry {
	return &Registry{
		counters:  make(map[string]int64),
		gauges:    make(map[string]float64),
		startTime: time.Now(),
	}
}

var globalRegistry = NewRegistry()

// Default returns the process-wide registry instance.
func Default() *Registry {
	return globalRegistry
}

// Increment adds one to a counter.
func (r *Registry) Increment(name string) {
	r.Add(name, 1)
}

// Add adds a value to a counter.
func (r *Registry) Add(name string, delta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] += delta
}

// SetGauge sets a gauge to the given value.
func (r *Registry) SetGauge(name string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[name] = value
}

// Counter returns the current value of a counter.
func (r *Registry) Counter(name string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// Snapshot is the JSON shape served by the ops endpoint.
type Snapshot struct {
	UptimeSeconds float64            `json:"uptime_seconds"`
	Counters      map[string]int64   `json:"counters"`
	Gauges        map[string]float64 `json:"gauges"`
}

// Export returns a copy of all metrics.
func (r *Registry) Export() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(r.startTime).Seconds(),
		Counters:      make(map[string]int64, len(r.counters)),
		Gauges:        make(map[string]float64, len(r.gauges)),
	}
	for k, v := range r.counters {
		snap.Counters[k] = v
	}
	for k, v := range r.gauges {
		snap.Gauges[k] = v
	}
	return snap
}

// Reset clears all metrics. Test helper.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = make(map[string]int64)
	r.gauges = make(map[string]float64)
	r.startTime = time.Now()
}

// Reset clears the process-wide registry. Test helper.
func Reset() {
	globalRegistry.Reset()
}
