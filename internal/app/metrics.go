package app

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks host-level counters: document lifecycle activity,
// configuration reloads, and handler failures reported by the event bus.
// Detection-specific counters live on the detector itself.
type Metrics struct {
	mu sync.Mutex // guards startTime

	documentsOpened atomic.Uint64
	documentsClosed atomic.Uint64
	configReloads   atomic.Uint64
	handlerErrors   atomic.Uint64
	handlerPanics   atomic.Uint64

	// Open timing covers both lifecycle publishes, detection included.
	openTotalNs atomic.Int64
	openMinNs   atomic.Int64
	openMaxNs   atomic.Int64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
	}
	// Initialize min to max int64 so the first open will be smaller
	m.openMinNs.Store(1<<63 - 1)
	return m
}

// RecordOpen records one document open and how long its lifecycle
// publishes took.
func (m *Metrics) RecordOpen(duration time.Duration) {
	ns := duration.Nanoseconds()

	m.documentsOpened.Add(1)
	m.openTotalNs.Add(ns)

	// Update min (atomic compare-and-swap loop)
	for {
		old := m.openMinNs.Load()
		if ns >= old {
			break
		}
		if m.openMinNs.CompareAndSwap(old, ns) {
			break
		}
	}

	// Update max (atomic compare-and-swap loop)
	for {
		old := m.openMaxNs.Load()
		if ns <= old {
			break
		}
		if m.openMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordClose records one document close.
func (m *Metrics) RecordClose() {
	m.documentsClosed.Add(1)
}

// RecordConfigReload records one applied configuration change.
func (m *Metrics) RecordConfigReload() {
	m.configReloads.Add(1)
}

// RecordHandlerError records a handler that returned an error.
func (m *Metrics) RecordHandlerError() {
	m.handlerErrors.Add(1)
}

// RecordHandlerPanic records a handler panic recovered by the bus.
func (m *Metrics) RecordHandlerPanic() {
	m.handlerPanics.Add(1)
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	opened := m.documentsOpened.Load()

	var avgOpenNs int64
	if opened > 0 {
		avgOpenNs = m.openTotalNs.Load() / int64(opened)
	}

	minOpenNs := m.openMinNs.Load()
	if minOpenNs == 1<<63-1 {
		minOpenNs = 0
	}

	m.mu.Lock()
	start := m.startTime
	m.mu.Unlock()

	return MetricsSnapshot{
		Uptime:          time.Since(start),
		DocumentsOpened: opened,
		DocumentsClosed: m.documentsClosed.Load(),
		ConfigReloads:   m.configReloads.Load(),
		HandlerErrors:   m.handlerErrors.Load(),
		HandlerPanics:   m.handlerPanics.Load(),
		AvgOpenTimeNs:   avgOpenNs,
		MinOpenTimeNs:   minOpenNs,
		MaxOpenTimeNs:   m.openMaxNs.Load(),
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.documentsOpened.Store(0)
	m.documentsClosed.Store(0)
	m.configReloads.Store(0)
	m.handlerErrors.Store(0)
	m.handlerPanics.Store(0)
	m.openTotalNs.Store(0)
	m.openMinNs.Store(1<<63 - 1)
	m.openMaxNs.Store(0)

	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Uptime          time.Duration
	DocumentsOpened uint64
	DocumentsClosed uint64
	ConfigReloads   uint64
	HandlerErrors   uint64
	HandlerPanics   uint64
	AvgOpenTimeNs   int64
	MinOpenTimeNs   int64
	MaxOpenTimeNs   int64
}

// AvgOpenMs returns the average open time in milliseconds.
func (s MetricsSnapshot) AvgOpenMs() float64 {
	return float64(s.AvgOpenTimeNs) / 1e6
}

// Timer provides a simple way to measure elapsed time.
type Timer struct {
	start time.Time
}

// StartTimer creates a new timer.
func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the elapsed time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ElapsedMs returns the elapsed time in milliseconds.
func (t *Timer) ElapsedMs() float64 {
	return float64(t.Elapsed().Nanoseconds()) / 1e6
}

// Stop returns the elapsed time and resets the timer.
func (t *Timer) Stop() time.Duration {
	elapsed := t.Elapsed()
	t.start = time.Now()
	return elapsed
}

// appMetrics is the application-wide metrics instance.
var (
	appMetrics     *Metrics
	appMetricsOnce sync.Once
)

// GetMetrics returns the application metrics.
func GetMetrics() *Metrics {
	appMetricsOnce.Do(func() {
		if appMetrics == nil {
			appMetrics = NewMetrics()
		}
	})
	return appMetrics
}

// SetMetrics sets the application-wide metrics.
func SetMetrics(m *Metrics) {
	appMetrics = m
}
