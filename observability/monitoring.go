// Package observability aggregates relay counters and system metrics for the
// stats endpoint. Counters are atomic so every pipeline component can report
// without coordination.
package observability

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/mem"
)

// Monitor collects real-time telemetry about the relay.
type Monitor struct {
	startedAt time.Time

	ActiveConnections   atomic.Int64
	MessagesAccepted    atomic.Uint64
	MessagesRejected    atomic.Uint64
	PersistenceFailures atomic.Uint64
	InternalErrors      atomic.Uint64
	DeliveriesSucceeded atomic.Uint64
	DeliveriesFailed    atomic.Uint64
}

func NewMonitor() *Monitor {
	return &Monitor{startedAt: time.Now().UTC()}
}

func (m *Monitor) ConnectionOpened() { m.ActiveConnections.Add(1) }
func (m *Monitor) ConnectionClosed() { m.ActiveConnections.Add(-1) }

func (m *Monitor) IncrAccepted()            { m.MessagesAccepted.Add(1) }
func (m *Monitor) IncrRejected()            { m.MessagesRejected.Add(1) }
func (m *Monitor) IncrPersistenceFailures() { m.PersistenceFailures.Add(1) }
func (m *Monitor) IncrInternalErrors()      { m.InternalErrors.Add(1) }

func (m *Monitor) AddDeliveries(succeeded, failed int) {
	m.DeliveriesSucceeded.Add(uint64(succeeded))
	m.DeliveriesFailed.Add(uint64(failed))
}

// Snapshot returns the current counters together with process and host
// memory statistics. Host metrics failures are reported inline rather than
// failing the whole snapshot.
func (m *Monitor) Snapshot() map[string]any {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := map[string]any{
		"uptime_seconds":       int64(time.Since(m.startedAt).Seconds()),
		"active_connections":   m.ActiveConnections.Load(),
		"messages_accepted":    m.MessagesAccepted.Load(),
		"messages_rejected":    m.MessagesRejected.Load(),
		"persistence_failures": m.PersistenceFailures.Load(),
		"internal_errors":      m.InternalErrors.Load(),
		"deliveries_succeeded": m.DeliveriesSucceeded.Load(),
		"deliveries_failed":    m.DeliveriesFailed.Load(),
		"alloc_mem_mb":         ms.Alloc / 1024 / 1024,
		"num_gc":               ms.NumGC,
		"goroutines":           runtime.NumGoroutine(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats["host_mem_used_percent"] = vm.UsedPercent
	} else {
		stats["host_mem_error"] = err.Error()
	}
	return stats
}
