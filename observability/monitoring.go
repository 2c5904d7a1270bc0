// Package observability aggregates runtime counters for the chat service.
package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Stats is the snapshot served by /healthz and logged by the heartbeat.
type Stats struct {
	ActiveSessions     int64   `json:"active_sessions"`
	JoinedRooms        int64   `json:"joined_rooms"`
	MessagesDispatched uint64  `json:"messages_dispatched"`
	MessagesBroadcast  uint64  `json:"messages_broadcast"`
	DeliveryErrors     uint64  `json:"delivery_errors"`
	DroppedEvents      uint64  `json:"dropped_events"`
	AllocMemMb         uint64  `json:"alloc_mem_mb"`
	NumGC              uint32  `json:"num_gc"`
	CPUPercent         float64 `json:"cpu_percent"`
	RSSBytes           uint64  `json:"rss_bytes"`
}

// Monitor owns the atomic counters incremented by the gateway and the
// dispatch workers. Process-level figures (CPU, RSS) are merged in by the
// heartbeat worker.
type Monitor struct {
	log *slog.Logger

	activeSessions     atomic.Int64
	joinedRooms        atomic.Int64
	messagesDispatched atomic.Uint64
	messagesBroadcast  atomic.Uint64
	deliveryErrors     atomic.Uint64
	droppedEvents      atomic.Uint64

	mu         sync.RWMutex
	cpuPercent float64
	rssBytes   uint64
}

func NewMonitor(log *slog.Logger) *Monitor {
	return &Monitor{log: log}
}

func (m *Monitor) SessionOpened()     { m.activeSessions.Add(1) }
func (m *Monitor) SessionClosed()     { m.activeSessions.Add(-1) }
func (m *Monitor) RoomJoined()        { m.joinedRooms.Add(1) }
func (m *Monitor) RoomLeft()          { m.joinedRooms.Add(-1) }
func (m *Monitor) MessageDispatched() { m.messagesDispatched.Add(1) }
func (m *Monitor) MessageBroadcast()  { m.messagesBroadcast.Add(1) }
func (m *Monitor) DeliveryError()     { m.deliveryErrors.Add(1) }
func (m *Monitor) EventDropped()      { m.droppedEvents.Add(1) }

// MergeProcessStats records the latest self-process figures sampled by the
// heartbeat worker.
func (m *Monitor) MergeProcessStats(cpuPercent float64, rssBytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cpuPercent = cpuPercent
	m.rssBytes = rssBytes
}

// Snapshot assembles the current counters plus Go memory figures.
func (m *Monitor) Snapshot() Stats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.mu.RLock()
	cpu, rss := m.cpuPercent, m.rssBytes
	m.mu.RUnlock()

	return Stats{
		ActiveSessions:     m.activeSessions.Load(),
		JoinedRooms:        m.joinedRooms.Load(),
		MessagesDispatched: m.messagesDispatched.Load(),
		MessagesBroadcast:  m.messagesBroadcast.Load(),
		DeliveryErrors:     m.deliveryErrors.Load(),
		DroppedEvents:      m.droppedEvents.Load(),
		AllocMemMb:         mem.Alloc / 1024 / 1024,
		NumGC:              mem.NumGC,
		CPUPercent:         cpu,
		RSSBytes:           rss,
	}
}

// LogSnapshot writes the snapshot as one structured log line.
func (m *Monitor) LogSnapshot(at time.Time) {
	stats := m.Snapshot()
	m.log.Info("Runtime snapshot",
		"at", at.UTC().Format(time.RFC3339),
		"sessions", stats.ActiveSessions,
		"rooms", stats.JoinedRooms,
		"dispatched", stats.MessagesDispatched,
		"broadcast", stats.MessagesBroadcast,
		"delivery_errors", stats.DeliveryErrors,
		"dropped", stats.DroppedEvents,
		"alloc_mb", stats.AllocMemMb,
		"cpu_percent", stats.CPUPercent,
		"rss_bytes", stats.RSSBytes)
}
