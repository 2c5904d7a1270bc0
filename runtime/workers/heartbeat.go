package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"course-chat/contract"
	"course-chat/observability"

	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*Heartbeat)(nil)

// Heartbeat samples the chat server's own process on a fixed interval and
// merges CPU and RSS figures into the monitor, then logs one snapshot line.
type Heartbeat struct {
	monitor  *observability.Monitor
	log      *slog.Logger
	interval time.Duration
}

func NewHeartbeat(monitor *observability.Monitor, log *slog.Logger, interval time.Duration) *Heartbeat {
	return &Heartbeat{monitor: monitor, log: log, interval: interval}
}

func (h *Heartbeat) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug("Stopping heartbeat")
			return ctx.Err()
		case now := <-ticker.C:
			h.sample(proc)
			h.monitor.LogSnapshot(now)
		}
	}
}

func (h *Heartbeat) sample(proc *process.Process) {
	cpu, err := proc.CPUPercent()
	if err != nil {
		h.log.Debug("CPU sample failed", "err", err)
		return
	}
	var rss uint64
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		rss = mem.RSS
	}
	h.monitor.MergeProcessStats(cpu, rss)
}
