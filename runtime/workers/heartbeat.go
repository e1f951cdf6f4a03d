package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// OnlineCounter reports how many users currently hold a live connection.
type OnlineCounter interface {
	OnlineIDs() []string
}

// HeartbeatWorker periodically logs process health (RSS, CPU) together
// with the current presence headcount. It is observability only; nothing
// in the delivery path depends on it.
type HeartbeatWorker struct {
	log      *slog.Logger
	presence OnlineCounter
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, presence OnlineCounter, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, presence: presence, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rss, cpu, err := selfStats(proc)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.log.Info("Heartbeat",
				"online_users", len(w.presence.OnlineIDs()),
				"rss_bytes", rss,
				"cpu_percent", cpu,
			)
		}
	}
}

func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
