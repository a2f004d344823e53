package workers

import (
	"context"
	"log/slog"
	"os"
	"support-flow/observability"
	"time"

	"github.com/shirou/gopsutil/process"
)

// TelemetryWorker logs the desk counters together with the process usage
// every metricInterval.
type TelemetryWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	monitoring     *observability.Monitoring
}

func NewTelemetryWorker(log *slog.Logger, metricInterval time.Duration,
	monitoring *observability.Monitoring) *TelemetryWorker {
	return &TelemetryWorker{
		log:            log,
		metricInterval: metricInterval,
		monitoring:     monitoring,
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		case <-ticker.C:
			w.report(p)
		}
	}
}

func (w *TelemetryWorker) report(p *process.Process) {
	stats := w.monitoring.GetLatest()
	self, err := getSelfStats(p)
	if err != nil {
		w.log.Error("Failed to collect self stats", "err", err)
	}
	w.log.Info("Telemetry",
		"messages_appended", stats.MessagesAppended,
		"messages_deleted", stats.MessagesDeleted,
		"presence_writes", stats.PresenceWrites,
		"deliveries", stats.Deliveries,
		"delivery_retries", stats.DeliveryRetries,
		"dropped_events", stats.DroppedEvents,
		"subscriptions", stats.ActiveSubscriptions,
		"rss", self.RSS,
		"cpu", self.CPU,
		"status", self.Status,
	)
}

// getSelfStats retrieves memory, CPU and OS status for the given process.
func getSelfStats(p *process.Process) (observability.SelfStats, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return observability.SelfStats{}, err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return observability.SelfStats{}, err
	}

	status, err := p.Status()
	if err != nil {
		return observability.SelfStats{}, err
	}
	return observability.SelfStats{
		RSS:    memInfo.RSS,
		CPU:    cpuPercent,
		Status: observability.ToStatus(status),
	}, nil
}
