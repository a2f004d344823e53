package workers

import (
	"context"
	"log/slog"
	"os"
	"support-flow/observability"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/shirou/gopsutil/process"
	"github.com/stretchr/testify/require"
)

func TestTelemetryWorker_Stops_On_Cancel(t *testing.T) {
	req := require.New(t)
	monitoring := observability.NewMonitoring()
	monitoring.IncrMessagesAppended()
	worker := NewTelemetryWorker(logs.GetLoggerFromLevel(slog.LevelDebug), 5*time.Millisecond, monitoring)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Several reports run before the context ends
	req.NoError(worker.Run(ctx))
}

func TestGetSelfStats(t *testing.T) {
	req := require.New(t)
	p, err := process.NewProcess(int32(os.Getpid()))
	req.NoError(err)

	stats, err := getSelfStats(p)
	req.NoError(err)
	req.NotZero(stats.RSS)
	req.NotEmpty(stats.Status)
}
