package common

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NewRunID returns a unique id for one CLI invocation.
func NewRunID() string {
	return uuid.NewString()
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM. Batch
// loops check it between units.
func SignalContext(log *zap.SugaredLogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			log.Warn("Shutdown requested...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// Finish stops the progress reporter, writes the metrics textfile and logs
// the summary block. It returns the process exit code: 1 when any unit failed.
func Finish(log *zap.SugaredLogger, stats *Stats, title, tool, runID, metricsFile string) int {
	stats.StopReporter()
	stats.Summary(log, title)
	if err := WriteMetrics(metricsFile, tool, runID, stats); err != nil {
		log.Warnf("Metrics: %v", err)
	}
	if stats.UnitsFailed.Load() > 0 {
		return 1
	}
	return 0
}
