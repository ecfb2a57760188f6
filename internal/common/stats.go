package common

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Stats holds atomic counters for one batch run.
// A unit is one (year) or one (hub, year) or one (technology, hub) artifact.
type Stats struct {
	UnitsCompleted atomic.Uint64
	UnitsSkipped   atomic.Uint64
	UnitsFailed    atomic.Uint64
	TotalRows      atomic.Uint64
	TotalBytes     atomic.Uint64
	StartTime      time.Time

	// Internal state for reporter
	running  atomic.Bool
	stopCh   chan struct{}
	lastRows uint64
	lastTime time.Time
}

// NewStats creates a new Stats instance
func NewStats() *Stats {
	return &Stats{
		StartTime: time.Now(),
		stopCh:    make(chan struct{}),
	}
}

// Completed records a unit that produced its artifact.
func (s *Stats) Completed() { s.UnitsCompleted.Add(1) }

// Skipped records a unit whose input was absent or insufficient.
func (s *Stats) Skipped() { s.UnitsSkipped.Add(1) }

// Failed records a unit that errored.
func (s *Stats) Failed() { s.UnitsFailed.Add(1) }

// AddRows atomically increments the total rows processed counter
func (s *Stats) AddRows(count int) {
	if count > 0 {
		s.TotalRows.Add(uint64(count))
	}
}

// AddBytes atomically increments the total bytes written counter
func (s *Stats) AddBytes(count int64) {
	if count > 0 {
		s.TotalBytes.Add(uint64(count))
	}
}

// Elapsed returns wall time since the run started.
func (s *Stats) Elapsed() time.Duration {
	return time.Since(s.StartTime)
}

// StartReporter starts a background goroutine that logs row throughput
// at the given interval until StopReporter is called.
func (s *Stats) StartReporter(log *zap.SugaredLogger, every time.Duration) {
	if s.running.Load() {
		return // Already running
	}

	s.running.Store(true)
	s.lastTime = time.Now()
	s.lastRows = s.TotalRows.Load()

	go s.reporterLoop(log, every)
}

// StopReporter stops the background reporter goroutine
func (s *Stats) StopReporter() {
	if !s.running.Load() {
		return
	}

	s.running.Store(false)
	close(s.stopCh)
}

func (s *Stats) reporterLoop(log *zap.SugaredLogger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.printStatus(log)
		}
	}
}

func (s *Stats) printStatus(log *zap.SugaredLogger) {
	now := time.Now()
	elapsed := now.Sub(s.lastTime).Seconds()
	if elapsed < 0.001 {
		return
	}

	currentRows := s.TotalRows.Load()
	rps := float64(currentRows-s.lastRows) / elapsed

	log.Infof("[Progress] %.0f rows/sec | Units: %d done, %d skipped, %d failed | Total: %d rows",
		rps,
		s.UnitsCompleted.Load(),
		s.UnitsSkipped.Load(),
		s.UnitsFailed.Load(),
		currentRows,
	)

	s.lastRows = currentRows
	s.lastTime = now
}

// Summary logs the framed final statistics block.
func (s *Stats) Summary(log *zap.SugaredLogger, title string) {
	elapsed := s.Elapsed()

	log.Info("=========================================================")
	log.Info(title)
	log.Info("=========================================================")
	log.Infof("Completed: %d", s.UnitsCompleted.Load())
	log.Infof("Skipped:   %d", s.UnitsSkipped.Load())
	log.Infof("Failed:    %d", s.UnitsFailed.Load())
	if rows := s.TotalRows.Load(); rows > 0 {
		log.Infof("Rows:      %d", rows)
	}
	if b := s.TotalBytes.Load(); b > 0 {
		log.Infof("Written:   %.2f MB", float64(b)/1024/1024)
	}
	log.Infof("Elapsed:   %v", elapsed.Round(time.Millisecond))
	log.Info("=========================================================")
}
