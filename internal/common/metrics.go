package common

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// WriteMetrics dumps the run's counters as a Prometheus textfile
// (node_exporter textfile collector format). An empty path is a no-op.
func WriteMetrics(path, tool, runID string, s *Stats) error {
	if path == "" {
		return nil
	}

	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"tool": tool, "run_id": runID}

	units := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   "gridlab",
		Name:        "units",
		Help:        "Units processed in the last run, by outcome.",
		ConstLabels: labels,
	}, []string{"outcome"})
	rows := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "gridlab",
		Name:        "rows",
		Help:        "Rows processed in the last run.",
		ConstLabels: labels,
	})
	bytes := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "gridlab",
		Name:        "bytes_written",
		Help:        "Artifact bytes written in the last run.",
		ConstLabels: labels,
	})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "gridlab",
		Name:        "run_duration_seconds",
		Help:        "Wall time of the last run.",
		ConstLabels: labels,
	})
	finished := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "gridlab",
		Name:        "last_run_timestamp_seconds",
		Help:        "Unix time the last run finished.",
		ConstLabels: labels,
	})

	reg.MustRegister(units, rows, bytes, duration, finished)

	units.WithLabelValues("completed").Set(float64(s.UnitsCompleted.Load()))
	units.WithLabelValues("skipped").Set(float64(s.UnitsSkipped.Load()))
	units.WithLabelValues("failed").Set(float64(s.UnitsFailed.Load()))
	rows.Set(float64(s.TotalRows.Load()))
	bytes.Set(float64(s.TotalBytes.Load()))
	duration.Set(s.Elapsed().Seconds())
	finished.SetToCurrentTime()

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
