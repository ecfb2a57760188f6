// Package extract splits a raw yearly price table into per-hub series and
// writes them as one JSON document per year.
package extract

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/archiver"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/common"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/hub"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/table"
)

// ErrMissingInput is returned when the year's raw table does not exist.
var ErrMissingInput = errors.New("raw price table not found")

// FileName returns the hub archive file name for a year.
func FileName(year int) string {
	return fmt.Sprintf("ercot_%d_hubs.json", year)
}

// Extractor reads archived year tables from PricesDir and writes hub
// archives to OutDir (PricesDir when empty).
type Extractor struct {
	PricesDir    string
	OutDir       string
	Hubs         *hub.Set
	DeriveHubAvg bool
	Log          *zap.SugaredLogger
	Stats        *common.Stats
}

// Extract builds the hub archive for a year. Hubs absent from the table get
// an empty series so every configured key is present.
func (e *Extractor) Extract(year int) (*Archive, error) {
	src := archiver.Path(e.PricesDir, year)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, src)
		}
		return nil, err
	}

	tbl, err := table.ReadPrices(src)
	if err != nil {
		return nil, err
	}
	if !tbl.HasColumn(table.ColLocation) {
		return nil, fmt.Errorf("%s: %w: %s", filepath.Base(src), table.ErrColumnNotFound, table.ColLocation)
	}
	e.addRows(len(tbl.Rows))
	if tbl.Dropped > 0 {
		e.logger().Warnf("  %d: %d rows without a usable timestamp dropped", year, tbl.Dropped)
	}

	out := &Archive{Year: year}
	bySeries := make(map[string][]table.PriceRow)

	for _, h := range e.Hubs.All() {
		if h.ID == hub.HubAverage {
			continue // emitted once below
		}
		rows := tbl.Filter(h.ID)
		table.SortByTime(rows)
		bySeries[h.ID] = rows
		out.add(h.ID, prices(rows))
	}

	switch {
	case tbl.HasLocation(hub.HubAverage):
		rows := tbl.Filter(hub.HubAverage)
		table.SortByTime(rows)
		out.add(hub.HubAverage, prices(rows))
	case e.DeriveHubAvg:
		core := coreHubs(e.Hubs)
		out.add(hub.HubAverage, deriveAverage(core, bySeries))
		e.logger().Infof("  %d: %s derived from %d core hubs", year, hub.HubAverage, len(core))
	default:
		if _, listed := e.Hubs.Resolve(hub.HubAverage); listed {
			out.add(hub.HubAverage, nil)
		}
	}

	expected := common.HoursInYear(year) * intervalsPerHour(bySeries, e.Hubs.IDs())
	for _, s := range out.Series {
		if len(s.Prices) < expected {
			e.logger().Warnf("  %d: %s has %d values, expected %d", year, s.Hub, len(s.Prices), expected)
		}
	}
	return out, nil
}

// Write persists an archive to <OutDir>/ercot_<year>_hubs.json.
func (e *Extractor) Write(a *Archive) (string, error) {
	dest := filepath.Join(e.outDir(), FileName(a.Year))
	n, err := common.WriteJSONAtomic(dest, a)
	if err != nil {
		return "", fmt.Errorf("write %s: %w", dest, err)
	}
	if e.Stats != nil {
		e.Stats.AddBytes(n)
	}
	return dest, nil
}

// Run extracts and writes each year. Missing tables and schema mismatches
// are skips; other errors are collected and the batch continues.
func (e *Extractor) Run(ctx context.Context, years []int) error {
	if err := os.MkdirAll(e.outDir(), 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", e.outDir(), err)
	}

	var result *multierror.Error
	for _, year := range years {
		if ctx.Err() != nil {
			e.logger().Warn("Interrupted, stopping before remaining years")
			break
		}

		a, err := e.Extract(year)
		switch {
		case errors.Is(err, ErrMissingInput), errors.Is(err, table.ErrColumnNotFound):
			e.logger().Warnf("  %d: skipped: %v", year, err)
			e.skipped()
			continue
		case err != nil:
			e.logger().Errorf("  %d: failed: %v", year, err)
			e.failed()
			result = multierror.Append(result, fmt.Errorf("year %d: %w", year, err))
			continue
		}

		dest, err := e.Write(a)
		if err != nil {
			e.logger().Errorf("  %d: failed: %v", year, err)
			e.failed()
			result = multierror.Append(result, fmt.Errorf("year %d: %w", year, err))
			continue
		}
		e.logger().Infof("  %d: %d series -> %s", year, len(a.Series), filepath.Base(dest))
		e.completed()
	}
	return result.ErrorOrNil()
}

func prices(rows []table.PriceRow) []*float64 {
	out := make([]*float64, len(rows))
	for i, r := range rows {
		out[i] = r.Price
	}
	return out
}

func coreHubs(s *hub.Set) []hub.Hub {
	var out []hub.Hub
	for _, h := range s.Core() {
		if h.ID != hub.HubAverage {
			out = append(out, h)
		}
	}
	return out
}

// deriveAverage averages the core hubs at each interval of the first core
// hub's series. An interval is nil when any core hub lacks a price there.
func deriveAverage(core []hub.Hub, series map[string][]table.PriceRow) []*float64 {
	if len(core) == 0 {
		return []*float64{}
	}

	lookup := make([]map[int64]*float64, len(core))
	for i, h := range core {
		m := make(map[int64]*float64, len(series[h.ID]))
		for _, r := range series[h.ID] {
			m[r.Time.UnixMilli()] = r.Price
		}
		lookup[i] = m
	}

	anchor := series[core[0].ID]
	out := make([]*float64, len(anchor))
	for i, r := range anchor {
		key := r.Time.UnixMilli()
		sum := 0.0
		ok := true
		for _, m := range lookup {
			p := m[key]
			if p == nil {
				ok = false
				break
			}
			sum += *p
		}
		if ok {
			mean := sum / float64(len(lookup))
			out[i] = &mean
		}
	}
	return out
}

// intervalsPerHour infers the sampling rate from the median spacing of the
// first non-trivial series. Hourly data and anything unreadable yield 1.
func intervalsPerHour(series map[string][]table.PriceRow, order []string) int {
	for _, id := range order {
		rows := series[id]
		if len(rows) < 2 {
			continue
		}
		gaps := make([]time.Duration, 0, len(rows)-1)
		for i := 1; i < len(rows); i++ {
			if d := rows[i].Time.Sub(rows[i-1].Time); d > 0 {
				gaps = append(gaps, d)
			}
		}
		if len(gaps) == 0 {
			continue
		}
		sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
		median := gaps[len(gaps)/2]
		if median >= time.Hour {
			return 1
		}
		return int(math.Round(float64(time.Hour) / float64(median)))
	}
	return 1
}

func (e *Extractor) outDir() string {
	if e.OutDir != "" {
		return e.OutDir
	}
	return e.PricesDir
}

func (e *Extractor) logger() *zap.SugaredLogger {
	if e.Log == nil {
		return zap.NewNop().Sugar()
	}
	return e.Log
}

func (e *Extractor) addRows(n int) {
	if e.Stats != nil {
		e.Stats.AddRows(n)
	}
}

func (e *Extractor) completed() {
	if e.Stats != nil {
		e.Stats.Completed()
	}
}

func (e *Extractor) skipped() {
	if e.Stats != nil {
		e.Stats.Skipped()
	}
}

func (e *Extractor) failed() {
	if e.Stats != nil {
		e.Stats.Failed()
	}
}
