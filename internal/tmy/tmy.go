// Package tmy averages multi-year capacity-factor profiles into a single
// typical-year profile per technology and hub.
package tmy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/common"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/hub"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/profile"
)

// ErrNoProfiles is returned when no year qualified for averaging.
var ErrNoProfiles = errors.New("no qualifying profiles")

// Precision is the number of decimals kept in a typical-year profile.
const Precision = 4

// Result is one aggregated profile.
type Result struct {
	Technology profile.Technology
	Hub        string
	Years      []int
	Profile    profile.Profile
	Path       string // empty until written
}

// Aggregator reads yearly profiles from Dir and writes TMY files to OutDir
// (Dir when empty).
type Aggregator struct {
	Dir    string
	OutDir string
	Years  []int
	Log    *zap.SugaredLogger
	Stats  *common.Stats
}

// Aggregate averages every qualifying year for tech/hubKey and persists the
// result. Missing years are ignored; short or unreadable ones are logged.
func (a *Aggregator) Aggregate(tech profile.Technology, hubKey string) (*Result, error) {
	var (
		sum   []float64
		years []int
	)

	for _, year := range a.Years {
		path := filepath.Join(a.Dir, profile.FileName(tech, hubKey, year))
		if !common.FileExists(path) {
			continue
		}

		p, err := profile.Load(path)
		if err != nil {
			a.logger().Warnf("  %s %s %d: unreadable, skipped: %v", tech, hubKey, year, err)
			continue
		}
		if len(p) < profile.HoursPerTypicalYear {
			a.logger().Warnf("  %s %s %d: only %d hours, skipped", tech, hubKey, year, len(p))
			continue
		}

		p = profile.Truncate(p)
		if sum == nil {
			sum = make([]float64, profile.HoursPerTypicalYear)
		}
		for i, v := range p {
			sum[i] += v
		}
		years = append(years, year)
	}

	if len(years) == 0 {
		return nil, fmt.Errorf("%s %s: %w", tech, hubKey, ErrNoProfiles)
	}

	res := &Result{
		Technology: tech,
		Hub:        hubKey,
		Years:      years,
		Profile:    Mean(sum, len(years)),
	}

	res.Path = filepath.Join(a.outDir(), profile.TMYFileName(tech, hubKey))
	n, err := profile.Save(res.Path, res.Profile)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", filepath.Base(res.Path), err)
	}
	if a.Stats != nil {
		a.Stats.AddRows(len(years) * profile.HoursPerTypicalYear)
		a.Stats.AddBytes(n)
	}
	return res, nil
}

// Mean divides accumulated sums by count and rounds to Precision decimals.
func Mean(sum []float64, count int) profile.Profile {
	out := make(profile.Profile, len(sum))
	if count == 0 {
		return out
	}
	for i, s := range sum {
		out[i] = Round(s/float64(count), Precision)
	}
	return out
}

// Round rounds v to the given number of decimals using the exact binary
// value, so 0.28745 (stored just below the half) becomes 0.2874.
func Round(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', decimals, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// Run aggregates every technology for every hub. A unit with no qualifying
// years is a skip, not a failure.
func (a *Aggregator) Run(ctx context.Context, hubs []hub.Hub) error {
	if err := os.MkdirAll(a.outDir(), 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", a.outDir(), err)
	}

	var result *multierror.Error
	for _, tech := range profile.Technologies {
		for _, h := range hubs {
			if ctx.Err() != nil {
				a.logger().Warn("Interrupted, stopping before remaining units")
				return result.ErrorOrNil()
			}

			res, err := a.Aggregate(tech, h.Key())
			switch {
			case errors.Is(err, ErrNoProfiles):
				a.logger().Warnf("  %s %s: no data found", tech, h.Key())
				a.skipped()
			case err != nil:
				a.logger().Errorf("  %s %s: failed: %v", tech, h.Key(), err)
				a.failed()
				result = multierror.Append(result, err)
			default:
				a.logger().Infof("  %s %s: %d years %v -> %s", tech, h.Key(), len(res.Years), res.Years, filepath.Base(res.Path))
				a.completed()
			}
		}
	}
	return result.ErrorOrNil()
}

func (a *Aggregator) outDir() string {
	if a.OutDir != "" {
		return a.OutDir
	}
	return a.Dir
}

func (a *Aggregator) logger() *zap.SugaredLogger {
	if a.Log == nil {
		return zap.NewNop().Sugar()
	}
	return a.Log
}

func (a *Aggregator) completed() {
	if a.Stats != nil {
		a.Stats.Completed()
	}
}

func (a *Aggregator) skipped() {
	if a.Stats != nil {
		a.Stats.Skipped()
	}
}

func (a *Aggregator) failed() {
	if a.Stats != nil {
		a.Stats.Failed()
	}
}
