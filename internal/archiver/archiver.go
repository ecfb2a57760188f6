// Package archiver persists one raw settlement-price table per calendar year.
package archiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/common"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/market"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/table"
)

// FileName returns the archive file name for a year.
func FileName(year int) string {
	return fmt.Sprintf("ercot_rtm_%d.parquet", year)
}

// Path returns the archive path for a year under dir.
func Path(dir string, year int) string {
	return filepath.Join(dir, FileName(year))
}

// Archiver fetches years from a provider and writes them under OutDir.
type Archiver struct {
	Provider market.Provider
	OutDir   string
	Location *time.Location // zone for the time_central column
	Log      *zap.SugaredLogger
	Stats    *common.Stats
}

// Prepare creates the output directory.
func (a *Archiver) Prepare() error {
	if err := os.MkdirAll(a.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", a.OutDir, err)
	}
	return nil
}

// FetchYear fetches and persists one year. Nothing is written on failure.
func (a *Archiver) FetchYear(ctx context.Context, year int) error {
	rows, err := a.Provider.SettlementPrices(ctx, year)
	if err != nil {
		return err
	}
	table.SortRows(rows)

	dest := Path(a.OutDir, year)
	n, err := common.WriteFileAtomic(dest, func(w io.Writer) error {
		return table.WritePrices(w, rows, a.Location)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}

	if a.Stats != nil {
		a.Stats.AddRows(len(rows))
		a.Stats.AddBytes(n)
	}
	a.logger().Infof("  %d: %d rows -> %s (%.2f MB)", year, len(rows), filepath.Base(dest), float64(n)/1024/1024)
	return nil
}

// Run archives every year once, in order. Per-year failures are logged and
// collected; the batch stops early only when ctx is cancelled.
func (a *Archiver) Run(ctx context.Context, years []int) error {
	if err := a.Prepare(); err != nil {
		return err
	}

	var result *multierror.Error
	for _, year := range years {
		if ctx.Err() != nil {
			a.logger().Warn("Interrupted, stopping before remaining years")
			break
		}

		a.logger().Infof("Fetching %s settlement prices for %d...", a.Provider.Name(), year)
		if err := a.FetchYear(ctx, year); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			a.logger().Errorf("  %d: failed: %v", year, err)
			a.failed()
			result = multierror.Append(result, fmt.Errorf("year %d: %w", year, err))
			continue
		}
		a.completed()
	}
	return result.ErrorOrNil()
}

func (a *Archiver) logger() *zap.SugaredLogger {
	if a.Log == nil {
		return zap.NewNop().Sugar()
	}
	return a.Log
}

func (a *Archiver) completed() {
	if a.Stats != nil {
		a.Stats.Completed()
	}
}

func (a *Archiver) failed() {
	if a.Stats != nil {
		a.Stats.Failed()
	}
}
