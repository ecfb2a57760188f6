package weather

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
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/hub"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/profile"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/table"
)

// ErrNoLocation is returned for a hub without coordinates.
var ErrNoLocation = errors.New("hub has no coordinates")

// RawFileName returns the raw weather table name for a hub and year.
func RawFileName(hubKey string, year int) string {
	return fmt.Sprintf("weather_%s_%d.parquet", hubKey, year)
}

// Normalizer produces per-year solar and wind profiles for each hub.
type Normalizer struct {
	Provider Provider
	OutDir   string // profile output directory
	RawDir   string // raw weather tables
	KeepRaw  bool   // persist fetched observations to RawDir
	FromRaw  bool   // read RawDir instead of calling Provider
	Log      *zap.SugaredLogger
	Stats    *common.Stats
}

// FetchAndNormalize fetches one hub-year and converts it to profiles.
func (n *Normalizer) FetchAndNormalize(ctx context.Context, h hub.Hub, year int) (solar, wind profile.Profile, err error) {
	rows, err := n.observe(ctx, h, year)
	if err != nil {
		return nil, nil, err
	}
	n.addRows(len(rows))
	solar, wind = Normalize(rows)
	return solar, wind, nil
}

func (n *Normalizer) observe(ctx context.Context, h hub.Hub, year int) ([]table.WeatherRow, error) {
	if !h.HasLocation() {
		return nil, fmt.Errorf("%s: %w", h.ID, ErrNoLocation)
	}

	if n.FromRaw {
		rows, err := table.ReadWeather(filepath.Join(n.RawDir, RawFileName(h.Key(), year)))
		if err != nil {
			return nil, fmt.Errorf("read raw weather: %w", err)
		}
		return rows, nil
	}

	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)
	obs, err := n.Provider.HourlyWeather(ctx, *h.Lat, *h.Lon, start, end)
	if err != nil {
		return nil, err
	}
	rows := obs.Rows()

	if n.KeepRaw {
		dest := filepath.Join(n.RawDir, RawFileName(h.Key(), year))
		written, err := common.WriteFileAtomic(dest, func(w io.Writer) error {
			return table.WriteWeather(w, rows)
		})
		if err != nil {
			return nil, fmt.Errorf("write raw weather: %w", err)
		}
		n.addBytes(written)
	}
	return rows, nil
}

// Write saves both profiles for a hub-year.
func (n *Normalizer) Write(h hub.Hub, year int, solar, wind profile.Profile) error {
	for _, out := range []struct {
		tech profile.Technology
		p    profile.Profile
	}{{profile.Solar, solar}, {profile.Wind, wind}} {
		dest := filepath.Join(n.OutDir, profile.FileName(out.tech, h.Key(), year))
		written, err := profile.Save(dest, out.p)
		if err != nil {
			return fmt.Errorf("write %s: %w", filepath.Base(dest), err)
		}
		n.addBytes(written)
	}
	return nil
}

// Run processes every (hub, year) pair once, hub-major. A failed pair is
// logged and the batch moves on.
func (n *Normalizer) Run(ctx context.Context, hubs []hub.Hub, years []int) error {
	if err := os.MkdirAll(n.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", n.OutDir, err)
	}

	var result *multierror.Error
	for _, h := range hubs {
		if !h.HasLocation() {
			n.logger().Warnf("%s: no coordinates, skipped", h.ID)
			for range years {
				n.skipped()
			}
			continue
		}
		n.logger().Infof("%s (%s, %.4f, %.4f)", h.Key(), h.Site, *h.Lat, *h.Lon)

		for _, year := range years {
			if ctx.Err() != nil {
				n.logger().Warn("Interrupted, stopping before remaining units")
				return result.ErrorOrNil()
			}

			solar, wind, err := n.FetchAndNormalize(ctx, h, year)
			if err == nil {
				err = n.Write(h, year, solar, wind)
			}
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return result.ErrorOrNil()
				}
				n.logger().Errorf("  %d: failed: %v", year, err)
				n.failed()
				result = multierror.Append(result, fmt.Errorf("%s %d: %w", h.Key(), year, err))
				continue
			}

			n.logger().Infof("  %d: %d hours, solar mean %.3f, wind mean %.3f",
				year, len(solar), mean(solar), mean(wind))
			n.completed()
		}
	}
	return result.ErrorOrNil()
}

func mean(p profile.Profile) float64 {
	if len(p) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range p {
		sum += v
	}
	return sum / float64(len(p))
}

func (n *Normalizer) logger() *zap.SugaredLogger {
	if n.Log == nil {
		return zap.NewNop().Sugar()
	}
	return n.Log
}

func (n *Normalizer) addRows(c int) {
	if n.Stats != nil {
		n.Stats.AddRows(c)
	}
}

func (n *Normalizer) addBytes(c int64) {
	if n.Stats != nil {
		n.Stats.AddBytes(c)
	}
}

func (n *Normalizer) completed() {
	if n.Stats != nil {
		n.Stats.Completed()
	}
}

func (n *Normalizer) skipped() {
	if n.Stats != nil {
		n.Stats.Skipped()
	}
}

func (n *Normalizer) failed() {
	if n.Stats != nil {
		n.Stats.Failed()
	}
}
