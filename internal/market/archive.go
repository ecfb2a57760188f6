package market

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/pgzip"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/table"
)

// ArchiveProvider reads manually downloaded ERCOT MIS settlement point price
// reports (NP6-905 real-time, NP6-788 day-ahead) from <Dir>/RTM_<year>/.
// Files may be .csv, .csv.gz or .zip bundles of CSVs.
type ArchiveProvider struct {
	Dir      string
	Market   string         // directory prefix, default "RTM"
	Location *time.Location // delivery-date timezone, default America/Chicago
}

func (a *ArchiveProvider) Name() string { return "ercot-archive" }

func (a *ArchiveProvider) yearDir(year int) string {
	market := a.Market
	if market == "" {
		market = "RTM"
	}
	return filepath.Join(a.Dir, fmt.Sprintf("%s_%d", market, year))
}

func (a *ArchiveProvider) location() *time.Location {
	if a.Location != nil {
		return a.Location
	}
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		return time.UTC
	}
	return loc
}

// SettlementPrices parses every report file for the year. Rows dated
// outside the year are dropped.
func (a *ArchiveProvider) SettlementPrices(ctx context.Context, year int) ([]table.PriceRow, error) {
	dir := a.yearDir(year)
	files, err := reportFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no report files in %s", ErrFetch, dir)
	}

	loc := a.location()
	start := time.Date(year, 1, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(1, 0, 0)

	var rows []table.PriceRow
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parsed, err := readReportFile(path, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrFetch, filepath.Base(path), err)
		}
		for _, r := range parsed {
			if !r.Time.Before(start) && r.Time.Before(end) {
				rows = append(rows, r)
			}
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %w for %d", ErrFetch, ErrNoData, year)
	}
	return rows, nil
}

func reportFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".csv.gz") || strings.HasSuffix(name, ".zip") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func readReportFile(path string, loc *time.Location) ([]table.PriceRow, error) {
	name := strings.ToLower(path)

	if strings.HasSuffix(name, ".zip") {
		return readZip(path, loc)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.HasSuffix(name, ".gz") {
		gz, err := pgzip.NewReaderN(f, 256*1024, runtime.NumCPU())
		if err != nil {
			return nil, fmt.Errorf("gzip open: %w", err)
		}
		defer gz.Close()
		return parseReport(gz, loc)
	}
	return parseReport(f, loc)
}

func readZip(path string, loc *time.Location) ([]table.PriceRow, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("zip open: %w", err)
	}
	defer zr.Close()

	var rows []table.PriceRow
	for _, zf := range zr.File {
		if !strings.HasSuffix(strings.ToLower(zf.Name), ".csv") {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("zip entry %s: %w", zf.Name, err)
		}
		parsed, err := parseReport(rc, loc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("zip entry %s: %w", zf.Name, err)
		}
		rows = append(rows, parsed...)
	}
	return rows, nil
}

// reportColumns holds header positions; -1 when absent.
type reportColumns struct {
	date, hour, interval, point, price, dst int
}

func findColumns(header []string) (reportColumns, error) {
	c := reportColumns{-1, -1, -1, -1, -1, -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "deliverydate":
			c.date = i
		case "deliveryhour", "hourending":
			c.hour = i
		case "deliveryinterval":
			c.interval = i
		case "settlementpointname", "settlementpoint":
			if c.point < 0 {
				c.point = i
			}
		case "settlementpointprice", "price":
			c.price = i
		case "dstflag":
			c.dst = i
		}
	}
	var missing []string
	if c.date < 0 {
		missing = append(missing, "DeliveryDate")
	}
	if c.hour < 0 {
		missing = append(missing, "DeliveryHour")
	}
	if c.point < 0 {
		missing = append(missing, "SettlementPointName")
	}
	if c.price < 0 {
		missing = append(missing, "SettlementPointPrice")
	}
	if len(missing) > 0 {
		return c, fmt.Errorf("%w: %s", table.ErrColumnNotFound, strings.Join(missing, ", "))
	}
	return c, nil
}

// parseReport reads one settlement point price CSV. Rows with an
// unparsable delivery time or empty settlement point are dropped; an
// unparsable price is kept as a missing value.
func parseReport(r io.Reader, loc *time.Location) ([]table.PriceRow, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	cols, err := findColumns(header)
	if err != nil {
		return nil, err
	}

	var rows []table.PriceRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		point := field(rec, cols.point)
		if point == "" {
			continue
		}
		interval := 1
		if cols.interval >= 0 {
			if n, err := strconv.Atoi(field(rec, cols.interval)); err == nil {
				interval = n
			}
		}
		ts, ok := IntervalStart(field(rec, cols.date), field(rec, cols.hour), interval,
			strings.EqualFold(field(rec, cols.dst), "Y"), loc)
		if !ok {
			continue
		}
		rows = append(rows, table.PriceRow{
			Time:     ts.UTC(),
			Local:    ts.Format(table.LocalTimeLayout),
			Location: point,
			Price:    table.ParseFloat(field(rec, cols.price)),
		})
	}
	return rows, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

var deliveryDateLayouts = []string{"01/02/2006", "2006-01-02", "1/2/2006"}

// IntervalStart converts an ERCOT delivery date, hour ending (1-24 or
// "HH:00") and 15-minute interval (1-4) into the interval's start instant.
// repeated selects the second occurrence of the fall-back hour.
func IntervalStart(date, hourEnding string, interval int, repeated bool, loc *time.Location) (time.Time, bool) {
	var day time.Time
	var err error
	for _, layout := range deliveryDateLayouts {
		if day, err = time.Parse(layout, date); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, false
	}

	h := hourEnding
	if i := strings.IndexByte(h, ':'); i >= 0 {
		h = h[:i]
	}
	he, err := strconv.Atoi(h)
	if err != nil || he < 1 || he > 24 || interval < 1 || interval > 4 {
		return time.Time{}, false
	}

	// Wall clock as a naive UTC value, then resolved against loc.
	wall := time.Date(day.Year(), day.Month(), day.Day(), he-1, (interval-1)*15, 0, 0, time.UTC)
	return resolveWallClock(wall, repeated, loc), true
}

// resolveWallClock finds the instants whose wall clock in loc equals wall.
// An ambiguous wall time resolves to the earlier instant unless repeated.
func resolveWallClock(wall time.Time, repeated bool, loc *time.Location) time.Time {
	var matches []time.Time
	seen := map[int]bool{}
	for _, probe := range []time.Time{wall.Add(-12 * time.Hour), wall.Add(12 * time.Hour)} {
		_, off := probe.In(loc).Zone()
		if seen[off] {
			continue
		}
		seen[off] = true
		candidate := wall.Add(-time.Duration(off) * time.Second).In(loc)
		if _, coff := candidate.Zone(); coff == off {
			matches = append(matches, candidate)
		}
	}

	switch len(matches) {
	case 0:
		// Inside a spring-forward gap; let the time package shift it.
		return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), 0, 0, loc)
	case 1:
		return matches[0]
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Before(matches[j]) })
	if repeated {
		return matches[len(matches)-1]
	}
	return matches[0]
}
