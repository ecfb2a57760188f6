// Package table reads and writes the per-year columnar tables (Parquet)
// produced by the archivers.
//
// Market tables carry timestamp, time_central, location and price columns;
// weather tables carry timestamp, irradiance and wind_speed. Readers resolve
// columns through alias lists so files written by other tools (pandas
// "Time"/"SPP", gridstatus "Interval Start") load the same way.
package table

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
)

// ErrColumnNotFound is returned when a required column is absent.
var ErrColumnNotFound = errors.New("column not found")

// Canonical column names.
const (
	ColTimestamp   = "timestamp"
	ColTimeCentral = "time_central"
	ColLocation    = "location"
	ColPrice       = "price"
	ColIrradiance  = "irradiance"
	ColWindSpeed   = "wind_speed"
)

// Accepted spellings per canonical column, in preference order.
var aliases = map[string][]string{
	ColTimestamp:   {"timestamp", "time", "interval_start", "interval_start_utc", "interval start"},
	ColTimeCentral: {"time_central", "interval_start_local"},
	ColLocation:    {"location", "settlement_point", "settlement point", "settlementpoint"},
	ColPrice:       {"price", "spp", "lmp", "settlementpointprice"},
	ColIrradiance:  {"irradiance", "shortwave_radiation", "ghi_wm2"},
	ColWindSpeed:   {"wind_speed", "wind_speed_100m", "wind_speed_100m_mps"},
}

// compression used for every table this module writes.
var compression = parquet.Compression(&parquet.Zstd)

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// resolveColumns maps canonical names to leaf column indexes.
func resolveColumns(schema *parquet.Schema) map[string]int {
	byName := make(map[string]int)
	for i, path := range schema.Columns() {
		if len(path) != 1 {
			continue // nested columns are not part of these tables
		}
		byName[normalizeName(path[0])] = i
	}

	out := make(map[string]int)
	for canonical, names := range aliases {
		for _, n := range names {
			if idx, ok := byName[n]; ok {
				out[canonical] = idx
				break
			}
		}
	}
	return out
}

// valueTime interprets an integer or text cell as an instant.
// Integer epochs are scaled by magnitude (s, ms, us, ns).
func valueTime(v parquet.Value) (time.Time, bool) {
	if v.IsNull() {
		return time.Time{}, false
	}
	switch v.Kind() {
	case parquet.Int64:
		return epochTime(v.Int64()), true
	case parquet.Int32:
		return epochTime(int64(v.Int32())), true
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return ParseTime(string(v.ByteArray()))
	default:
		return time.Time{}, false
	}
}

func epochTime(n int64) time.Time {
	abs := n
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e17:
		return time.Unix(0, n).UTC()
	case abs >= 1e14:
		return time.UnixMicro(n).UTC()
	case abs >= 1e11:
		return time.UnixMilli(n).UTC()
	default:
		return time.Unix(n, 0).UTC()
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime accepts RFC 3339 and the common pandas/Open-Meteo text forms.
// Text without an offset is taken as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// valueFloat coerces a cell to a number. Nulls, NaN and unparsable text
// become nil so the row keeps its position.
func valueFloat(v parquet.Value) *float64 {
	if v.IsNull() {
		return nil
	}

	var f float64
	switch v.Kind() {
	case parquet.Double:
		f = v.Double()
	case parquet.Float:
		f = float64(v.Float())
	case parquet.Int64:
		f = float64(v.Int64())
	case parquet.Int32:
		f = float64(v.Int32())
	case parquet.ByteArray, parquet.FixedLenByteArray:
		p := ParseFloat(string(v.ByteArray()))
		if p == nil {
			return nil
		}
		f = *p
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ParseFloat parses text to a number, returning nil when it is not one.
func ParseFloat(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func valueString(v parquet.Value) string {
	if v.IsNull() {
		return ""
	}
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}

// scanRows walks every row of f, handing the cells of the requested leaf
// columns to fn. cells[i] is the value of column cols[i] (a null value when
// the row has none).
func scanRows(f *parquet.File, cols []int, fn func(cells []parquet.Value) error) error {
	want := make(map[int]int, len(cols))
	for i, c := range cols {
		want[c] = i
	}

	buf := make([]parquet.Row, 1024)
	cells := make([]parquet.Value, len(cols))

	for _, rg := range f.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				for i := range cells {
					cells[i] = parquet.Value{}
				}
				for _, v := range row {
					if i, ok := want[v.Column()]; ok {
						cells[i] = v
					}
				}
				if ferr := fn(cells); ferr != nil {
					rows.Close()
					return ferr
				}
			}
			if err != nil {
				rows.Close()
				if errors.Is(err, io.EOF) {
					break
				}
				return fmt.Errorf("read rows: %w", err)
			}
			if n == 0 {
				rows.Close()
				break
			}
		}
	}
	return nil
}
