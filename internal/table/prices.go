package table

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
)

// PriceRow is one settlement price interval.
type PriceRow struct {
	Time     time.Time // interval start, UTC instant
	Local    string    // localized wall-clock text; empty when unknown
	Location string    // settlement point code
	Price    *float64  // $/MWh; nil when missing
}

// priceRecord is the on-disk layout of a market YearTable.
type priceRecord struct {
	Timestamp   int64    `parquet:"timestamp"` // epoch milliseconds, UTC
	TimeCentral string   `parquet:"time_central,optional"`
	Location    string   `parquet:"location,dict"`
	Price       *float64 `parquet:"price,optional"`
}

// LocalTimeLayout formats the time_central column.
const LocalTimeLayout = "2006-01-02 15:04:05-07:00"

// WritePrices encodes rows as a market YearTable. When loc is non-nil and a
// row has no localized text, time_central is derived from the instant.
func WritePrices(w io.Writer, rows []PriceRow, loc *time.Location) error {
	pw := parquet.NewGenericWriter[priceRecord](w, compression)

	batch := make([]priceRecord, 0, 4096)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := pw.Write(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for _, r := range rows {
		local := r.Local
		if local == "" && loc != nil {
			local = r.Time.In(loc).Format(LocalTimeLayout)
		}
		batch = append(batch, priceRecord{
			Timestamp:   r.Time.UnixMilli(),
			TimeCentral: local,
			Location:    r.Location,
			Price:       r.Price,
		})
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return fmt.Errorf("write prices: %w", err)
			}
		}
	}
	if err := flush(); err != nil {
		return fmt.Errorf("write prices: %w", err)
	}
	return pw.Close()
}

// PriceTable is a market YearTable loaded into memory.
type PriceTable struct {
	Rows []PriceRow
	// Dropped counts rows skipped because their timestamp was unusable.
	Dropped int

	hasLocal    bool
	hasLocation bool
	hasPrice    bool
}

// HasColumn reports whether the source file carried the canonical column.
func (t *PriceTable) HasColumn(name string) bool {
	switch name {
	case ColTimestamp:
		return true
	case ColTimeCentral:
		return t.hasLocal
	case ColLocation:
		return t.hasLocation
	case ColPrice:
		return t.hasPrice
	}
	return false
}

// ReadPrices loads a market YearTable from disk. A time_central column
// stored as UTC-adjusted Parquet timestamps is rendered in UTC; use
// ReadPricesIn to render it in the market timezone.
func ReadPrices(path string) (*PriceTable, error) {
	return ReadPricesIn(path, nil)
}

// ReadPricesIn loads a market YearTable, rendering instant-typed
// time_central cells as wall-clock text in loc.
func ReadPricesIn(path string, loc *time.Location) (*PriceTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	return readPrices(pf, loc)
}

func readPrices(pf *parquet.File, loc *time.Location) (*PriceTable, error) {
	cols := resolveColumns(pf.Schema())

	tsCol, ok := cols[ColTimestamp]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, ColTimestamp)
	}

	t := &PriceTable{Rows: make([]PriceRow, 0, pf.NumRows())}

	// Column slots: 0 timestamp, then any of local/location/price present.
	want := []int{tsCol}
	tsKind := columnTimeKind(pf.Schema(), tsCol)
	localSlot, locSlot, priceSlot := -1, -1, -1
	var localKind timeKind
	if c, ok := cols[ColTimeCentral]; ok {
		t.hasLocal = true
		localSlot = len(want)
		localKind = columnTimeKind(pf.Schema(), c)
		want = append(want, c)
	}
	if c, ok := cols[ColLocation]; ok {
		t.hasLocation = true
		locSlot = len(want)
		want = append(want, c)
	}
	if c, ok := cols[ColPrice]; ok {
		t.hasPrice = true
		priceSlot = len(want)
		want = append(want, c)
	}

	err := scanRows(pf, want, func(cells []parquet.Value) error {
		ts, ok := tsKind.instant(cells[0])
		if !ok {
			t.Dropped++
			return nil
		}
		row := PriceRow{Time: ts}
		if localSlot >= 0 {
			row.Local = localKind.text(cells[localSlot], loc)
		}
		if locSlot >= 0 {
			row.Location = valueString(cells[locSlot])
		}
		if priceSlot >= 0 {
			row.Price = valueFloat(cells[priceSlot])
		}
		t.Rows = append(t.Rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// timeKind describes how an integer time column is encoded, taken from the
// column's Parquet logical type.
type timeKind struct {
	unit     time.Duration // 0 when the column has no timestamp type
	adjusted bool          // values are UTC instants, not wall-clock epochs
}

func columnTimeKind(schema *parquet.Schema, col int) timeKind {
	paths := schema.Columns()
	if col < 0 || col >= len(paths) {
		return timeKind{}
	}
	leaf, ok := schema.Lookup(paths[col]...)
	if !ok {
		return timeKind{}
	}
	lt := leaf.Node.Type().LogicalType()
	if lt == nil || lt.Timestamp == nil {
		return timeKind{}
	}
	return timeKind{unit: timeUnit(lt.Timestamp.Unit), adjusted: lt.Timestamp.IsAdjustedToUTC}
}

func timeUnit(u format.TimeUnit) time.Duration {
	switch {
	case u.Nanos != nil:
		return time.Nanosecond
	case u.Micros != nil:
		return time.Microsecond
	default:
		return time.Millisecond
	}
}

// instant decodes a cell as a UTC instant. Typed integer cells use the
// declared unit; untyped ones are scaled by magnitude.
func (k timeKind) instant(v parquet.Value) (time.Time, bool) {
	if k.unit == 0 || v.IsNull() {
		return valueTime(v)
	}
	var n int64
	switch v.Kind() {
	case parquet.Int64:
		n = v.Int64()
	case parquet.Int32:
		n = int64(v.Int32())
	default:
		return valueTime(v)
	}
	return time.Unix(0, n*int64(k.unit)).UTC(), true
}

// text renders a localized time cell. UTC-adjusted timestamps are shown in
// loc (UTC when nil) with their offset. Naive integer cells are wall-clock
// epochs written by converters that drop the offset, so they print bare.
func (k timeKind) text(v parquet.Value, loc *time.Location) string {
	if v.IsNull() {
		return ""
	}
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	}
	ts, ok := k.instant(v)
	if !ok {
		return v.String()
	}
	if k.adjusted {
		if loc == nil {
			loc = time.UTC
		}
		return ts.In(loc).Format(LocalTimeLayout)
	}
	return ts.Format("2006-01-02 15:04:05")
}

// Filter returns the rows at a single settlement point, in table order.
func (t *PriceTable) Filter(location string) []PriceRow {
	var out []PriceRow
	for _, r := range t.Rows {
		if r.Location == location {
			out = append(out, r)
		}
	}
	return out
}

// Locations returns the sorted distinct settlement points.
func (t *PriceTable) Locations() []string {
	seen := make(map[string]struct{})
	for _, r := range t.Rows {
		if r.Location != "" {
			seen[r.Location] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// HasLocation reports whether any row is at the settlement point.
func (t *PriceTable) HasLocation(location string) bool {
	for _, r := range t.Rows {
		if r.Location == location {
			return true
		}
	}
	return false
}

// SortByTime orders rows by instant, keeping the input order of ties.
func SortByTime(rows []PriceRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Time.Before(rows[j].Time)
	})
}

// SortRows orders rows by instant then location; used before persisting so
// re-runs on the same upstream data produce identical files.
func SortRows(rows []PriceRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Time.Equal(rows[j].Time) {
			return rows[i].Time.Before(rows[j].Time)
		}
		return rows[i].Location < rows[j].Location
	})
}
