// Package query serves read-only slices of the archived yearly price tables.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/archiver"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/hub"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/table"
)

var (
	// ErrNotFound is returned when no table exists for the year.
	ErrNotFound = errors.New("file not found")
	// ErrNoLocationColumn is returned for a location filter on a table
	// without a location column.
	ErrNoLocationColumn = fmt.Errorf("location %w", table.ErrColumnNotFound)
)

// UTCTimeLayout renders the UTC timestamp column when no localized text exists.
const UTCTimeLayout = "2006-01-02 15:04:05+00:00"

// Result is the single JSON document returned for a query: either data and
// columns, or an error.
type Result struct {
	Data    [][]any
	Columns []string
	Err     error
}

// MarshalJSON emits {"data": [...], "columns": [...]} or {"error": "..."}.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Err.Error()})
	}
	data := r.Data
	if data == nil {
		data = [][]any{}
	}
	return json.Marshal(struct {
		Data    [][]any  `json:"data"`
		Columns []string `json:"columns"`
	}{data, r.Columns})
}

// Service answers queries against tables in Dir. Hubs, when set, lets a
// region name such as "North" stand in for its settlement point. Location is
// the market timezone used for time_central columns stored as instants.
type Service struct {
	Dir      string
	Hubs     *hub.Set
	Location *time.Location
}

func (s *Service) load(year int) (*table.PriceTable, error) {
	path := archiver.Path(s.Dir, year)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w for year %d", ErrNotFound, year)
		}
		return nil, err
	}
	return table.ReadPricesIn(path, s.Location)
}

func (s *Service) resolve(location string) string {
	if s.Hubs != nil {
		if h, ok := s.Hubs.Resolve(location); ok {
			return h.ID
		}
	}
	return location
}

// Query returns [time, price] rows for a year, optionally at one location.
// Failures are reported in Result.Err, never as a panic.
func (s *Service) Query(year int, location string) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{Err: fmt.Errorf("query failed: %v", p)}
		}
	}()

	tbl, err := s.load(year)
	if err != nil {
		return Result{Err: err}
	}

	rows := tbl.Rows
	if location != "" {
		if !tbl.HasColumn(table.ColLocation) {
			return Result{Err: ErrNoLocationColumn}
		}
		rows = tbl.Filter(s.resolve(location))
	}

	useLocal := tbl.HasColumn(table.ColTimeCentral)
	timeCol := table.ColTimestamp
	if useLocal {
		timeCol = table.ColTimeCentral
	}

	res.Columns = []string{timeCol}
	withPrice := tbl.HasColumn(table.ColPrice)
	if withPrice {
		res.Columns = append(res.Columns, table.ColPrice)
	}

	res.Data = make([][]any, 0, len(rows))
	for _, r := range rows {
		ts := r.Local
		if !useLocal || ts == "" {
			ts = r.Time.UTC().Format(UTCTimeLayout)
		}
		rec := []any{ts}
		if withPrice {
			if r.Price == nil {
				rec = append(rec, nil)
			} else {
				rec = append(rec, *r.Price)
			}
		}
		res.Data = append(res.Data, rec)
	}
	return res
}

// Locations returns the sorted distinct settlement points for a year.
func (s *Service) Locations(year int) ([]string, error) {
	tbl, err := s.load(year)
	if err != nil {
		return nil, err
	}
	if !tbl.HasColumn(table.ColLocation) {
		return nil, ErrNoLocationColumn
	}
	return tbl.Locations(), nil
}
