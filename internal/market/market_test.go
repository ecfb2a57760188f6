package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/table"
)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return loc
}

func TestGridStatusPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/datasets/ercot_spp_real_time_15_min/query", r.URL.Path)
		assert.Equal(t, "k123", r.Header.Get("x-api-key"))
		assert.Equal(t, "2024-01-01T00:00:00Z", r.URL.Query().Get("start_time"))
		assert.Equal(t, "2025-01-01T00:00:00Z", r.URL.Query().Get("end_time"))

		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprint(w, `{"status_code":200,"data":[
				{"interval_start_utc":"2024-01-01T06:00:00+00:00","interval_start_local":"2024-01-01T00:00:00-06:00","location":"HB_NORTH","spp":21.5},
				{"interval_start_utc":"2024-01-01T06:00:00+00:00","location":"HB_WEST","spp":null}
			],"meta":{"page":1,"hasNextPage":true}}`)
		case "2":
			fmt.Fprint(w, `{"status_code":200,"data":[
				{"interval_start_utc":"2024-01-01T06:15:00+00:00","location":"HB_NORTH","lmp":19.0},
				{"interval_start_utc":"garbage","location":"HB_NORTH","spp":1}
			],"meta":{"page":2,"hasNextPage":false}}`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer srv.Close()

	p := NewGridStatus(srv.Client(), GridStatusOptions{BaseURL: srv.URL, APIKey: "k123"})
	rows, err := p.SettlementPrices(context.Background(), 2024)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "HB_NORTH", rows[0].Location)
	assert.Equal(t, 21.5, *rows[0].Price)
	assert.Equal(t, "2024-01-01 00:00:00-06:00", rows[0].Local)
	assert.Nil(t, rows[1].Price)
	assert.Equal(t, 19.0, *rows[2].Price, "lmp used when spp absent")
	assert.Equal(t, time.Date(2024, 1, 1, 6, 15, 0, 0, time.UTC), rows[2].Time)
}

func TestGridStatusStatusFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewGridStatus(srv.Client(), GridStatusOptions{BaseURL: srv.URL})
	_, err := p.SettlementPrices(context.Background(), 2023)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)

	var se *ErrStatus
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Code)
}

func TestGridStatusEmptyYear(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status_code":200,"data":[],"meta":{"page":1}}`)
	}))
	defer srv.Close()

	p := NewGridStatus(srv.Client(), GridStatusOptions{BaseURL: srv.URL})
	_, err := p.SettlementPrices(context.Background(), 2010)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestIntervalStart(t *testing.T) {
	loc := chicago(t)

	ts, ok := IntervalStart("01/01/2024", "1", 1, false, loc)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC), ts.UTC())

	ts, ok = IntervalStart("2024-07-01", "24:00", 4, false, loc)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 7, 2, 4, 45, 0, 0, time.UTC), ts.UTC())

	// Fall back: hour ending 02 happens twice on 2024-11-03.
	first, ok := IntervalStart("11/03/2024", "2", 1, false, loc)
	require.True(t, ok)
	second, ok := IntervalStart("11/03/2024", "2", 1, true, loc)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 11, 3, 6, 0, 0, 0, time.UTC), first.UTC())
	assert.Equal(t, time.Date(2024, 11, 3, 7, 0, 0, 0, time.UTC), second.UTC())

	_, ok = IntervalStart("11/03/2024", "25", 1, false, loc)
	assert.False(t, ok)
	_, ok = IntervalStart("not a date", "1", 1, false, loc)
	assert.False(t, ok)
}

const reportCSV = "DeliveryDate,DeliveryHour,DeliveryInterval,SettlementPointName,SettlementPointType,SettlementPointPrice,DSTFlag\n" +
	"01/01/2024,1,1,HB_NORTH,HU,21.50,N\n" +
	"01/01/2024,1,2,HB_NORTH,HU,bad,N\n" +
	"12/31/2023,24,4,HB_NORTH,HU,99.00,N\n" +
	"01/01/2024,1,1,,HU,1.00,N\n"

func TestArchiveProviderFormats(t *testing.T) {
	dir := t.TempDir()
	yearDir := filepath.Join(dir, "RTM_2024")
	require.NoError(t, os.MkdirAll(yearDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(yearDir, "a.csv"), []byte(reportCSV), 0o644))

	gzf, err := os.Create(filepath.Join(yearDir, "b.csv.gz"))
	require.NoError(t, err)
	gw := gzip.NewWriter(gzf)
	_, err = gw.Write([]byte("DeliveryDate,HourEnding,SettlementPoint,SettlementPointPrice\n01/02/2024,02:00,HB_WEST,30\n"))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	require.NoError(t, gzf.Close())

	zf, err := os.Create(filepath.Join(yearDir, "c.zip"))
	require.NoError(t, err)
	zw := zip.NewWriter(zf)
	w, err := zw.Create("cdr.00012301.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("DeliveryDate,DeliveryHour,DeliveryInterval,SettlementPointName,SettlementPointPrice\n01/03/2024,3,2,HB_PAN,-5.25\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, zf.Close())

	require.NoError(t, os.WriteFile(filepath.Join(yearDir, "notes.txt"), []byte("ignored"), 0o644))

	p := &ArchiveProvider{Dir: dir, Location: chicago(t)}
	rows, err := p.SettlementPrices(context.Background(), 2024)
	require.NoError(t, err)
	table.SortRows(rows)
	require.Len(t, rows, 4, "out-of-year and blank settlement point rows dropped")

	assert.Equal(t, "HB_NORTH", rows[0].Location)
	assert.Equal(t, 21.5, *rows[0].Price)
	assert.Equal(t, "2024-01-01 00:00:00-06:00", rows[0].Local)
	assert.Nil(t, rows[1].Price)
	assert.Equal(t, time.Date(2024, 1, 1, 6, 15, 0, 0, time.UTC), rows[1].Time)

	assert.Equal(t, "HB_WEST", rows[2].Location)
	assert.Equal(t, time.Date(2024, 1, 2, 7, 0, 0, 0, time.UTC), rows[2].Time)

	assert.Equal(t, "HB_PAN", rows[3].Location)
	assert.Equal(t, -5.25, *rows[3].Price)
	assert.Equal(t, time.Date(2024, 1, 3, 8, 15, 0, 0, time.UTC), rows[3].Time)
}

func TestArchiveProviderMissingDir(t *testing.T) {
	p := &ArchiveProvider{Dir: t.TempDir()}
	_, err := p.SettlementPrices(context.Background(), 2019)
	assert.ErrorIs(t, err, ErrFetch)
}

func TestArchiveProviderMissingColumns(t *testing.T) {
	dir := t.TempDir()
	yearDir := filepath.Join(dir, "RTM_2024")
	require.NoError(t, os.MkdirAll(yearDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(yearDir, "x.csv"), []byte("Foo,Bar\n1,2\n"), 0o644))

	p := &ArchiveProvider{Dir: dir}
	_, err := p.SettlementPrices(context.Background(), 2024)
	assert.ErrorIs(t, err, table.ErrColumnNotFound)
}
