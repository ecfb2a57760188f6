package table

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestPricesRoundTrip(t *testing.T) {
	central, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	t0 := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	rows := []PriceRow{
		{Time: t0, Location: "HB_NORTH", Price: f64(21.5)},
		{Time: t0, Location: "HB_WEST", Price: nil},
		{Time: t0.Add(time.Hour), Location: "HB_NORTH", Price: f64(-3.25)},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePrices(&buf, rows, central))

	tbl, err := ReadPrices(writeFile(t, "ercot_rtm_2024.parquet", buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 3)

	assert.True(t, tbl.HasColumn(ColTimeCentral))
	assert.True(t, tbl.HasColumn(ColLocation))
	assert.True(t, tbl.Rows[0].Time.Equal(t0))
	assert.Equal(t, "2024-01-01 00:00:00-06:00", tbl.Rows[0].Local)
	assert.Equal(t, 21.5, *tbl.Rows[0].Price)
	assert.Nil(t, tbl.Rows[1].Price)
	assert.Equal(t, []string{"HB_NORTH", "HB_WEST"}, tbl.Locations())

	north := tbl.Filter("HB_NORTH")
	require.Len(t, north, 2)
	assert.Equal(t, -3.25, *north[1].Price)
}

// foreignRecord mimics a table written by another tool: different column
// names, text prices and no localized column.
type foreignRecord struct {
	IntervalStart string `parquet:"Interval Start"`
	Location      string `parquet:"Location"`
	SPP           string `parquet:"SPP"`
}

func TestReadPricesAliasesAndCoercion(t *testing.T) {
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[foreignRecord](&buf)
	_, err := w.Write([]foreignRecord{
		{IntervalStart: "2023-03-01T01:00:00Z", Location: "HB_PAN", SPP: "18.2"},
		{IntervalStart: "2023-03-01T00:00:00Z", Location: "HB_PAN", SPP: "n/a"},
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	tbl, err := ReadPrices(writeFile(t, "foreign.parquet", buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)

	assert.False(t, tbl.HasColumn(ColTimeCentral))
	assert.Equal(t, 18.2, *tbl.Rows[0].Price)
	assert.Nil(t, tbl.Rows[1].Price, "unparsable price becomes missing, not dropped")

	SortByTime(tbl.Rows)
	assert.Equal(t, 0, tbl.Rows[0].Time.Hour())
}

type noTimeRecord struct {
	Location string  `parquet:"location"`
	Price    float64 `parquet:"price"`
}

func TestReadPricesRequiresTimestamp(t *testing.T) {
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[noTimeRecord](&buf)
	_, err := w.Write([]noTimeRecord{{Location: "HB_NORTH", Price: 1}})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = ReadPrices(writeFile(t, "bad.parquet", buf.Bytes()))
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestWeatherRoundTrip(t *testing.T) {
	t0 := time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := []WeatherRow{
		{Time: t0, Irradiance: f64(0), WindSpeed: f64(4.2)},
		{Time: t0.Add(time.Hour), Irradiance: f64(512), WindSpeed: nil},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWeather(&buf, rows))

	got, err := ReadWeather(writeFile(t, "weather.parquet", buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[1].Time.Equal(t0.Add(time.Hour)))
	assert.Equal(t, 512.0, *got[1].Irradiance)
	assert.Nil(t, got[1].WindSpeed)
}

func TestEpochScaling(t *testing.T) {
	want := time.Date(2021, 2, 15, 12, 0, 0, 0, time.UTC)
	assert.True(t, epochTime(want.Unix()).Equal(want))
	assert.True(t, epochTime(want.UnixMilli()).Equal(want))
	assert.True(t, epochTime(want.UnixMicro()).Equal(want))
	assert.True(t, epochTime(want.UnixNano()).Equal(want))
}

func TestParseTime(t *testing.T) {
	ts, ok := ParseTime("2024-07-01T13:00")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 7, 1, 13, 0, 0, 0, time.UTC), ts)

	ts, ok = ParseTime("2024-07-01 08:00:00-05:00")
	require.True(t, ok)
	assert.Equal(t, 13, ts.Hour())

	_, ok = ParseTime("yesterday")
	assert.False(t, ok)
}

// instantRecord stores both time columns as UTC-adjusted Parquet timestamps,
// the layout pandas produces for tz-aware datetime columns.
type instantRecord struct {
	Timestamp   time.Time `parquet:"timestamp,timestamp(microsecond)"`
	TimeCentral time.Time `parquet:"time_central,timestamp(millisecond)"`
	Location    string    `parquet:"location"`
	Price       float64   `parquet:"price"`
}

func TestReadPricesRendersInstantLocalColumnInMarketZone(t *testing.T) {
	central, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	t0 := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	summer := time.Date(2024, 7, 1, 5, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[instantRecord](&buf)
	_, err = w.Write([]instantRecord{
		{Timestamp: t0, TimeCentral: t0, Location: "HB_NORTH", Price: 12.5},
		{Timestamp: summer, TimeCentral: summer, Location: "HB_NORTH", Price: 30},
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())
	path := writeFile(t, "instant.parquet", buf.Bytes())

	tbl, err := ReadPricesIn(path, central)
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	assert.True(t, tbl.Rows[0].Time.Equal(t0))
	assert.Equal(t, "2024-01-01 00:00:00-06:00", tbl.Rows[0].Local)
	assert.Equal(t, "2024-07-01 00:00:00-05:00", tbl.Rows[1].Local)

	utc, err := ReadPrices(path)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01 06:00:00+00:00", utc.Rows[0].Local)
}

func TestReadPricesCountsDroppedRows(t *testing.T) {
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[foreignRecord](&buf)
	_, err := w.Write([]foreignRecord{
		{IntervalStart: "2023-03-01T00:00:00Z", Location: "HB_PAN", SPP: "18.2"},
		{IntervalStart: "not a time", Location: "HB_PAN", SPP: "19.0"},
		{IntervalStart: "", Location: "HB_PAN", SPP: "20.1"},
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	tbl, err := ReadPrices(writeFile(t, "gaps.parquet", buf.Bytes()))
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 1)
	assert.Equal(t, 2, tbl.Dropped)
}
