package query

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/archiver"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/common"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/hub"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/table"
)

func p(v float64) *float64 { return &v }

func fixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	t0 := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	rows := []table.PriceRow{
		{Time: t0, Location: "HB_NORTH", Price: p(21.5)},
		{Time: t0, Location: "HB_WEST", Price: p(19)},
		{Time: t0.Add(15 * time.Minute), Location: "HB_NORTH", Price: nil},
	}
	_, err = common.WriteFileAtomic(archiver.Path(dir, 2024), func(w io.Writer) error {
		return table.WritePrices(w, rows, loc)
	})
	require.NoError(t, err)
	return dir
}

type bareRecord struct {
	Time int64   `parquet:"Time"`
	SPP  float64 `parquet:"SPP"`
}

func bareFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := common.WriteFileAtomic(archiver.Path(dir, 2019), func(w io.Writer) error {
		pw := parquet.NewGenericWriter[bareRecord](w)
		if _, err := pw.Write([]bareRecord{{Time: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), SPP: 12}}); err != nil {
			return err
		}
		return pw.Close()
	})
	require.NoError(t, err)
	return dir
}

func encode(t *testing.T, r Result) string {
	t.Helper()
	b, err := json.Marshal(r)
	require.NoError(t, err)
	return string(b)
}

func TestQueryFiltersAndProjects(t *testing.T) {
	s := &Service{Dir: fixture(t), Hubs: hub.Defaults()}

	res := s.Query(2024, "North")
	require.NoError(t, res.Err)
	assert.JSONEq(t, `{
		"columns": ["time_central", "price"],
		"data": [
			["2024-01-01 00:00:00-06:00", 21.5],
			["2024-01-01 00:15:00-06:00", null]
		]
	}`, encode(t, res))

	all := s.Query(2024, "")
	require.NoError(t, all.Err)
	assert.Len(t, all.Data, 3)
}

func TestQueryUnknownLocationIsEmpty(t *testing.T) {
	s := &Service{Dir: fixture(t)}
	res := s.Query(2024, "HB_NOWHERE")
	require.NoError(t, res.Err)
	assert.JSONEq(t, `{"data": [], "columns": ["time_central", "price"]}`, encode(t, res))
}

func TestQueryMissingYear(t *testing.T) {
	s := &Service{Dir: t.TempDir()}
	res := s.Query(2001, "")
	assert.ErrorIs(t, res.Err, ErrNotFound)
	assert.JSONEq(t, `{"error": "file not found for year 2001"}`, encode(t, res))
}

func TestQueryLocationOnTableWithoutLocationColumn(t *testing.T) {
	s := &Service{Dir: bareFixture(t)}

	res := s.Query(2019, "HB_NORTH")
	assert.ErrorIs(t, res.Err, table.ErrColumnNotFound)
	assert.Contains(t, encode(t, res), `"error"`)

	// Without a filter the same table projects to UTC time and price.
	res = s.Query(2019, "")
	require.NoError(t, res.Err)
	assert.JSONEq(t, `{"columns": ["timestamp", "price"], "data": [["2019-01-01 00:00:00+00:00", 12]]}`, encode(t, res))
}

func TestLocations(t *testing.T) {
	s := &Service{Dir: fixture(t)}
	locs, err := s.Locations(2024)
	require.NoError(t, err)
	assert.Equal(t, []string{"HB_NORTH", "HB_WEST"}, locs)
}

func TestRouter(t *testing.T) {
	srv := httptest.NewServer(NewRouter(&Service{Dir: fixture(t), Hubs: hub.Defaults()}))
	defer srv.Close()

	get := func(path string) (int, map[string]any) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body
	}

	code, body := get("/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = get("/prices/history?year=2024&location=HB_WEST")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"], 1)

	code, body = get("/prices/history?year=1999")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body["error"], "not found")

	code, _ = get("/prices/history")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = get("/prices/locations?year=2024")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"HB_NORTH", "HB_WEST"}, body["locations"])

	code, body = get("/prices/locations?year=1999")
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["locations"])
}

// pandasRecord carries time_central as a tz-aware timestamp column.
type pandasRecord struct {
	Timestamp   int64     `parquet:"timestamp"`
	TimeCentral time.Time `parquet:"time_central,timestamp(millisecond)"`
	Location    string    `parquet:"location"`
	Price       float64   `parquet:"price"`
}

func TestQueryRendersInstantLocalColumnInMarketZone(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	dir := t.TempDir()
	t0 := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	_, err = common.WriteFileAtomic(archiver.Path(dir, 2024), func(w io.Writer) error {
		pw := parquet.NewGenericWriter[pandasRecord](w)
		if _, err := pw.Write([]pandasRecord{{Timestamp: t0.UnixMilli(), TimeCentral: t0, Location: "HB_NORTH", Price: 12.5}}); err != nil {
			return err
		}
		return pw.Close()
	})
	require.NoError(t, err)

	s := &Service{Dir: dir, Location: loc}
	res := s.Query(2024, "HB_NORTH")
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"time_central", "price"}, res.Columns)
	assert.Equal(t, [][]any{{"2024-01-01 00:00:00-06:00", 12.5}}, res.Data)
}
