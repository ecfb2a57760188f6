package archiver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/common"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/market"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/table"
)

type fakeProvider struct {
	rows  map[int][]table.PriceRow
	calls map[int]int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) SettlementPrices(_ context.Context, year int) ([]table.PriceRow, error) {
	f.calls[year]++
	rows, ok := f.rows[year]
	if !ok {
		return nil, errors.Join(market.ErrFetch, errors.New("HTTP 500"))
	}
	out := make([]table.PriceRow, len(rows))
	copy(out, rows)
	return out, nil
}

func price(v float64) *float64 { return &v }

func TestRunContinuesPastFailedYear(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	base := time.Date(2022, 1, 1, 6, 0, 0, 0, time.UTC)
	p := &fakeProvider{
		rows: map[int][]table.PriceRow{
			2022: {
				{Time: base.Add(time.Hour), Location: "HB_NORTH", Price: price(2)},
				{Time: base, Location: "HB_WEST", Price: nil},
				{Time: base, Location: "HB_NORTH", Price: price(1)},
			},
			2024: {{Time: base.AddDate(2, 0, 0), Location: "HB_PAN", Price: price(3)}},
		},
		calls: map[int]int{},
	}

	dir := filepath.Join(t.TempDir(), "prices")
	stats := common.NewStats()
	a := &Archiver{Provider: p, OutDir: dir, Location: loc, Stats: stats}

	err = a.Run(context.Background(), []int{2022, 2023, 2024})
	require.Error(t, err)
	assert.ErrorIs(t, err, market.ErrFetch)
	assert.Contains(t, err.Error(), "year 2023")

	assert.Equal(t, map[int]int{2022: 1, 2023: 1, 2024: 1}, p.calls, "each year fetched exactly once")
	assert.Equal(t, uint64(2), stats.UnitsCompleted.Load())
	assert.Equal(t, uint64(1), stats.UnitsFailed.Load())

	_, statErr := os.Stat(Path(dir, 2023))
	assert.True(t, os.IsNotExist(statErr), "no artifact for a failed year")

	tbl, err := table.ReadPrices(Path(dir, 2022))
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, "HB_NORTH", tbl.Rows[0].Location)
	assert.Equal(t, "HB_WEST", tbl.Rows[1].Location)
	assert.Equal(t, "2022-01-01 00:00:00-06:00", tbl.Rows[0].Local)
	assert.Nil(t, tbl.Rows[1].Price)
}

func TestFetchYearIsIdempotent(t *testing.T) {
	base := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	p := &fakeProvider{
		rows: map[int][]table.PriceRow{
			2021: {
				{Time: base, Location: "HB_SOUTH", Price: price(10)},
				{Time: base.Add(15 * time.Minute), Location: "HB_SOUTH", Price: price(11)},
			},
		},
		calls: map[int]int{},
	}
	a := &Archiver{Provider: p, OutDir: t.TempDir(), Location: time.UTC}

	require.NoError(t, a.FetchYear(context.Background(), 2021))
	first, err := table.ReadPrices(Path(a.OutDir, 2021))
	require.NoError(t, err)

	require.NoError(t, a.FetchYear(context.Background(), 2021))
	second, err := table.ReadPrices(Path(a.OutDir, 2021))
	require.NoError(t, err)

	assert.Equal(t, first.Rows, second.Rows)
}

func TestRunFailsWhenOutputDirCannotBeCreated(t *testing.T) {
	file := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	a := &Archiver{Provider: &fakeProvider{calls: map[int]int{}}, OutDir: filepath.Join(file, "prices")}
	err := a.Run(context.Background(), []int{2020})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create output directory")
}
