package chstore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/common"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/table"
)

func TestPriceBatch(t *testing.T) {
	b := NewPriceBatch()
	v := 42.5
	ts := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)

	b.Add(2024, table.PriceRow{Time: ts, Local: "2024-01-01 00:00:00-06:00", Location: "HB_NORTH", Price: &v})
	b.Add(2024, table.PriceRow{Time: ts, Location: "HB_WEST"})
	assert.Equal(t, 2, b.Len())

	var names []string
	for _, c := range b.Input() {
		names = append(names, c.Name)
		assert.Equal(t, 2, c.Data.Rows(), c.Name)
	}
	assert.Equal(t, []string{"year", "timestamp", "time_central", "location", "price"}, names)

	assert.Equal(t, uint16(2024), b.Year.Row(0))
	assert.Equal(t, "HB_WEST", b.Location.Row(1))
	assert.True(t, b.Price.Row(0).Set)
	assert.Equal(t, 42.5, b.Price.Row(0).Value)
	assert.False(t, b.Price.Row(1).Set)

	b.Reset()
	assert.Equal(t, 0, b.Len())
}

func TestDDL(t *testing.T) {
	assert.Contains(t, PricesDDL("ercot"), "CREATE TABLE IF NOT EXISTS ercot.spp_raw")
	assert.Contains(t, PricesDDL("ercot"), "PARTITION BY year")
	assert.Contains(t, ProfilesDDL("grid"), "grid.capacity_factors")
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(&common.Config{
		ClickHouseHost:     "ch:9000",
		ClickHouseDatabase: "ercot",
		ClickHouseUser:     "loader",
	})
	assert.Equal(t, Options{Addr: "ch:9000", Database: "ercot", User: "loader"}, opts)
}

func TestIgnorableDropError(t *testing.T) {
	assert.True(t, ignorableDropError(errors.New("code: 233, NO_SUCH_DATA_PART")))
	assert.False(t, ignorableDropError(errors.New("connection refused")))
}
