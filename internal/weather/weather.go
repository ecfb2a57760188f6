// Package weather turns hourly weather observations at hub locations into
// solar and wind capacity-factor profiles.
package weather

import (
	"context"
	"errors"
	"time"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/fetch"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/table"
)

// ErrFetch wraps every failure to obtain observations for a hub and year.
var ErrFetch = errors.New("weather fetch failed")

// ErrStatus is the non-2xx response error shared with the HTTP layer.
type ErrStatus = fetch.StatusError

// Observations are hourly readings in provider units. Slices share one
// index; a nil entry is a gap in the record.
type Observations struct {
	Times      []time.Time
	Irradiance []*float64 // shortwave radiation, W/m²
	WindKmh    []*float64 // wind speed at 100 m, km/h
}

// Len returns the number of hours.
func (o *Observations) Len() int {
	return len(o.Times)
}

// Rows converts observations to weather table rows with wind in m/s.
func (o *Observations) Rows() []table.WeatherRow {
	rows := make([]table.WeatherRow, o.Len())
	for i := range rows {
		rows[i] = table.WeatherRow{
			Time:       o.Times[i],
			Irradiance: at(o.Irradiance, i),
		}
		if v := at(o.WindKmh, i); v != nil {
			ms := KmhToMs(*v)
			rows[i].WindSpeed = &ms
		}
	}
	return rows
}

func at(s []*float64, i int) *float64 {
	if i < len(s) {
		return s[i]
	}
	return nil
}

// Provider returns hourly observations for a point over [start, end] in UTC.
type Provider interface {
	Name() string
	HourlyWeather(ctx context.Context, lat, lon float64, start, end time.Time) (*Observations, error)
}
