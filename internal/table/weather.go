package table

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
)

// WeatherRow is one hourly weather observation.
type WeatherRow struct {
	Time       time.Time
	Irradiance *float64 // shortwave radiation, W/m²
	WindSpeed  *float64 // wind speed at 100 m, m/s
}

type weatherRecord struct {
	Timestamp  int64    `parquet:"timestamp"`
	Irradiance *float64 `parquet:"irradiance,optional"`
	WindSpeed  *float64 `parquet:"wind_speed,optional"`
}

// WriteWeather encodes rows as a weather YearTable.
func WriteWeather(w io.Writer, rows []WeatherRow) error {
	records := make([]weatherRecord, len(rows))
	for i, r := range rows {
		records[i] = weatherRecord{
			Timestamp:  r.Time.UnixMilli(),
			Irradiance: r.Irradiance,
			WindSpeed:  r.WindSpeed,
		}
	}

	pw := parquet.NewGenericWriter[weatherRecord](w, compression)
	if _, err := pw.Write(records); err != nil {
		return fmt.Errorf("write weather: %w", err)
	}
	return pw.Close()
}

// ReadWeather loads a weather YearTable from disk.
func ReadWeather(path string) ([]WeatherRow, error) {
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

	cols := resolveColumns(pf.Schema())
	want := make([]int, 0, 3)
	for _, name := range []string{ColTimestamp, ColIrradiance, ColWindSpeed} {
		c, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
		}
		want = append(want, c)
	}

	rows := make([]WeatherRow, 0, pf.NumRows())
	err = scanRows(pf, want, func(cells []parquet.Value) error {
		ts, ok := valueTime(cells[0])
		if !ok {
			return nil
		}
		rows = append(rows, WeatherRow{
			Time:       ts,
			Irradiance: valueFloat(cells[1]),
			WindSpeed:  valueFloat(cells[2]),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
