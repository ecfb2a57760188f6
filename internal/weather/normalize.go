package weather

import (
	"math"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/profile"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/table"
)

// Solar model: capacity factor is irradiance over standard test conditions
// derated by system losses.
const (
	StandardIrradiance = 1000.0 // W/m²
	SystemEfficiency   = 0.85
)

// Wind turbine power curve, m/s.
const (
	CutIn   = 3.0
	Rated   = 12.0
	CutOut  = 25.0
	kmhToMs = 3.6
)

// KmhToMs converts km/h to m/s.
func KmhToMs(v float64) float64 {
	return v / kmhToMs
}

// SolarCF maps shortwave irradiance (W/m²) to a capacity factor in [0, 1].
func SolarCF(irradiance float64) float64 {
	if math.IsNaN(irradiance) {
		return 0
	}
	return profile.Clamp(irradiance / StandardIrradiance * SystemEfficiency)
}

// WindCF maps hub-height wind speed (m/s) to a capacity factor in [0, 1]
// using a cubic ramp between cut-in and rated speed.
func WindCF(v float64) float64 {
	switch {
	case math.IsNaN(v), v < CutIn, v >= CutOut:
		return 0
	case v >= Rated:
		return 1
	}
	r := (v - CutIn) / (Rated - CutIn)
	return r * r * r
}

// Normalize converts weather rows into solar and wind profiles. Gaps
// become 0 so the hour index stays aligned.
func Normalize(rows []table.WeatherRow) (solar, wind profile.Profile) {
	solar = make(profile.Profile, len(rows))
	wind = make(profile.Profile, len(rows))
	for i, r := range rows {
		if r.Irradiance != nil {
			solar[i] = SolarCF(*r.Irradiance)
		}
		if r.WindSpeed != nil {
			wind[i] = WindCF(*r.WindSpeed)
		}
	}
	return solar, wind
}
