package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/fetch"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/table"
)

// DefaultArchiveURL is the Open-Meteo historical weather endpoint.
const DefaultArchiveURL = "https://archive-api.open-meteo.com/v1/archive"

// OpenMeteo reads the Open-Meteo archive API.
type OpenMeteo struct {
	client  *fetch.Client
	baseURL string
}

// OpenMeteoOptions configures the archive client.
type OpenMeteoOptions struct {
	BaseURL string
	Delay   time.Duration
	Timeout time.Duration
}

// NewOpenMeteo builds the provider. A nil httpClient uses a default one.
func NewOpenMeteo(httpClient *http.Client, opts OpenMeteoOptions) *OpenMeteo {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultArchiveURL
	}
	return &OpenMeteo{
		client: fetch.New(httpClient, fetch.Options{
			Name:      "openmeteo",
			Timeout:   opts.Timeout,
			Delay:     opts.Delay,
			TripAfter: 3,
			Cooldown:  2 * time.Minute,
		}),
		baseURL: opts.BaseURL,
	}
}

func (o *OpenMeteo) Name() string { return "openmeteo" }

type archiveResponse struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
	Hourly struct {
		Time               []string   `json:"time"`
		ShortwaveRadiation []*float64 `json:"shortwave_radiation"`
		WindSpeed100m      []*float64 `json:"wind_speed_100m"`
	} `json:"hourly"`
}

// HourlyWeather fetches shortwave radiation and 100 m wind speed.
func (o *OpenMeteo) HourlyWeather(ctx context.Context, lat, lon float64, start, end time.Time) (*Observations, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("start_date", start.Format("2006-01-02"))
	q.Set("end_date", end.Format("2006-01-02"))
	q.Set("hourly", "shortwave_radiation,wind_speed_100m")
	q.Set("timezone", "UTC")

	body, err := o.client.Get(ctx, o.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	var resp archiveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrFetch, err)
	}
	if resp.Error {
		return nil, fmt.Errorf("%w: %s", ErrFetch, resp.Reason)
	}

	n := len(resp.Hourly.Time)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty hourly series", ErrFetch)
	}

	obs := &Observations{
		Times:      make([]time.Time, 0, n),
		Irradiance: make([]*float64, 0, n),
		WindKmh:    make([]*float64, 0, n),
	}
	for i, s := range resp.Hourly.Time {
		ts, ok := table.ParseTime(s)
		if !ok {
			return nil, fmt.Errorf("%w: bad timestamp %q", ErrFetch, s)
		}
		obs.Times = append(obs.Times, ts)
		obs.Irradiance = append(obs.Irradiance, at(resp.Hourly.ShortwaveRadiation, i))
		obs.WindKmh = append(obs.WindKmh, at(resp.Hourly.WindSpeed100m, i))
	}
	return obs, nil
}
