package market

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

const (
	DefaultGridStatusURL     = "https://api.gridstatus.io/v1"
	DefaultGridStatusDataset = "ercot_spp_real_time_15_min"
	defaultPageSize          = 50000
	maxPages                 = 1000
)

// GridStatusOptions configures the hosted API client.
type GridStatusOptions struct {
	BaseURL  string
	Dataset  string
	APIKey   string
	PageSize int
	Delay    time.Duration
	Timeout  time.Duration
}

// GridStatus reads settlement prices from the GridStatus hosted API.
type GridStatus struct {
	client   *fetch.Client
	baseURL  string
	dataset  string
	apiKey   string
	pageSize int
}

// NewGridStatus builds the provider. A nil httpClient uses a default one.
func NewGridStatus(httpClient *http.Client, opts GridStatusOptions) *GridStatus {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultGridStatusURL
	}
	if opts.Dataset == "" {
		opts.Dataset = DefaultGridStatusDataset
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	return &GridStatus{
		client: fetch.New(httpClient, fetch.Options{
			Name:      "gridstatus",
			Timeout:   opts.Timeout,
			Delay:     opts.Delay,
			TripAfter: 3,
			Cooldown:  2 * time.Minute,
		}),
		baseURL:  opts.BaseURL,
		dataset:  opts.Dataset,
		apiKey:   opts.APIKey,
		pageSize: opts.PageSize,
	}
}

func (g *GridStatus) Name() string { return "gridstatus" }

type gridStatusPage struct {
	StatusCode int                `json:"status_code"`
	Data       []gridStatusRecord `json:"data"`
	Meta       struct {
		Page           int  `json:"page"`
		HasNextPage    bool `json:"hasNextPage"`
		HasNextPageAlt bool `json:"has_next_page"`
	} `json:"meta"`
}

type gridStatusRecord struct {
	IntervalStartUTC   string   `json:"interval_start_utc"`
	IntervalStartLocal string   `json:"interval_start_local"`
	Location           string   `json:"location"`
	SPP                *float64 `json:"spp"`
	LMP                *float64 `json:"lmp"`
}

// SettlementPrices pages through the dataset for [Jan 1 year, Jan 1 year+1).
func (g *GridStatus) SettlementPrices(ctx context.Context, year int) ([]table.PriceRow, error) {
	var rows []table.PriceRow

	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := g.client.Get(ctx, g.pageURL(year, page), g.header())
		if err != nil {
			return nil, fmt.Errorf("%w: %s %d page %d: %w", ErrFetch, g.dataset, year, page, err)
		}

		var p gridStatusPage
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("%w: decode page %d: %w", ErrFetch, page, err)
		}

		for _, rec := range p.Data {
			row, ok := rec.toRow()
			if ok {
				rows = append(rows, row)
			}
		}

		if !(p.Meta.HasNextPage || p.Meta.HasNextPageAlt) || len(p.Data) == 0 {
			break
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %w for %d", ErrFetch, ErrNoData, year)
	}
	return rows, nil
}

func (g *GridStatus) pageURL(year, page int) string {
	q := url.Values{}
	q.Set("start_time", fmt.Sprintf("%d-01-01T00:00:00Z", year))
	q.Set("end_time", fmt.Sprintf("%d-01-01T00:00:00Z", year+1))
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(g.pageSize))
	q.Set("return_format", "json")
	return fmt.Sprintf("%s/datasets/%s/query?%s", g.baseURL, url.PathEscape(g.dataset), q.Encode())
}

func (g *GridStatus) header() http.Header {
	h := http.Header{}
	if g.apiKey != "" {
		h.Set("x-api-key", g.apiKey)
	}
	return h
}

func (r gridStatusRecord) toRow() (table.PriceRow, bool) {
	ts, ok := table.ParseTime(r.IntervalStartUTC)
	if !ok || r.Location == "" {
		return table.PriceRow{}, false
	}
	row := table.PriceRow{Time: ts.UTC(), Location: r.Location, Price: r.SPP}
	if row.Price == nil {
		row.Price = r.LMP
	}
	if local, err := time.Parse(time.RFC3339, r.IntervalStartLocal); err == nil {
		row.Local = local.Format(table.LocalTimeLayout)
	}
	return row, true
}
