// Package market fetches historical settlement prices from a market-data
// source and normalizes them to table.PriceRow.
package market

import (
	"context"
	"errors"

	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/fetch"
	"github.com/KI7MT/ki7mt-grid-lab-apps/internal/table"
)

var (
	// ErrFetch wraps every failure to obtain a year of prices.
	ErrFetch = errors.New("market data fetch failed")
	// ErrNoData is returned when a source produced zero rows for a year.
	ErrNoData = errors.New("no settlement prices returned")
)

// ErrStatus is the non-2xx response error shared with the HTTP layer.
type ErrStatus = fetch.StatusError

// Provider returns a calendar year of real-time settlement prices.
// Rows carry UTC instants; order is unspecified.
type Provider interface {
	Name() string
	SettlementPrices(ctx context.Context, year int) ([]table.PriceRow, error)
}
