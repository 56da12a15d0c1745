package ports

import (
	"context"

	"popdash/domain/population"
)

// IndicatorFetcher retrieves indicator data for the world aggregate.
// Implementations validate ranges before touching the network.
type IndicatorFetcher interface {
	// Fetch returns the series for the inclusive range startYear:endYear.
	Fetch(ctx context.Context, code population.Indicator, startYear, endYear int) (population.IndicatorSeries, error)

	// FetchYear returns the raw records for a single year.
	FetchYear(ctx context.Context, code population.Indicator, year int) ([]population.Record, error)
}
