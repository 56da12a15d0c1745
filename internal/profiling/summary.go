// Package profiling summarizes indicator series: spread, central tendency and
// the linear trend across years.
package profiling

import (
	"math"
	"strconv"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"popdash/domain/core"
	"popdash/domain/population"
)

// SeriesSummary describes the non-null values of a series.
type SeriesSummary struct {
	Count        int     `json:"count"`
	FirstYear    string  `json:"firstYear"`
	LastYear     string  `json:"lastYear"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
	StdDev       float64 `json:"stdDev"`
	TrendPerYear float64 `json:"trendPerYear"`
	GrowthRate   float64 `json:"growthRate"` // compound annual growth, percent
	Outliers     int     `json:"outliers"`
}

// SummarizeSeries computes the summary over observations with a value and a
// numeric year. Returns core.ErrInsufficientData when none remain.
func SummarizeSeries(series population.IndicatorSeries) (SeriesSummary, error) {
	var summary SeriesSummary

	years, values := points(series)
	if len(values) == 0 {
		return summary, core.ErrInsufficientData
	}

	data := stats.Float64Data(values)

	min, err := stats.Min(data)
	if err != nil {
		return summary, err
	}
	max, err := stats.Max(data)
	if err != nil {
		return summary, err
	}
	mean, err := stats.Mean(data)
	if err != nil {
		return summary, err
	}
	median, err := stats.Median(data)
	if err != nil {
		return summary, err
	}
	stdDev, err := stats.StandardDeviation(data)
	if err != nil {
		return summary, err
	}

	summary.Count = len(values)
	summary.Min = min
	summary.Max = max
	summary.Mean = mean
	summary.Median = median
	summary.StdDev = stdDev

	// points() keeps series order: newest first.
	summary.LastYear = strconv.Itoa(int(years[0]))
	summary.FirstYear = strconv.Itoa(int(years[len(years)-1]))

	if len(values) >= 2 {
		_, slope := stat.LinearRegression(years, values, nil, false)
		summary.TrendPerYear = slope
		summary.GrowthRate = compoundGrowth(values[len(values)-1], values[0], years[0]-years[len(years)-1])
	}

	if len(values) >= 4 {
		q25, errLow := stats.Percentile(data, 25)
		q75, errHigh := stats.Percentile(data, 75)
		if errLow == nil && errHigh == nil {
			summary.Outliers = detectOutliers(values, q25, q75)
		}
	}

	return summary, nil
}

func points(series population.IndicatorSeries) ([]float64, []float64) {
	years := make([]float64, 0, len(series))
	values := make([]float64, 0, len(series))
	for _, o := range series {
		if o.Value == nil {
			continue
		}
		year, err := strconv.Atoi(o.Year)
		if err != nil {
			continue
		}
		years = append(years, float64(year))
		values = append(values, *o.Value)
	}
	return years, values
}

// compoundGrowth returns the annualized growth in percent from first to last
// over span years; 0 when undefined.
func compoundGrowth(first, last, span float64) float64 {
	if span <= 0 || first <= 0 || last <= 0 {
		return 0
	}
	return (math.Pow(last/first, 1/span) - 1) * 100
}

// detectOutliers identifies outliers using IQR method
func detectOutliers(data []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lowerBound := q25 - 1.5*iqr
	upperBound := q75 + 1.5*iqr

	outlierCount := 0
	for _, x := range data {
		if x < lowerBound || x > upperBound {
			outlierCount++
		}
	}

	return outlierCount
}
