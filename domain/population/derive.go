package population

// Summary is the scalar digest of a series.
type Summary struct {
	Latest *float64 `json:"latest"`
	Delta  *float64 `json:"delta"`
}

// Derive returns the newest value and its change against the previous
// observation. Either field is nil when the series is too short or the
// needed values are missing.
func Derive(series IndicatorSeries) Summary {
	var s Summary
	if len(series) == 0 {
		return s
	}
	s.Latest = clonePtr(series[0].Value)
	if len(series) < 2 || series[0].Value == nil || series[1].Value == nil {
		return s
	}
	delta := *series[0].Value - *series[1].Value
	s.Delta = &delta
	return s
}

// BuildMetrics combines the three home page series into headline figures.
func BuildMetrics(populationSeries, densitySeries, lifeSeries IndicatorSeries) DerivedMetrics {
	pop := Derive(populationSeries)
	return DerivedMetrics{
		TotalPopulation:    pop.Latest,
		ChangeInPopulation: pop.Delta,
		AverageDensity:     Derive(densitySeries).Latest,
		LifeExpectancy:     Derive(lifeSeries).Latest,
	}
}

// BuildTable turns single-year population records into table rows and the
// distinct years they cover, in response order.
func BuildTable(records []Record) ([]TableRow, []string) {
	rows := make([]TableRow, 0, len(records))
	years := make([]string, 0, 1)
	seen := make(map[string]bool)
	for _, r := range records {
		rows = append(rows, TableRow{
			Country:        r.Country.Value,
			Population:     clonePtr(r.Value),
			Density:        PlaceholderDensity,
			GrowthRate:     PlaceholderGrowthRate,
			LifeExpectancy: PlaceholderLifeExpectancy,
		})
		if !seen[r.Date] {
			seen[r.Date] = true
			years = append(years, r.Date)
		}
	}
	return rows, years
}

// SeriesFromRecords maps records to observations, keeping null values.
func SeriesFromRecords(records []Record) IndicatorSeries {
	series := make(IndicatorSeries, 0, len(records))
	for _, r := range records {
		series = append(series, Observation{Year: r.Date, Value: clonePtr(r.Value)})
	}
	return series
}
