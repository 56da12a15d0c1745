// Package population holds the data model for world population indicators:
// series observations, table rows, derived metrics and fetch errors.
package population

// MinYear is the first year the statistics API publishes data for.
const MinYear = 1960

// Observation is a single (year, value) point. Value is nil when the API
// reports no data for that year.
type Observation struct {
	Year  string   `json:"year"`
	Value *float64 `json:"value"`
}

// IndicatorSeries is ordered newest first, as returned by the API.
type IndicatorSeries []Observation

// Values returns the non-nil values in series order.
func (s IndicatorSeries) Values() []float64 {
	out := make([]float64, 0, len(s))
	for _, o := range s {
		if o.Value != nil {
			out = append(out, *o.Value)
		}
	}
	return out
}

// Clone returns a deep copy.
func (s IndicatorSeries) Clone() IndicatorSeries {
	if s == nil {
		return nil
	}
	out := make(IndicatorSeries, len(s))
	for i, o := range s {
		out[i] = Observation{Year: o.Year, Value: clonePtr(o.Value)}
	}
	return out
}

// CountryRef is the {id, value} pair attached to every API record.
type CountryRef struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Record is one normalized entry of the API's records array.
type Record struct {
	Date    string     `json:"date"`
	Value   *float64   `json:"value"`
	Country CountryRef `json:"country"`
}

// Placeholder figures attached to every table row. The table fetch only
// queries population; these are not joined per country.
const (
	PlaceholderDensity        = 100.0
	PlaceholderGrowthRate     = 1.5
	PlaceholderLifeExpectancy = 70.0
)

// TableRow is a single country's figures for the selected year.
type TableRow struct {
	Country        string   `json:"country"`
	Population     *float64 `json:"population"`
	Density        float64  `json:"density"`
	GrowthRate     float64  `json:"growthRate"`
	LifeExpectancy float64  `json:"lifeExpectancy"`
}

// DerivedMetrics are the home page headline figures.
type DerivedMetrics struct {
	TotalPopulation    *float64 `json:"totalPopulation"`
	ChangeInPopulation *float64 `json:"changeInPopulation"`
	LifeExpectancy     *float64 `json:"lifeExpectancy"`
	AverageDensity     *float64 `json:"averageDensity"`
}

// Clone returns a deep copy.
func (m DerivedMetrics) Clone() DerivedMetrics {
	return DerivedMetrics{
		TotalPopulation:    clonePtr(m.TotalPopulation),
		ChangeInPopulation: clonePtr(m.ChangeInPopulation),
		LifeExpectancy:     clonePtr(m.LifeExpectancy),
		AverageDensity:     clonePtr(m.AverageDensity),
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
