package store

import (
	"encoding/json"
	"time"

	"popdash/domain/population"
	"popdash/internal/profiling"
)

// Slice names an independently fetched part of the store.
type Slice string

const (
	SliceHome   Slice = "home"
	SliceSeries Slice = "series"
	SliceTable  Slice = "table"
)

// Status is the tag of a FetchState.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// FetchState is {Idle, Loading, Succeeded, Failed(err)} plus the generation
// of the dispatch that produced it.
type FetchState struct {
	Status     Status
	Err        error
	Generation uint64
}

// IsLoading reports whether a dispatch for the slice is in flight.
func (f FetchState) IsLoading() bool { return f.Status == StatusLoading }

// IsTerminal reports Succeeded or Failed.
func (f FetchState) IsTerminal() bool {
	return f.Status == StatusSucceeded || f.Status == StatusFailed
}

// MarshalJSON renders the error as a structured view.
func (f FetchState) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Status     Status                `json:"status"`
		Generation uint64                `json:"generation"`
		Error      *population.ErrorView `json:"error,omitempty"`
	}{
		Status:     f.Status,
		Generation: f.Generation,
		Error:      population.ViewOf(f.Err),
	})
}

// YearRange is an inclusive range of years.
type YearRange struct {
	Start int
	End   int
}

// Fixed ranges requested for the home page.
var (
	HomePopulationRange     = YearRange{Start: 2020, End: 2023}
	HomeDensityRange        = YearRange{Start: 1960, End: 2021}
	HomeLifeExpectancyRange = YearRange{Start: 1960, End: 2021}
)

// state is everything the store owns. Only the store mutates it.
type state struct {
	home   FetchState
	series FetchState
	table  FetchState

	metrics        population.DerivedMetrics
	populationData population.IndicatorSeries
	indicator      population.IndicatorInfo
	timeRange      int
	seriesSummary  *profiling.SeriesSummary

	tableYear      string
	tableData      []population.TableRow
	availableYears []string

	updatedAt time.Time
}

func (st *state) fetchState(slice Slice) *FetchState {
	switch slice {
	case SliceHome:
		return &st.home
	case SliceSeries:
		return &st.series
	default:
		return &st.table
	}
}

// Snapshot is a read-only copy of the store handed to views.
type Snapshot struct {
	Version uint64 `json:"version"`

	Home   FetchState `json:"home"`
	Series FetchState `json:"series"`
	Table  FetchState `json:"table"`

	Metrics        population.DerivedMetrics  `json:"metrics"`
	PopulationData population.IndicatorSeries `json:"populationData"`
	Indicator      population.IndicatorInfo   `json:"indicator"`
	TimeRange      int                        `json:"timeRange"`
	SeriesSummary  *profiling.SeriesSummary   `json:"seriesSummary,omitempty"`

	TableYear      string                `json:"tableYear"`
	TableData      []population.TableRow `json:"tableData"`
	AvailableYears []string              `json:"availableYears"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// Loading reports whether any slice has a dispatch in flight.
func (s Snapshot) Loading() bool {
	return s.Home.IsLoading() || s.Series.IsLoading() || s.Table.IsLoading()
}

// State returns the FetchState for a slice.
func (s Snapshot) State(slice Slice) FetchState {
	switch slice {
	case SliceHome:
		return s.Home
	case SliceSeries:
		return s.Series
	default:
		return s.Table
	}
}

func (st *state) snapshot(version uint64) Snapshot {
	snap := Snapshot{
		Version:        version,
		Home:           st.home,
		Series:         st.series,
		Table:          st.table,
		Metrics:        st.metrics.Clone(),
		PopulationData: st.populationData.Clone(),
		Indicator:      st.indicator,
		TimeRange:      st.timeRange,
		TableYear:      st.tableYear,
		TableData:      cloneRows(st.tableData),
		AvailableYears: append([]string(nil), st.availableYears...),
		UpdatedAt:      st.updatedAt,
	}
	if st.seriesSummary != nil {
		summary := *st.seriesSummary
		snap.SeriesSummary = &summary
	}
	return snap
}

func cloneRows(rows []population.TableRow) []population.TableRow {
	if rows == nil {
		return nil
	}
	out := make([]population.TableRow, len(rows))
	for i, r := range rows {
		out[i] = r
		if r.Population != nil {
			out[i].Population = population.Float(*r.Population)
		}
	}
	return out
}
