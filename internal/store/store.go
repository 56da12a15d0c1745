// Package store is the application state container. It owns the fetched
// population data, tracks a FetchState per slice, and notifies subscribers
// with a Snapshot after every change.
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"popdash/domain/core"
	"popdash/domain/population"
	"popdash/internal"
	"popdash/internal/profiling"
	"popdash/ports"
)

// DefaultReferenceYear anchors series time ranges.
const DefaultReferenceYear = 2023

// Store serializes all mutation behind mu. Each slice carries a generation
// counter; a completion commits only if its generation is still the latest
// issued for that slice.
type Store struct {
	fetcher       ports.IndicatorFetcher
	referenceYear int
	logger        *internal.Logger
	now           func() time.Time

	mu          sync.Mutex
	st          state
	version     uint64
	subscribers map[int]chan Snapshot
	nextSubID   int
}

// Option customizes a Store.
type Option func(*Store)

// WithReferenceYear sets the year series ranges count back from.
func WithReferenceYear(year int) Option {
	return func(s *Store) { s.referenceYear = year }
}

// WithLogger sets the logger.
func WithLogger(logger *internal.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store with every slice Idle.
func New(fetcher ports.IndicatorFetcher, opts ...Option) *Store {
	s := &Store{
		fetcher:       fetcher,
		referenceYear: DefaultReferenceYear,
		logger:        internal.DefaultLogger.WithComponent("store"),
		now:           time.Now,
		subscribers:   make(map[int]chan Snapshot),
	}
	s.st.home.Status = StatusIdle
	s.st.series.Status = StatusIdle
	s.st.table.Status = StatusIdle
	s.st.indicator = population.ResolveLabel(population.LabelPopulation)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReferenceYear returns the year series ranges end at.
func (s *Store) ReferenceYear() int { return s.referenceYear }

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.snapshot(s.version)
}

// Subscribe registers a channel that receives a Snapshot after each change.
// Delivery never blocks the store: when the buffer is full the notification
// is dropped for that subscriber. The returned func unsubscribes and closes
// the channel.
func (s *Store) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// SubscriberCount returns the number of live subscriptions.
func (s *Store) SubscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// DispatchHomeFetch loads the population, density and life expectancy series
// in parallel and derives the headline metrics. The first failure cancels
// the remaining requests and is the committed error.
func (s *Store) DispatchHomeFetch(ctx context.Context) error {
	gen, reqID := s.begin(SliceHome)
	s.logger.Info("%s home fetch started (generation %d)", reqID, gen)

	var popSeries, densitySeries, lifeSeries population.IndicatorSeries

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		popSeries, err = s.fetcher.Fetch(gctx, population.IndicatorPopulation, HomePopulationRange.Start, HomePopulationRange.End)
		return err
	})
	g.Go(func() error {
		var err error
		densitySeries, err = s.fetcher.Fetch(gctx, population.IndicatorDensity, HomeDensityRange.Start, HomeDensityRange.End)
		return err
	})
	g.Go(func() error {
		var err error
		lifeSeries, err = s.fetcher.Fetch(gctx, population.IndicatorLifeExpectancy, HomeLifeExpectancyRange.Start, HomeLifeExpectancyRange.End)
		return err
	})
	err := g.Wait()

	var summary *profiling.SeriesSummary
	if err == nil {
		summary = s.summarize(reqID, population.IndicatorPopulation, popSeries)
	}

	// PopulationData is shared with the series slice, so the labels that
	// describe it are replaced along with it.
	return s.commit(SliceHome, gen, reqID, err, func(st *state) {
		st.metrics = population.BuildMetrics(popSeries, densitySeries, lifeSeries)
		st.populationData = popSeries
		st.indicator = population.ResolveLabel(population.LabelPopulation)
		st.timeRange = HomePopulationRange.End - HomePopulationRange.Start
		st.seriesSummary = summary
	})
}

// DispatchSeriesFetch loads the indicator behind label over the last
// timeRangeYears years ending at the reference year. Unknown labels resolve
// to Population.
func (s *Store) DispatchSeriesFetch(ctx context.Context, label string, timeRangeYears int) error {
	gen, reqID := s.begin(SliceSeries)
	info := population.ResolveLabel(label)
	startYear := s.referenceYear - timeRangeYears
	s.logger.Info("%s series fetch %s (%s) %d:%d started (generation %d)", reqID, info.Label, info.Code, startYear, s.referenceYear, gen)

	if timeRangeYears <= 0 {
		err := population.NewInvalidRangeError(info.Code, startYear, s.referenceYear,
			fmt.Sprintf("time range must be a positive number of years, got %d", timeRangeYears))
		return s.commit(SliceSeries, gen, reqID, err, nil)
	}
	if err := population.ValidateRange(info.Code, startYear, s.referenceYear); err != nil {
		return s.commit(SliceSeries, gen, reqID, err, nil)
	}

	series, err := s.fetcher.Fetch(ctx, info.Code, startYear, s.referenceYear)

	var summary *profiling.SeriesSummary
	if err == nil {
		summary = s.summarize(reqID, info.Code, series)
	}

	return s.commit(SliceSeries, gen, reqID, err, func(st *state) {
		st.populationData = series
		st.indicator = info
		st.timeRange = timeRangeYears
		st.seriesSummary = summary
	})
}

// DispatchTableFetch loads population for a single year and builds one row
// per record. Density, growth rate and life expectancy are fixed
// placeholders, not per-country data.
func (s *Store) DispatchTableFetch(ctx context.Context, year string) error {
	gen, reqID := s.begin(SliceTable)
	s.logger.Info("%s table fetch for %q started (generation %d)", reqID, year, gen)

	y, convErr := strconv.Atoi(strings.TrimSpace(year))
	if convErr != nil {
		err := population.NewInvalidRangeError(population.IndicatorPopulation, 0, 0,
			fmt.Sprintf("year %q is not a number", year))
		return s.commit(SliceTable, gen, reqID, err, nil)
	}
	if err := population.ValidateRange(population.IndicatorPopulation, y, y); err != nil {
		return s.commit(SliceTable, gen, reqID, err, nil)
	}

	records, err := s.fetcher.FetchYear(ctx, population.IndicatorPopulation, y)
	rows, years := population.BuildTable(records)

	return s.commit(SliceTable, gen, reqID, err, func(st *state) {
		st.tableYear = strconv.Itoa(y)
		st.tableData = rows
		st.availableYears = years
	})
}

// summarize returns nil when the series has too few values to describe.
func (s *Store) summarize(reqID core.RequestID, code population.Indicator, series population.IndicatorSeries) *profiling.SeriesSummary {
	sum, err := profiling.SummarizeSeries(series)
	if err != nil {
		s.logger.Debug("%s no summary for %s: %v", reqID, code, err)
		return nil
	}
	return &sum
}

// begin moves slice to Loading, clears its error and issues a new
// generation. A slice already Loading stays Loading without a second
// notification.
func (s *Store) begin(slice Slice) (uint64, core.RequestID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs := s.st.fetchState(slice)
	wasLoading := fs.IsLoading()
	fs.Generation++
	fs.Status = StatusLoading
	fs.Err = nil

	if !wasLoading {
		s.notifyLocked()
	}
	return fs.Generation, core.NewRequestID()
}

// commit settles generation gen of slice. Stale generations are discarded
// and reported as core.ErrSuperseded.
func (s *Store) commit(slice Slice, gen uint64, reqID core.RequestID, fetchErr error, apply func(*state)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fs := s.st.fetchState(slice)
	if fs.Generation != gen {
		s.logger.Debug("%s %s generation %d discarded, latest is %d", reqID, slice, gen, fs.Generation)
		return fmt.Errorf("%s generation %d: %w", slice, gen, core.ErrSuperseded)
	}

	if fetchErr != nil {
		fs.Status = StatusFailed
		fs.Err = fetchErr
		s.logger.Warn("%s %s fetch failed: %v", reqID, slice, fetchErr)
	} else {
		if apply != nil {
			apply(&s.st)
		}
		fs.Status = StatusSucceeded
		fs.Err = nil
		s.logger.Info("%s %s fetch succeeded", reqID, slice)
	}
	s.st.updatedAt = s.now()
	s.notifyLocked()
	return fetchErr
}

func (s *Store) notifyLocked() {
	s.version++
	if len(s.subscribers) == 0 {
		return
	}
	snap := s.st.snapshot(s.version)
	for id, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			s.logger.Warn("subscriber %d is full, dropping snapshot %d", id, snap.Version)
		}
	}
}
