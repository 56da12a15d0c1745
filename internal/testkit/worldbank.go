// Package testkit provides a deterministic stand-in for the World Bank
// indicators API for tests and offline development.
package testkit

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"popdash/domain/population"
)

// WorldBankConfig configures the fake API
type WorldBankConfig struct {
	Seed      int64    `json:"seed"`
	PerPage   int      `json:"per_page"`
	NullEvery int      `json:"null_every"` // every Nth year has a null value; 0 disables
	Countries []string `json:"countries"`  // rows returned for single-year queries
}

// DefaultWorldBankConfig returns sensible defaults for the fake API
func DefaultWorldBankConfig() WorldBankConfig {
	return WorldBankConfig{
		Seed:      42,
		PerPage:   50,
		Countries: []string{"World"},
	}
}

// FakeWorldBank serves synthetic indicator series shaped like the real API
type FakeWorldBank struct {
	*httptest.Server

	config WorldBankConfig
	calls  int32

	mu         sync.Mutex
	failStatus int
	paths      []string
}

// NewFakeWorldBank starts the fake API and closes it when t finishes
func NewFakeWorldBank(t testing.TB, config WorldBankConfig) *FakeWorldBank {
	if config.PerPage <= 0 {
		config.PerPage = 50
	}
	if len(config.Countries) == 0 {
		config.Countries = []string{"World"}
	}

	f := &FakeWorldBank{config: config}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// Calls returns how many requests reached the fake
func (f *FakeWorldBank) Calls() int { return int(atomic.LoadInt32(&f.calls)) }

// Requests returns the request URIs seen so far
func (f *FakeWorldBank) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

// FailWith makes every following request answer status; 0 restores data
func (f *FakeWorldBank) FailWith(status int) {
	f.mu.Lock()
	f.failStatus = status
	f.mu.Unlock()
}

// Value is the deterministic figure the fake reports for code in year
func (f *FakeWorldBank) Value(code population.Indicator, year int) *float64 {
	if f.config.NullEvery > 0 && year%f.config.NullEvery == 0 {
		return nil
	}

	t := float64(year - population.MinYear)
	var base float64
	switch code {
	case population.IndicatorPopulation:
		base = 3.03e9 * math.Pow(1.0157, t)
	case population.IndicatorGrowthRate:
		base = 2.0 - 0.015*t
	case population.IndicatorLifeExpectancy:
		base = 52.6 + 0.3*t
	case population.IndicatorDensity:
		base = 23.4 * math.Pow(1.0157, t)
	default:
		return nil
	}

	h := fnv.New64a()
	fmt.Fprintf(h, "%s/%d", code, year)
	rng := rand.New(rand.NewSource(f.config.Seed ^ int64(h.Sum64())))
	v := base * (1 + (rng.Float64()-0.5)*0.002)
	return &v
}

func (f *FakeWorldBank) serve(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.calls, 1)

	f.mu.Lock()
	f.paths = append(f.paths, r.URL.RequestURI())
	failStatus := f.failStatus
	f.mu.Unlock()

	if failStatus != 0 {
		http.Error(w, http.StatusText(failStatus), failStatus)
		return
	}

	code, ok := indicatorFromPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if _, known := population.LookupCode(code); !known {
		writeEnvelope(w, []interface{}{map[string]interface{}{
			"message": []map[string]string{{"id": "120", "key": "Invalid value", "value": "The provided parameter value is not valid"}},
		}})
		return
	}

	start, end, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records := f.records(code, start, end)
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pages := (len(records) + f.config.PerPage - 1) / f.config.PerPage
	if pages == 0 {
		pages = 1
	}

	lo := (page - 1) * f.config.PerPage
	hi := lo + f.config.PerPage
	if lo > len(records) {
		lo = len(records)
	}
	if hi > len(records) {
		hi = len(records)
	}

	meta := map[string]interface{}{
		"page":     page,
		"pages":    pages,
		"per_page": f.config.PerPage,
		"total":    len(records),
	}
	if len(records) == 0 {
		writeEnvelope(w, []interface{}{meta, nil})
		return
	}
	writeEnvelope(w, []interface{}{meta, records[lo:hi]})
}

type fakeRecord struct {
	Indicator population.CountryRef `json:"indicator"`
	Country   population.CountryRef `json:"country"`
	Date      string                `json:"date"`
	Value     *float64              `json:"value"`
}

// records is newest first; single-year queries return one row per country.
func (f *FakeWorldBank) records(code population.Indicator, start, end int) []fakeRecord {
	info, _ := population.LookupCode(code)
	indicator := population.CountryRef{ID: string(code), Value: info.Label}

	if start == end {
		out := make([]fakeRecord, 0, len(f.config.Countries))
		for i, country := range f.config.Countries {
			v := f.Value(code, start)
			if v != nil && i > 0 {
				share := *v / float64(len(f.config.Countries)+i)
				v = &share
			}
			out = append(out, fakeRecord{
				Indicator: indicator,
				Country:   population.CountryRef{ID: fmt.Sprintf("C%d", i), Value: country},
				Date:      strconv.Itoa(start),
				Value:     v,
			})
		}
		return out
	}

	out := make([]fakeRecord, 0, end-start+1)
	for y := end; y >= start; y-- {
		out = append(out, fakeRecord{
			Indicator: indicator,
			Country:   population.CountryRef{ID: "1W", Value: "World"},
			Date:      strconv.Itoa(y),
			Value:     f.Value(code, y),
		})
	}
	return out
}

func indicatorFromPath(path string) (population.Indicator, bool) {
	const prefix = "/v2/country/WLD/indicator/"
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	code := strings.TrimPrefix(path, prefix)
	return population.Indicator(code), code != ""
}

func parseDate(date string) (int, int, error) {
	parts := strings.SplitN(date, ":", 2)
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid date %q", date)
	}
	if len(parts) == 1 {
		return start, start, nil
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid date %q", date)
	}
	return start, end, nil
}

func writeEnvelope(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
