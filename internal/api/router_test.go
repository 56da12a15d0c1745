package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"popdash/adapters/excel"
	"popdash/domain/population"
	"popdash/internal/store"
)

// stubFetcher answers every request with fixed data or a fixed error.
type stubFetcher struct {
	series  population.IndicatorSeries
	records []population.Record
	err     error
}

func (s *stubFetcher) Fetch(ctx context.Context, code population.Indicator, startYear, endYear int) (population.IndicatorSeries, error) {
	return s.series, s.err
}

func (s *stubFetcher) FetchYear(ctx context.Context, code population.Indicator, year int) ([]population.Record, error) {
	return s.records, s.err
}

func newTestRouter(f *stubFetcher) (*Router, *store.Store) {
	s := store.New(f)
	return NewRouter(s, excel.XLSXWriter{}), s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStateStartsIdle(t *testing.T) {
	r, _ := newTestRouter(&stubFetcher{})
	rec := do(t, r, http.MethodGet, "/api/v1/state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	home := snap["home"].(map[string]interface{})
	assert.Equal(t, "idle", home["status"])
}

func TestIndicators(t *testing.T) {
	r, _ := newTestRouter(&stubFetcher{})
	rec := do(t, r, http.MethodGet, "/api/v1/indicators", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []population.IndicatorInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 4)
	assert.Equal(t, population.IndicatorPopulation, infos[0].Code)
}

func TestSeriesDispatch(t *testing.T) {
	f := &stubFetcher{series: population.IndicatorSeries{
		{Year: "2023", Value: population.Float(1000)},
		{Year: "2022", Value: population.Float(900)},
	}}
	r, s := newTestRouter(f)

	rec := do(t, r, http.MethodPost, "/api/v1/series", `{"indicator":"Population","timeRange":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.StatusSucceeded, s.Snapshot().Series.Status)
	assert.Contains(t, rec.Body.String(), `"timeRange":5`)
}

func TestSeriesDispatchInvalidRange(t *testing.T) {
	r, _ := newTestRouter(&stubFetcher{})
	rec := do(t, r, http.MethodPost, "/api/v1/series", `{"indicator":"Population","timeRange":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_INPUT", resp.Code)
	require.NotNil(t, resp.Detail)
	assert.Equal(t, population.KindInvalidRange, resp.Detail.Kind)
	require.NotNil(t, resp.State)
	assert.Equal(t, store.StatusFailed, resp.State.Series.Status)
}

func TestSeriesDispatchBadBody(t *testing.T) {
	r, _ := newTestRouter(&stubFetcher{})
	rec := do(t, r, http.MethodPost, "/api/v1/series", `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestHomeDispatchRemoteFailure(t *testing.T) {
	f := &stubFetcher{err: population.NewRemoteFetchError(population.IndicatorPopulation, 2020, 2023, 503, nil)}
	r, _ := newTestRouter(f)

	rec := do(t, r, http.MethodPost, "/api/v1/home", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "EXTERNAL_SERVICE_ERROR", resp.Code)
	assert.Equal(t, 503, resp.Detail.StatusCode)
}

func TestTableDispatchAndExport(t *testing.T) {
	f := &stubFetcher{records: []population.Record{
		{Date: "2021", Value: population.Float(7.9e9), Country: population.CountryRef{ID: "1W", Value: "World"}},
	}}
	r, _ := newTestRouter(f)

	rec := do(t, r, http.MethodPost, "/api/v1/table", `{"year":"2021"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"availableYears":["2021"]`)

	rec = do(t, r, http.MethodGet, "/api/v1/table.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "population-2021.xlsx")

	wb, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer wb.Close()
	country, err := wb.GetCellValue(excel.TableSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "World", country)
}

func TestTableExportWithoutTable(t *testing.T) {
	r, _ := newTestRouter(&stubFetcher{})
	rec := do(t, r, http.MethodGet, "/api/v1/table.xlsx", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(&stubFetcher{})
	rec := do(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
