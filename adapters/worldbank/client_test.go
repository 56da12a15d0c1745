package worldbank

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"popdash/domain/core"
	"popdash/domain/population"
	"popdash/internal/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves a fixed handler and counts requests.
type fakeAPI struct {
	server *httptest.Server
	calls  int32
	last   atomic.Value // *http.Request
}

func newFakeAPI(t *testing.T, handler http.HandlerFunc) *fakeAPI {
	f := &fakeAPI{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.calls, 1)
		f.last.Store(r)
		handler(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) callCount() int { return int(atomic.LoadInt32(&f.calls)) }

func (f *fakeAPI) lastRequest() *http.Request {
	r, _ := f.last.Load().(*http.Request)
	return r
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	c := NewClient(Config{BaseURL: baseURL, RateLimitPerMinute: 1000, MaxPages: 3}, opts...)
	t.Cleanup(c.Close)
	return c
}

const twoRecords = `[{"page":1,"pages":1,"per_page":50,"total":2},[
	{"indicator":{"id":"SP.POP.TOTL","value":"Population, total"},"country":{"id":"1W","value":"World"},"date":"2023","value":1000},
	{"indicator":{"id":"SP.POP.TOTL","value":"Population, total"},"country":{"id":"1W","value":"World"},"date":"2022","value":900}
]]`

func TestFetchBuildsDateQuery(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, twoRecords)
	})
	client := newTestClient(t, api.server.URL)

	ranges := [][2]int{{1960, 1960}, {1960, 2021}, {2020, 2023}, {2018, 2023}}
	for _, rg := range ranges {
		_, err := client.Fetch(context.Background(), population.IndicatorPopulation, rg[0], rg[1])
		require.NoError(t, err)

		req := api.lastRequest()
		require.NotNil(t, req)
		assert.Equal(t, fmt.Sprintf("%d:%d", rg[0], rg[1]), req.URL.Query().Get("date"))
		assert.Equal(t, "json", req.URL.Query().Get("format"))
		assert.Equal(t, "/v2/country/WLD/indicator/SP.POP.TOTL", req.URL.Path)
	}
}

func TestFetchParsesSeries(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{}, [{"date":"2023","value":1000},{"date":"2022","value":900}]]`)
	})
	client := newTestClient(t, api.server.URL)

	series, err := client.Fetch(context.Background(), population.IndicatorPopulation, 2018, 2023)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "2023", series[0].Year)
	assert.Equal(t, 1000.0, *series[0].Value)
	assert.Equal(t, "2022", series[1].Year)
	assert.Equal(t, 900.0, *series[1].Value)
}

func TestFetchRetainsNullValues(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"page":1,"pages":1},[{"date":"2021","value":null},{"date":"2020","value":60.5}]]`)
	})
	client := newTestClient(t, api.server.URL)

	series, err := client.Fetch(context.Background(), population.IndicatorDensity, 2020, 2021)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Nil(t, series[0].Value)
	assert.Equal(t, 60.5, *series[1].Value)
}

func TestFetchNullRecordsIsEmptySeries(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"page":0,"pages":0,"per_page":50,"total":0},null]`)
	})
	client := newTestClient(t, api.server.URL)

	series, err := client.Fetch(context.Background(), population.IndicatorGrowthRate, 1960, 1961)
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestFetchInvalidRangeMakesNoCall(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, twoRecords)
	})
	client := newTestClient(t, api.server.URL)

	tests := []struct {
		start, end int
	}{
		{1959, 2023},
		{1900, 1950},
		{2023, 2022},
	}

	for _, test := range tests {
		_, err := client.Fetch(context.Background(), population.IndicatorPopulation, test.start, test.end)
		assert.True(t, errors.Is(err, core.ErrInvalidRange), "range %d:%d", test.start, test.end)
	}

	_, err := client.FetchYear(context.Background(), population.IndicatorPopulation, 1959)
	assert.True(t, errors.Is(err, core.ErrInvalidRange))

	assert.Equal(t, 0, api.callCount())
}

func TestFetchRemoteErrorCarriesStatus(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	})
	client := newTestClient(t, api.server.URL)

	_, err := client.Fetch(context.Background(), population.IndicatorPopulation, 2020, 2023)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrRemoteFetch))

	var fe *population.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	assert.Equal(t, population.IndicatorPopulation, fe.Indicator)
	assert.Contains(t, err.Error(), "503")
}

func TestFetchRejectsOversizedResponse(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, twoRecords)
	})
	client := NewClient(Config{BaseURL: api.server.URL, RateLimitPerMinute: 1000, MaxResponseBytes: 64})
	t.Cleanup(client.Close)

	_, err := client.Fetch(context.Background(), population.IndicatorPopulation, 2022, 2023)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMalformedResponse))
	assert.Contains(t, err.Error(), "exceeds 64 bytes")

	client = newTestClient(t, api.server.URL)
	series, err := client.Fetch(context.Background(), population.IndicatorPopulation, 2022, 2023)
	require.NoError(t, err)
	assert.Len(t, series, 2)
}

func TestFetchTransportErrorIsRemoteFetch(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {})
	url := api.server.URL
	api.server.Close()

	client := newTestClient(t, url)
	_, err := client.Fetch(context.Background(), population.IndicatorPopulation, 2020, 2023)
	assert.True(t, errors.Is(err, core.ErrRemoteFetch))
}

func TestFetchMalformedEnvelopes(t *testing.T) {
	bodies := map[string]string{
		"missing records":  `[{"page":1,"pages":1}]`,
		"object envelope":  `{"page":1}`,
		"records not list": `[{"page":1},{"date":"2023"}]`,
		"api error":        `[{"message":[{"id":"120","key":"Invalid value","value":"The provided parameter value is not valid"}]}]`,
		"not json":         `<html>oops</html>`,
	}

	for name, body := range bodies {
		body := body
		t.Run(name, func(t *testing.T) {
			api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			})
			client := newTestClient(t, api.server.URL)

			_, err := client.Fetch(context.Background(), population.IndicatorPopulation, 2020, 2023)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrMalformedResponse), "got %v", err)
		})
	}
}

func TestFetchFollowsPagination(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "":
			fmt.Fprint(w, `[{"page":1,"pages":2,"per_page":2,"total":3},[{"date":"2021","value":3},{"date":"2020","value":2}]]`)
		case "2":
			fmt.Fprint(w, `[{"page":2,"pages":2,"per_page":2,"total":3},[{"date":"2019","value":1}]]`)
		default:
			http.NotFound(w, r)
		}
	})
	client := newTestClient(t, api.server.URL)

	series, err := client.Fetch(context.Background(), population.IndicatorDensity, 2019, 2021)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, []string{"2021", "2020", "2019"}, []string{series[0].Year, series[1].Year, series[2].Year})
	assert.Equal(t, 2, api.callCount())
}

func TestFetchStopsAtMaxPages(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"page":1,"pages":10},[{"date":"2021","value":1}]]`)
	})
	client := newTestClient(t, api.server.URL)

	series, err := client.Fetch(context.Background(), population.IndicatorDensity, 1960, 2021)
	require.NoError(t, err)
	assert.Len(t, series, 3)
	assert.Equal(t, 3, api.callCount())
}

func TestFetchServesFromCache(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, twoRecords)
	})
	responses := cache.NewMemoryCache(10)
	client := newTestClient(t, api.server.URL, WithCache(responses, time.Hour))

	first, err := client.Fetch(context.Background(), population.IndicatorPopulation, 2022, 2023)
	require.NoError(t, err)
	second, err := client.Fetch(context.Background(), population.IndicatorPopulation, 2022, 2023)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, api.callCount())
	assert.Equal(t, 1, responses.Len())
}

func TestFetchDoesNotCacheFailures(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"page":1}]`)
	})
	responses := cache.NewMemoryCache(10)
	client := newTestClient(t, api.server.URL, WithCache(responses, time.Hour))

	_, err := client.Fetch(context.Background(), population.IndicatorPopulation, 2022, 2023)
	require.Error(t, err)
	assert.Equal(t, 0, responses.Len())
}

func TestFetchYearUsesSingleYearQuery(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"page":1,"pages":1},[
			{"country":{"id":"1W","value":"World"},"date":"2023","value":8000},
			{"country":{"id":"FR","value":"France"},"date":"2023","value":68}
		]]`)
	})
	client := newTestClient(t, api.server.URL)

	records, err := client.FetchYear(context.Background(), population.IndicatorPopulation, 2023)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2023", api.lastRequest().URL.Query().Get("date"))
	assert.Equal(t, "World", records[0].Country.Value)
	assert.Equal(t, "FR", records[1].Country.ID)
}

func TestIndicatorURL(t *testing.T) {
	client := newTestClient(t, "https://api.example.org")
	assert.Equal(t,
		"https://api.example.org/v2/country/WLD/indicator/EN.POP.DNST?date=1960:2021&format=json",
		client.IndicatorURL(population.IndicatorDensity, "1960:2021", 1))
	assert.Equal(t,
		"https://api.example.org/v2/country/WLD/indicator/SP.POP.TOTL?date=2023&format=json&page=2",
		client.IndicatorURL(population.IndicatorPopulation, "2023", 2))
}

func TestFetchHonoursContextCancellation(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	client := newTestClient(t, api.server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Fetch(ctx, population.IndicatorPopulation, 2020, 2023)
	assert.True(t, errors.Is(err, core.ErrRemoteFetch))
}
