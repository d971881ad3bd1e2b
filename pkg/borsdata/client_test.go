package borsdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/kpi-screener/internal/resilience"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRateLimit(0, 0),
		WithRetryPolicy(resilience.Policy{MaxAttempts: 1}),
	)
}

func TestInstruments(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/instruments", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("authKey"))

		w.Write([]byte(`{"instruments":[
			{"insId":3,"name":"Evolution","ticker":"EVO","isin":"SE0012673267","marketId":1,"sectorId":5,"branchId":12,"countryId":1},
			{"insId":7,"name":"Mærsk","ticker":"MAERSK B","isin":"DK0010244508","marketId":3,"sectorId":8,"branchId":40,"countryId":2}
		]}`))
	})

	got, err := c.Instruments(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].InsID)
	assert.Equal(t, "EVO", got[0].Ticker)
	assert.Equal(t, 2, got[1].CountryID)
}

func TestInstruments_AuthError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid key"}`))
	})

	_, err := c.Instruments(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestKPIHistory(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instruments/3/kpis/53/quarter/mean/history", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("maxCount"))

		w.Write([]byte(`{"kpiId":53,"values":[
			{"y":2023,"p":2,"v":12.5},
			{"y":2023,"p":1,"v":11.0}
		]}`))
	})

	got, err := c.KPIHistory(context.Background(), 3, 53, ReportTypeQuarter, 20)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, KPIValue{Year: 2023, Period: 2, Value: 12.5}, got[0])
}

func TestKPIHistory_YearlyOmitsPeriod(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instruments/3/kpis/53/year/mean/history", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("maxCount"))

		w.Write([]byte(`{"kpiId":53,"values":[{"y":2022,"v":40.0}]}`))
	})

	got, err := c.KPIHistory(context.Background(), 3, 53, ReportTypeYear, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Period)
	assert.Equal(t, 2022, got[0].Year)
}

func TestKPIMetadata(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instruments/kpis/metadata", r.URL.Path)
		w.Write([]byte(`{"kpiHistoryMetadatas":[
			{"kpiId":53,"nameSv":"Omsättning","nameEn":"Revenue","format":"number","isString":false}
		]}`))
	})

	got, err := c.KPIMetadata(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Revenue", got[0].NameEn)
}

func TestRefTables(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/countries":
			w.Write([]byte(`{"countries":[{"id":1,"name":"Sverige"}]}`))
		case "/markets":
			w.Write([]byte(`{"markets":[{"id":1,"name":"Large Cap"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	countries, err := c.Countries(context.Background())
	require.NoError(t, err)
	require.Len(t, countries, 1)
	assert.Equal(t, "Sverige", countries[0].Name)

	markets, err := c.Markets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Large Cap", markets[0].Name)
}

func TestGet_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"instruments":[{"insId":1,"name":"A","ticker":"A"}]}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRateLimit(0, 0),
		WithRetryPolicy(resilience.Policy{MaxAttempts: 2, InitialBackoff: time.Millisecond}),
	)

	got, err := c.Instruments(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(2), calls.Load())
}
