package refinitiv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/kpi-screener/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("user", "pass",
		WithBaseURL(srv.URL),
		WithRetryPolicy(resilience.Policy{MaxAttempts: 1}),
	)
}

// ms for 2023-03-31T00:00:00Z and 2023-06-30T00:00:00Z.
const (
	q1Millis = 1680220800000
	q2Millis = 1688083200000
)

func dswsHandler(t *testing.T, tokenCalls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Token":
			if tokenCalls != nil {
				tokenCalls.Add(1)
			}
			assert.Equal(t, "user", r.URL.Query().Get("username"))
			assert.Equal(t, "pass", r.URL.Query().Get("password"))
			w.Write([]byte(`{"TokenValue":"tok-123"}`))
		case "/GetData":
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "tok-123", payload["TokenValue"])

			w.Write([]byte(`{"DataResponse":{
				"Dates":["/Date(1680220800000+0000)/","/Date(1688083200000+0000)/"],
				"DataTypeValues":[{"DataType":"WC01001","SymbolValues":[{"Value":[100.5,110.25]}]}]
			}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestTimeseries(t *testing.T) {
	c := newTestClient(t, dswsHandler(t, nil))

	got, err := c.Timeseries(context.Background(), TimeseriesRequest{
		Instrument: "VOD",
		Datatype:   "WC01001",
		Start:      "-5Y",
		End:        "-0D",
		Frequency:  "Q",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, time.UnixMilli(q1Millis).UTC(), got[0].Date)
	assert.Equal(t, 100.5, got[0].Value)
	assert.Equal(t, 110.25, got[1].Value)
}

func TestTimeseries_TokenReused(t *testing.T) {
	var tokenCalls atomic.Int32
	c := newTestClient(t, dswsHandler(t, &tokenCalls))

	req := TimeseriesRequest{Instrument: "VOD", Datatype: "WC01001", Start: "-1Y", End: "-0D", Frequency: "Q"}
	_, err := c.Timeseries(context.Background(), req)
	require.NoError(t, err)
	_, err = c.Timeseries(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestTimeseries_NullValuesSkipped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Token":
			w.Write([]byte(`"{\"TokenValue\":\"tok-123\"}"`))
		case "/GetData":
			w.Write([]byte(`{"DataResponse":{
				"Dates":["/Date(1680220800000)/","/Date(1688083200000)/"],
				"DataTypeValues":[{"DataType":"WC01001","SymbolValues":[{"Value":[null,42.0]}]}]
			}}`))
		}
	})

	got, err := c.Timeseries(context.Background(), TimeseriesRequest{
		Instrument: "VOD", Datatype: "WC01001", Start: "-1Y", End: "-0D", Frequency: "Q",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 42.0, got[0].Value)
}

func TestTimeseries_ScalarErrorValueYieldsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Token":
			w.Write([]byte(`{"TokenValue":"tok-123"}`))
		case "/GetData":
			w.Write([]byte(`{"DataResponse":{
				"Dates":["/Date(1680220800000)/"],
				"DataTypeValues":[{"DataType":"WC01001","SymbolValues":[{"Value":"$$ER: 0904,NO DATA AVAILABLE"}]}]
			}}`))
		}
	})

	got, err := c.Timeseries(context.Background(), TimeseriesRequest{
		Instrument: "XXX", Datatype: "WC01001", Start: "-1Y", End: "-0D", Frequency: "Q",
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetToken_BadCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"Message":"invalid credentials"}`))
	})

	_, err := c.Timeseries(context.Background(), TimeseriesRequest{
		Instrument: "VOD", Datatype: "WC01001", Start: "-1Y", End: "-0D", Frequency: "Q",
	})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestParseWCFDate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{"with offset", "/Date(1680220800000+0000)/", time.UnixMilli(q1Millis).UTC(), false},
		{"without offset", "/Date(1688083200000)/", time.UnixMilli(q2Millis).UTC(), false},
		{"garbage", "not a date", time.Time{}, true},
		{"empty parens", "/Date()/", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseWCFDate(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
