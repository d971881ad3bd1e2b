// Package refinitiv wraps the Refinitiv Datastream Web Service (DSWS) REST
// API for KPI time series.
package refinitiv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/kpi-screener/internal/resilience"
)

// Default base URL for the DSWS REST service.
const defaultBaseURL = "https://product.datastream.com/dswsclient/V1/DSService.svc/rest"

// Tokens are valid for 24h; refresh well before that.
const tokenLifetime = 20 * time.Hour

// Client defines the DSWS operations used by this application.
type Client interface {
	Timeseries(ctx context.Context, req TimeseriesRequest) ([]Point, error)
}

// TimeseriesRequest describes one GetData call. Start and End accept
// absolute dates ("2024-01-01") or relative offsets ("-5Y", "-0D").
type TimeseriesRequest struct {
	Instrument string
	Datatype   string
	Start      string
	End        string
	Frequency  string
}

// Point is one dated value from a DSWS time series.
type Point struct {
	Date  time.Time
	Value float64
}

// APIError is returned when DSWS responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("refinitiv: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	username string
	password string
	baseURL  string
	http     *http.Client
	retry    resilience.Policy

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a new DSWS client. The token is fetched lazily on the
// first call and refreshed when it nears expiry.
func NewClient(username, password string, opts ...Option) Client {
	c := &httpClient{
		username: username,
		password: password,
		baseURL:  defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	target := fmt.Sprintf("%s/Token?username=%s&password=%s",
		c.baseURL, url.QueryEscape(c.username), url.QueryEscape(c.password))

	body, err := resilience.Do(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "execute request")
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "read response body")
		}
		if resp.StatusCode != http.StatusOK {
			apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(data)}
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
			}
			return nil, apiErr
		}
		return data, nil
	})
	if err != nil {
		return "", eris.Wrap(err, "refinitiv: get token")
	}

	// The service sometimes returns the JSON body as a quoted string.
	raw := strings.Trim(strings.TrimSpace(string(body)), `"`)
	var tok struct {
		TokenValue string `json:"TokenValue"`
	}
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return "", eris.Wrap(err, "refinitiv: decode token")
	}
	if tok.TokenValue == "" {
		return "", eris.New("refinitiv: empty token in response")
	}

	c.token = tok.TokenValue
	c.tokenExpiry = time.Now().Add(tokenLifetime)
	return c.token, nil
}

type getDataPayload struct {
	DataRequest dataRequest `json:"DataRequest"`
	TokenValue  string      `json:"TokenValue"`
}

type dataRequest struct {
	DataTypes  []valueField `json:"DataTypes"`
	Date       dateRange    `json:"Date"`
	Instrument valueField   `json:"Instrument"`
}

type valueField struct {
	Value string `json:"Value"`
}

type dateRange struct {
	Start     string `json:"Start"`
	End       string `json:"End"`
	Frequency string `json:"Frequency"`
	Kind      int    `json:"Kind"`
}

type getDataResponse struct {
	DataResponse struct {
		Dates          []string `json:"Dates"`
		DataTypeValues []struct {
			DataType     string `json:"DataType"`
			SymbolValues []struct {
				Value json.RawMessage `json:"Value"`
			} `json:"SymbolValues"`
		} `json:"DataTypeValues"`
	} `json:"DataResponse"`
}

func (c *httpClient) Timeseries(ctx context.Context, tsReq TimeseriesRequest) ([]Point, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := getDataPayload{
		DataRequest: dataRequest{
			DataTypes: []valueField{{Value: tsReq.Datatype}},
			Date: dateRange{
				Start:     tsReq.Start,
				End:       tsReq.End,
				Frequency: tsReq.Frequency,
				Kind:      1,
			},
			Instrument: valueField{Value: tsReq.Instrument},
		},
		TokenValue: token,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "refinitiv: marshal request")
	}

	body, err := resilience.Do(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/GetData", bytes.NewReader(buf))
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "execute request")
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "read response body")
		}
		if resp.StatusCode != http.StatusOK {
			apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(data)}
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
			}
			return nil, apiErr
		}
		return data, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("refinitiv: get %s for %s", tsReq.Datatype, tsReq.Instrument))
	}

	var resp getDataResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "refinitiv: decode response")
	}
	return parsePoints(resp)
}

func parsePoints(resp getDataResponse) ([]Point, error) {
	dates := make([]time.Time, len(resp.DataResponse.Dates))
	for i, d := range resp.DataResponse.Dates {
		t, err := parseWCFDate(d)
		if err != nil {
			return nil, err
		}
		dates[i] = t
	}

	var points []Point
	for _, dtv := range resp.DataResponse.DataTypeValues {
		for _, sv := range dtv.SymbolValues {
			var values []*float64
			if err := json.Unmarshal(sv.Value, &values); err != nil {
				// A scalar value (usually an error string) means no series.
				continue
			}
			for i, v := range values {
				if i >= len(dates) || v == nil {
					continue
				}
				points = append(points, Point{Date: dates[i], Value: *v})
			}
		}
	}
	return points, nil
}

// parseWCFDate parses the WCF "/Date(1672531200000+0000)/" encoding.
func parseWCFDate(s string) (time.Time, error) {
	open := strings.IndexByte(s, '(')
	close := strings.IndexByte(s, ')')
	if open < 0 || close < open {
		return time.Time{}, eris.New(fmt.Sprintf("refinitiv: malformed date %q", s))
	}
	inner := s[open+1 : close]
	if i := strings.IndexAny(inner, "+-"); i > 0 {
		inner = inner[:i]
	}
	ms, err := strconv.ParseInt(inner, 10, 64)
	if err != nil {
		return time.Time{}, eris.Wrap(err, fmt.Sprintf("refinitiv: malformed date %q", s))
	}
	return time.UnixMilli(ms).UTC(), nil
}
