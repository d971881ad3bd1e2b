// Package borsdata wraps the Borsdata API used to source Nordic instrument
// metadata and KPI history.
package borsdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/kpi-screener/internal/resilience"
)

// Default base URL for the Borsdata v1 API.
const defaultBaseURL = "https://apiservice.borsdata.se/v1"

// Client defines the Borsdata API operations used by this application.
type Client interface {
	Instruments(ctx context.Context) ([]Instrument, error)
	Countries(ctx context.Context) ([]RefEntry, error)
	Markets(ctx context.Context) ([]RefEntry, error)
	Sectors(ctx context.Context) ([]RefEntry, error)
	Branches(ctx context.Context) ([]RefEntry, error)
	KPIMetadata(ctx context.Context) ([]KPIMetadata, error)
	KPIHistory(ctx context.Context, insID, kpiID int, reportType string, maxCount int) ([]KPIValue, error)
}

// Instrument is one listed instrument as Borsdata returns it.
type Instrument struct {
	InsID     int    `json:"insId"`
	Name      string `json:"name"`
	Ticker    string `json:"ticker"`
	ISIN      string `json:"isin"`
	MarketID  int    `json:"marketId"`
	SectorID  int    `json:"sectorId"`
	BranchID  int    `json:"branchId"`
	CountryID int    `json:"countryId"`
}

// RefEntry is one row of a reference table (country, market, sector, branch).
type RefEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// KPIMetadata describes one KPI in the Borsdata catalogue.
type KPIMetadata struct {
	KPIID    int    `json:"kpiId"`
	NameSv   string `json:"nameSv"`
	NameEn   string `json:"nameEn"`
	Format   string `json:"format"`
	IsString bool   `json:"isString"`
}

// KPIValue is one point of KPI history. P is the quarter (1-4) for quarterly
// history and 0 for yearly.
type KPIValue struct {
	Year    int     `json:"y"`
	Period  int     `json:"p"`
	Value   float64 `json:"v"`
	ValueSt string  `json:"s,omitempty"`
}

// Report types accepted by KPIHistory.
const (
	ReportTypeYear    = "year"
	ReportTypeQuarter = "quarter"
	ReportTypeR12     = "r12"
)

// APIError is returned when Borsdata responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("borsdata: HTTP %d: %s", e.StatusCode, e.Body)
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

// WithRateLimit overrides the default Borsdata rate limit. Passing rps <= 0
// disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		} else {
			c.limiter = nil
		}
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.Policy
}

// NewClient creates a new Borsdata client. By default calls are throttled to
// Borsdata's documented limit of 100 calls per 10 seconds.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Every(10*time.Second/100), 10),
		retry:   resilience.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Instruments(ctx context.Context) ([]Instrument, error) {
	var resp struct {
		Instruments []Instrument `json:"instruments"`
	}
	if err := c.get(ctx, "/instruments", nil, &resp); err != nil {
		return nil, eris.Wrap(err, "borsdata: list instruments")
	}
	return resp.Instruments, nil
}

func (c *httpClient) Countries(ctx context.Context) ([]RefEntry, error) {
	return c.refTable(ctx, "/countries", "countries")
}

func (c *httpClient) Markets(ctx context.Context) ([]RefEntry, error) {
	return c.refTable(ctx, "/markets", "markets")
}

func (c *httpClient) Sectors(ctx context.Context) ([]RefEntry, error) {
	return c.refTable(ctx, "/sectors", "sectors")
}

func (c *httpClient) Branches(ctx context.Context) ([]RefEntry, error) {
	return c.refTable(ctx, "/branches", "branches")
}

func (c *httpClient) refTable(ctx context.Context, path, key string) ([]RefEntry, error) {
	var resp map[string][]RefEntry
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("borsdata: list %s", key))
	}
	return resp[key], nil
}

func (c *httpClient) KPIMetadata(ctx context.Context) ([]KPIMetadata, error) {
	var resp struct {
		KPIHistoryMetadatas []KPIMetadata `json:"kpiHistoryMetadatas"`
	}
	if err := c.get(ctx, "/instruments/kpis/metadata", nil, &resp); err != nil {
		return nil, eris.Wrap(err, "borsdata: kpi metadata")
	}
	return resp.KPIHistoryMetadatas, nil
}

func (c *httpClient) KPIHistory(ctx context.Context, insID, kpiID int, reportType string, maxCount int) ([]KPIValue, error) {
	path := fmt.Sprintf("/instruments/%d/kpis/%d/%s/mean/history", insID, kpiID, reportType)
	params := url.Values{}
	if maxCount > 0 {
		params.Set("maxCount", fmt.Sprint(maxCount))
	}

	var resp struct {
		Values []KPIValue `json:"values"`
	}
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("borsdata: kpi %d history for instrument %d", kpiID, insID))
	}
	return resp.Values, nil
}

func (c *httpClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("authKey", c.apiKey)
	target := c.baseURL + path + "?" + params.Encode()

	data, err := resilience.Do(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "rate limit")
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "execute request")
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "read response body")
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
			}
			return nil, apiErr
		}
		return body, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}
