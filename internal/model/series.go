package model

import "sort"

// Observation is one reported KPI value for one stock and period.
// Observations are immutable once fetched.
type Observation struct {
	StockID int       `json:"stock_id"`
	Period  PeriodKey `json:"period"`
	Value   float64   `json:"value"`
}

// Series is a stock's history for one KPI, unique by period and sorted
// ascending by period.
type Series []Observation

// Values returns the raw values in period order.
func (s Series) Values() []float64 {
	vals := make([]float64, len(s))
	for i, obs := range s {
		vals[i] = obs.Value
	}
	return vals
}

// Tail returns the last n observations, or the whole series when n exceeds
// its length. n <= 0 returns an empty series.
func (s Series) Tail(n int) Series {
	if n <= 0 {
		return Series{}
	}
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Sort orders the series ascending by period in place.
func (s Series) Sort() {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Period.Before(s[j].Period)
	})
}

// StockSeries maps KPI short-name to that KPI's series for a single stock.
type StockSeries map[string]Series

// Dataset holds fetched series for a whole screening run, keyed by KPI
// short-name and then stock ID. Built once per run, read-only afterwards.
type Dataset map[string]map[int]Series

// ForStock assembles the per-stock view of the dataset. KPIs with no data
// for the stock are simply absent from the result.
func (d Dataset) ForStock(stockID int) StockSeries {
	out := make(StockSeries, len(d))
	for kpi, byStock := range d {
		if series, ok := byStock[stockID]; ok && len(series) > 0 {
			out[kpi] = series
		}
	}
	return out
}

// Add appends an observation to the dataset, creating nested maps as needed.
func (d Dataset) Add(kpi string, obs Observation) {
	byStock, ok := d[kpi]
	if !ok {
		byStock = make(map[int]Series)
		d[kpi] = byStock
	}
	byStock[obs.StockID] = append(byStock[obs.StockID], obs)
}

// SortAll orders every series in the dataset ascending by period.
func (d Dataset) SortAll() {
	for _, byStock := range d {
		for _, series := range byStock {
			series.Sort()
		}
	}
}
