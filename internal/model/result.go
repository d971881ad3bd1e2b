package model

import "time"

// LeafAudit captures the windowed values one leaf saw for one stock.
// Display-only: used in reports and exports, never by the engine itself.
type LeafAudit struct {
	Leaf   LeafID    `json:"leaf"`
	KPI    string    `json:"kpi"`
	Window []float64 `json:"window"`
	Passed bool      `json:"passed"`
}

// StockResult is the evaluation outcome for one stock.
type StockResult struct {
	StockID int         `json:"stock_id"`
	Passed  bool        `json:"passed"`
	Audit   []LeafAudit `json:"audit,omitempty"`
}

// ScreeningResult aggregates one full pass over the universe.
type ScreeningResult struct {
	RunID     string        `json:"run_id"`
	Request   string        `json:"request,omitempty"`
	Processed int           `json:"processed"`
	Passed    []int         `json:"passed"`
	Results   []StockResult `json:"results,omitempty"`
	Cancelled bool          `json:"cancelled,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}
