package model

// Instrument is one screenable security with its provider metadata.
type Instrument struct {
	ID        int    `json:"id" yaml:"id"`
	Ticker    string `json:"ticker" yaml:"ticker"`
	Name      string `json:"name" yaml:"name"`
	ISIN      string `json:"isin,omitempty" yaml:"isin,omitempty"`
	CountryID int    `json:"country_id,omitempty" yaml:"country_id,omitempty"`
	MarketID  int    `json:"market_id,omitempty" yaml:"market_id,omitempty"`
	SectorID  int    `json:"sector_id,omitempty" yaml:"sector_id,omitempty"`
	BranchID  int    `json:"branch_id,omitempty" yaml:"branch_id,omitempty"`
}

// KPIMeta describes one KPI the provider can serve.
type KPIMeta struct {
	ID     int    `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	NameSv string `json:"name_sv,omitempty" yaml:"name_sv,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	Unit   string `json:"unit,omitempty" yaml:"unit,omitempty"`
}
