package fetch

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/kpi-screener/internal/model"
	"github.com/sells-group/kpi-screener/pkg/borsdata"
)

// History depth requested per series.
const (
	borsdataQuarters = 20
	borsdataYears    = 20
)

// BorsdataProvider adapts the Borsdata API to the Provider interface. KPI
// names in screening requests are resolved against the KPI catalogue by
// English name, case-insensitively.
type BorsdataProvider struct {
	client borsdata.Client

	mu     sync.Mutex
	kpiIDs map[string]int
}

// NewBorsdata creates a provider over the given Borsdata client.
func NewBorsdata(client borsdata.Client) *BorsdataProvider {
	return &BorsdataProvider{client: client}
}

func (p *BorsdataProvider) Name() string { return "borsdata" }

func (p *BorsdataProvider) Instruments(ctx context.Context) ([]model.Instrument, error) {
	raw, err := p.client.Instruments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Instrument, len(raw))
	for i, ins := range raw {
		out[i] = model.Instrument{
			ID:        ins.InsID,
			Ticker:    ins.Ticker,
			Name:      ins.Name,
			ISIN:      ins.ISIN,
			CountryID: ins.CountryID,
			MarketID:  ins.MarketID,
			SectorID:  ins.SectorID,
			BranchID:  ins.BranchID,
		}
	}
	return out, nil
}

func (p *BorsdataProvider) KPIs(ctx context.Context) ([]model.KPIMeta, error) {
	raw, err := p.client.KPIMetadata(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.KPIMeta, 0, len(raw))
	for _, meta := range raw {
		if meta.IsString {
			continue
		}
		out = append(out, model.KPIMeta{
			ID:     meta.KPIID,
			Name:   meta.NameEn,
			NameSv: meta.NameSv,
			Format: meta.Format,
		})
	}
	return out, nil
}

func (p *BorsdataProvider) Series(ctx context.Context, stockID int, kpi string, freq model.Frequency) (model.Series, error) {
	kpiID, err := p.resolveKPI(ctx, kpi)
	if err != nil {
		return nil, err
	}

	reportType := borsdata.ReportTypeQuarter
	maxCount := borsdataQuarters
	if freq == model.FrequencyYearly {
		reportType = borsdata.ReportTypeYear
		maxCount = borsdataYears
	}

	values, err := p.client.KPIHistory(ctx, stockID, kpiID, reportType, maxCount)
	if err != nil {
		return nil, err
	}

	series := make(model.Series, 0, len(values))
	for _, v := range values {
		quarter := v.Period
		if freq == model.FrequencyYearly {
			quarter = 0
		}
		series = append(series, model.Observation{
			StockID: stockID,
			Period:  model.PeriodKey{Year: v.Year, Quarter: quarter},
			Value:   v.Value,
		})
	}
	series.Sort()
	return series, nil
}

func (p *BorsdataProvider) resolveKPI(ctx context.Context, name string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.kpiIDs == nil {
		metas, err := p.KPIs(ctx)
		if err != nil {
			return 0, eris.Wrap(err, "borsdata: load kpi catalogue")
		}
		p.kpiIDs = make(map[string]int, len(metas))
		for _, meta := range metas {
			p.kpiIDs[strings.ToLower(meta.Name)] = meta.ID
		}
	}

	id, ok := p.kpiIDs[strings.ToLower(name)]
	if !ok {
		return 0, eris.New("borsdata: unknown kpi " + name)
	}
	return id, nil
}
