package fetch

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/kpi-screener/internal/model"
	"github.com/sells-group/kpi-screener/pkg/refinitiv"
)

// History depth requested per series, as relative DSWS date offsets.
const (
	refinitivQuarters = 20
	refinitivYears    = 20
)

// RefinitivProvider adapts the Datastream API to the Provider interface.
// DSWS has no instrument listing endpoint, so the screenable universe and
// the KPI catalogue (Datastream mnemonics) are supplied up front.
type RefinitivProvider struct {
	client      refinitiv.Client
	instruments []model.Instrument
	kpis        []model.KPIMeta
	symbols     map[int]string
}

// NewRefinitiv creates a provider over the given DSWS client. KPI names in
// screening requests must be Datastream datatype mnemonics present in kpis.
func NewRefinitiv(client refinitiv.Client, instruments []model.Instrument, kpis []model.KPIMeta) *RefinitivProvider {
	symbols := make(map[int]string, len(instruments))
	for _, ins := range instruments {
		symbols[ins.ID] = ins.Ticker
	}
	return &RefinitivProvider{
		client:      client,
		instruments: instruments,
		kpis:        kpis,
		symbols:     symbols,
	}
}

func (p *RefinitivProvider) Name() string { return "refinitiv" }

func (p *RefinitivProvider) Instruments(ctx context.Context) ([]model.Instrument, error) {
	return p.instruments, nil
}

func (p *RefinitivProvider) KPIs(ctx context.Context) ([]model.KPIMeta, error) {
	return p.kpis, nil
}

func (p *RefinitivProvider) Series(ctx context.Context, stockID int, kpi string, freq model.Frequency) (model.Series, error) {
	symbol, ok := p.symbols[stockID]
	if !ok {
		return nil, eris.New(fmt.Sprintf("refinitiv: unknown stock id %d", stockID))
	}

	start := fmt.Sprintf("-%dQ", refinitivQuarters)
	frequency := "Q"
	if freq == model.FrequencyYearly {
		start = fmt.Sprintf("-%dY", refinitivYears)
		frequency = "Y"
	}

	points, err := p.client.Timeseries(ctx, refinitiv.TimeseriesRequest{
		Instrument: symbol,
		Datatype:   kpi,
		Start:      start,
		End:        "-0D",
		Frequency:  frequency,
	})
	if err != nil {
		return nil, err
	}

	series := make(model.Series, 0, len(points))
	for _, pt := range points {
		period := model.PeriodKey{Year: pt.Date.Year()}
		if freq == model.FrequencyQuarterly {
			period.Quarter = (int(pt.Date.Month())-1)/3 + 1
		}
		series = append(series, model.Observation{
			StockID: stockID,
			Period:  period,
			Value:   pt.Value,
		})
	}
	series.Sort()
	return series, nil
}
