// Package screen orchestrates full screening runs: universe filtering,
// logic tree construction, per-stock evaluation, and result reporting.
package screen

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/kpi-screener/internal/engine"
	"github.com/sells-group/kpi-screener/internal/model"
)

// Options configures a screening pipeline.
type Options struct {
	// Parallelism is the number of concurrent stock evaluations. Values
	// below 2 run sequentially. Evaluation is pure per stock, so any degree
	// of parallelism is safe.
	Parallelism int

	// ProgressEvery controls the progress-log cadence in stocks processed.
	// Default 100.
	ProgressEvery int

	// WithAudit collects per-leaf windowed values for every stock. Display
	// only; costs memory proportional to universe x leaves.
	WithAudit bool

	// Probe is an optional cooperative cancellation check consulted between
	// stocks, in addition to context cancellation. Once it returns true no
	// further stocks are evaluated and the partial result is returned.
	Probe func() bool
}

// Pipeline evaluates screening requests over an instrument universe.
type Pipeline struct {
	opts Options
}

// New creates a Pipeline with defaults applied.
func New(opts Options) *Pipeline {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 100
	}
	return &Pipeline{opts: opts}
}

// Run screens the universe against the request using the fetched dataset.
// Configuration errors (invalid request, malformed tree) fail the whole run
// before any stock is evaluated. Cancellation between stocks returns the
// partial result accumulated so far with Cancelled set, not an error.
func (p *Pipeline) Run(ctx context.Context, req *model.ScreeningRequest, universe []model.Instrument, data model.Dataset) (*model.ScreeningResult, error) {
	req.Normalize()

	leaves, tree, err := engine.BuildTree(req)
	if err != nil {
		return nil, eris.Wrap(err, "screen: build logic tree")
	}
	if err := engine.ValidateTree(tree, leaves); err != nil {
		return nil, eris.Wrap(err, "screen: validate logic tree")
	}

	universe = FilterUniverse(universe, req.Universe)

	result := &model.ScreeningResult{
		RunID:     uuid.New().String(),
		Request:   req.Name,
		StartedAt: time.Now().UTC(),
	}

	zap.L().Info("screen: starting run",
		zap.String("run_id", result.RunID),
		zap.Int("universe", len(universe)),
		zap.Int("leaves", len(leaves)),
		zap.Int("parallelism", p.opts.Parallelism),
	)

	if p.opts.Parallelism > 1 {
		p.runParallel(ctx, universe, tree, leaves, data, result)
	} else {
		p.runSequential(ctx, universe, tree, leaves, data, result)
	}

	sort.Ints(result.Passed)
	sort.Slice(result.Results, func(i, j int) bool {
		return result.Results[i].StockID < result.Results[j].StockID
	})
	result.Duration = time.Since(result.StartedAt)

	zap.L().Info("screen: run complete",
		zap.String("run_id", result.RunID),
		zap.Int("processed", result.Processed),
		zap.Int("passed", len(result.Passed)),
		zap.Bool("cancelled", result.Cancelled),
		zap.Duration("took", result.Duration),
	)
	return result, nil
}

func (p *Pipeline) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return p.opts.Probe != nil && p.opts.Probe()
}

func (p *Pipeline) runSequential(ctx context.Context, universe []model.Instrument, tree *model.Tree, leaves model.LeafSet, data model.Dataset, result *model.ScreeningResult) {
	for _, inst := range universe {
		if p.cancelled(ctx) {
			result.Cancelled = true
			return
		}

		stock := data.ForStock(inst.ID)
		passed, audit := p.evaluate(tree, leaves, stock)

		result.Processed++
		if passed {
			result.Passed = append(result.Passed, inst.ID)
		}
		if p.opts.WithAudit {
			result.Results = append(result.Results, model.StockResult{StockID: inst.ID, Passed: passed, Audit: audit})
		}

		if result.Processed%p.opts.ProgressEvery == 0 {
			zap.L().Info("screen: progress",
				zap.Int("processed", result.Processed),
				zap.Int("passed", len(result.Passed)),
			)
		}
	}
}

func (p *Pipeline) runParallel(ctx context.Context, universe []model.Instrument, tree *model.Tree, leaves model.LeafSet, data model.Dataset, result *model.ScreeningResult) {
	var (
		mu        sync.Mutex
		processed atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Parallelism)

	for _, inst := range universe {
		if p.cancelled(gctx) {
			result.Cancelled = true
			break
		}

		g.Go(func() error {
			stock := data.ForStock(inst.ID)
			passed, audit := p.evaluate(tree, leaves, stock)

			n := int(processed.Add(1))

			mu.Lock()
			result.Processed++
			if passed {
				result.Passed = append(result.Passed, inst.ID)
			}
			if p.opts.WithAudit {
				result.Results = append(result.Results, model.StockResult{StockID: inst.ID, Passed: passed, Audit: audit})
			}
			passedCount := len(result.Passed)
			mu.Unlock()

			if n%p.opts.ProgressEvery == 0 {
				zap.L().Info("screen: progress",
					zap.Int("processed", n),
					zap.Int("passed", passedCount),
				)
			}
			return nil
		})
	}

	// Workers never return errors; Wait only synchronizes.
	_ = g.Wait()
}

func (p *Pipeline) evaluate(tree *model.Tree, leaves model.LeafSet, stock model.StockSeries) (bool, []model.LeafAudit) {
	if p.opts.WithAudit {
		return engine.EvaluateWithAudit(tree, leaves, stock)
	}
	return engine.Evaluate(tree, leaves, stock), nil
}
