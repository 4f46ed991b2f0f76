package backtest

import (
	"container/heap"
	"context"
	"sort"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/replaylab/replay-trading/internal/datasource"
	"github.com/replaylab/replay-trading/internal/indicator"
	"github.com/replaylab/replay-trading/internal/logger"
	"github.com/replaylab/replay-trading/internal/reporting"
	"github.com/replaylab/replay-trading/internal/strategy"
	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

// MultiAssetEngine runs one strategy across several symbols in a single
// time-synchronized loop. Each symbol gets its own pending queues,
// indicator manager and processor; one shared portfolio tracks every
// position so equity, drawdown, and the exposure cap are portfolio-wide.
type MultiAssetEngine struct {
	config Config
	log    *logger.Logger

	strat     strategy.Strategy
	assets    map[string]datasource.Provider
	symbols   []string
	events    *EventBus
	execution *ExecutionModel
	portfolio *Portfolio

	processors map[string]*Processor
	indicators map[string]*indicator.Manager

	firstBars map[string]optional.Option[types.Bar]
	lastBars  map[string]optional.Option[types.Bar]
}

// NewMultiAssetEngine wires per-symbol processors around a shared
// portfolio. symbol_configs overrides apply per symbol.
func NewMultiAssetEngine(strat strategy.Strategy, assets map[string]datasource.Provider, config Config, log *logger.Logger) (*MultiAssetEngine, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if len(assets) == 0 {
		return nil, errors.New(errors.ErrCodeNoProviders, "multi-asset engine requires at least one provider")
	}

	symbols := make([]string, 0, len(assets))
	for symbol := range assets {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	execution := NewExecutionModel(config)
	events := NewEventBus()
	portfolio := NewPortfolio(config, execution, log)

	engine := &MultiAssetEngine{
		config:     config,
		log:        log,
		strat:      strat,
		assets:     assets,
		symbols:    symbols,
		events:     events,
		execution:  execution,
		portfolio:  portfolio,
		processors: make(map[string]*Processor, len(assets)),
		indicators: make(map[string]*indicator.Manager, len(assets)),
		firstBars:  make(map[string]optional.Option[types.Bar], len(assets)),
		lastBars:   make(map[string]optional.Option[types.Bar], len(assets)),
	}

	for _, symbol := range symbols {
		symbolConfig := config.forSymbol(symbol)

		indicators, err := indicator.NewManager(symbolConfig.Indicators, log)
		if err != nil {
			return nil, err
		}

		engine.indicators[symbol] = indicators
		engine.processors[symbol] = NewProcessor(symbolConfig, symbol, portfolio, indicators, execution, strat, events, log)
	}

	if err := strat.Configure(config.StrategyConfig); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStrategyConfig, err, "strategy %s configuration failed", strat.Name())
	}

	return engine, nil
}

// Events exposes the listener registry shared by all symbols.
func (e *MultiAssetEngine) Events() *EventBus {
	return e.events
}

// Portfolio exposes the shared portfolio.
func (e *MultiAssetEngine) Portfolio() *Portfolio {
	return e.portfolio
}

// heapEntry orders bars by timestamp, with the symbol as a stable
// tiebreaker.
type heapEntry struct {
	bar    types.Bar
	symbol string
}

type barHeap []heapEntry

func (h barHeap) Len() int { return len(h) }

func (h barHeap) Less(i, j int) bool {
	if !h[i].bar.Timestamp.Equal(h[j].bar.Timestamp) {
		return h[i].bar.Timestamp.Before(h[j].bar.Timestamp)
	}

	return h[i].symbol < h[j].symbol
}

func (h barHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *barHeap) Push(x any) { *h = append(*h, x.(heapEntry)) }

func (h *barHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]

	return entry
}

// Run merges all symbol streams chronologically and dispatches each bar
// to its symbol's processor.
func (e *MultiAssetEngine) Run(ctx context.Context) (reporting.MultiResults, error) {
	e.portfolio.Reset()

	for _, symbol := range e.symbols {
		if err := e.assets[symbol].Reset(); err != nil {
			return reporting.MultiResults{}, err
		}

		e.processors[symbol].Reset()
		e.indicators[symbol].Reset()
		e.firstBars[symbol] = optional.None[types.Bar]()
		e.lastBars[symbol] = optional.None[types.Bar]()
	}

	merged := &barHeap{}
	heap.Init(merged)

	for _, symbol := range e.symbols {
		if err := e.pushNext(merged, symbol); err != nil {
			return reporting.MultiResults{}, err
		}
	}

	for merged.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return reporting.MultiResults{}, errors.Wrap(errors.ErrCodeRunFailed, "run canceled", err)
		}

		entry := heap.Pop(merged).(heapEntry)

		if e.firstBars[entry.symbol].IsNone() {
			e.firstBars[entry.symbol] = optional.Some(entry.bar)
		}

		e.lastBars[entry.symbol] = optional.Some(entry.bar)

		if err := e.processors[entry.symbol].ProcessBar(entry.bar); err != nil {
			return reporting.MultiResults{}, err
		}

		if err := e.pushNext(merged, entry.symbol); err != nil {
			return reporting.MultiResults{}, err
		}
	}

	e.log.Info("multi-asset run complete",
		zap.Int("symbols", len(e.symbols)),
		zap.Int("trades", len(e.portfolio.Trades())),
		zap.Float64("final_equity", e.portfolio.Equity()),
	)

	state := reporting.PortfolioState{
		InitialEquity: e.portfolio.InitialEquity(),
		FinalEquity:   e.portfolio.Equity(),
		MaxDrawdown:   e.portfolio.MaxDrawdown(),
		TotalFees:     e.portfolio.TotalFees(),
		Trades:        e.portfolio.Trades(),
		Fills:         e.portfolio.Fills(),
		EquityCurve:   e.portfolio.EquityCurve(),
	}

	return reporting.BuildMulti(state, e.firstBars, e.lastBars), nil
}

func (e *MultiAssetEngine) pushNext(merged *barHeap, symbol string) error {
	next, err := e.assets[symbol].Next()
	if err != nil {
		return err
	}

	if next.IsNone() {
		return nil
	}

	bar := next.Unwrap()
	if bar.Symbol == "" {
		bar.Symbol = symbol
	}

	heap.Push(merged, heapEntry{bar: bar, symbol: symbol})

	return nil
}
