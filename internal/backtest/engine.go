package backtest

import (
	"context"

	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/replaylab/replay-trading/internal/datasource"
	"github.com/replaylab/replay-trading/internal/indicator"
	"github.com/replaylab/replay-trading/internal/logger"
	"github.com/replaylab/replay-trading/internal/reporting"
	"github.com/replaylab/replay-trading/internal/strategy"
	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

// Engine runs one strategy against one bar stream with realistic,
// bias-free execution.
type Engine struct {
	config Config
	log    *logger.Logger

	strat     strategy.Strategy
	provider  datasource.Provider
	events    *EventBus
	execution *ExecutionModel
	portfolio *Portfolio
	processor *Processor

	firstBar optional.Option[types.Bar]
	lastBar  optional.Option[types.Bar]
}

// NewEngine wires an engine, validates the config, and configures the
// strategy. Configuration errors fail here, before any bar is consumed.
func NewEngine(strat strategy.Strategy, provider datasource.Provider, config Config, log *logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	indicators, err := indicator.NewManager(config.Indicators, log)
	if err != nil {
		return nil, err
	}

	execution := NewExecutionModel(config)
	events := NewEventBus()
	portfolio := NewPortfolio(config, execution, log)
	processor := NewProcessor(config, "", portfolio, indicators, execution, strat, events, log)

	engine := &Engine{
		config:    config,
		log:       log,
		strat:     strat,
		provider:  provider,
		events:    events,
		execution: execution,
		portfolio: portfolio,
		processor: processor,
	}

	if err := strat.Configure(config.StrategyConfig); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStrategyConfig, err, "strategy %s configuration failed", strat.Name())
	}

	return engine, nil
}

// Events exposes the listener registry.
func (e *Engine) Events() *EventBus {
	return e.events
}

// Portfolio exposes the engine-owned portfolio (read access for callers).
func (e *Engine) Portfolio() *Portfolio {
	return e.portfolio
}

// Run replays the full stream through the four-phase loop and builds the
// results. The provider is reset first, so repeated runs reproduce the
// same fills, trades and equity curve; the fill and trade IDs are fresh
// random UUIDs on every run and do not repeat.
func (e *Engine) Run(ctx context.Context) (reporting.Results, error) {
	if err := e.reset(); err != nil {
		return reporting.Results{}, err
	}

	var bar *progressbar.ProgressBar

	if e.config.Progress {
		if counter, ok := e.provider.(datasource.Counter); ok {
			if total, err := counter.Count(); err == nil {
				bar = progressbar.Default(int64(total), "backtest")
			}
		}
	}

	validator := newBarValidator(e.config.BarValidation, e.log)

	for {
		if err := ctx.Err(); err != nil {
			return reporting.Results{}, errors.Wrap(errors.ErrCodeRunFailed, "run canceled", err)
		}

		next, err := e.provider.Next()
		if err != nil {
			return reporting.Results{}, err
		}

		if next.IsNone() {
			break
		}

		current := next.Unwrap()

		ok, err := validator.check(current)
		if err != nil {
			return reporting.Results{}, err
		}

		if !ok {
			continue
		}

		if e.firstBar.IsNone() {
			e.firstBar = optional.Some(current)
		}

		e.lastBar = optional.Some(current)

		if err := e.processor.ProcessBar(current); err != nil {
			return reporting.Results{}, err
		}

		if bar != nil {
			_ = bar.Add(1)
		}
	}

	e.log.Info("run complete",
		zap.String("symbol", e.provider.Symbol()),
		zap.Int("trades", len(e.portfolio.Trades())),
		zap.Float64("final_equity", e.portfolio.Equity()),
	)

	return reporting.Build(e.snapshot(), e.provider.Symbol(), e.firstBar, e.lastBar), nil
}

func (e *Engine) reset() error {
	// Live providers cannot rewind; a fresh run just continues the stream.
	if err := e.provider.Reset(); err != nil && !errors.HasCode(err, errors.ErrCodeResetNotSupported) {
		return err
	}

	e.portfolio.Reset()
	e.processor.Reset()
	e.processor.indicators.Reset()
	e.firstBar = optional.None[types.Bar]()
	e.lastBar = optional.None[types.Bar]()

	return nil
}

func (e *Engine) snapshot() reporting.PortfolioState {
	return reporting.PortfolioState{
		InitialEquity: e.portfolio.InitialEquity(),
		FinalEquity:   e.portfolio.Equity(),
		MaxDrawdown:   e.portfolio.MaxDrawdown(),
		TotalFees:     e.portfolio.TotalFees(),
		Trades:        e.portfolio.Trades(),
		Fills:         e.portfolio.Fills(),
		EquityCurve:   e.portfolio.EquityCurve(),
	}
}

// barValidator enforces the configured malformed-bar policy and the
// non-decreasing timestamp contract.
type barValidator struct {
	policy ValidationPolicy
	log    *logger.Logger
	lastTS optional.Option[types.Bar]
}

func newBarValidator(policy ValidationPolicy, log *logger.Logger) *barValidator {
	return &barValidator{policy: policy, log: log}
}

// check returns whether the bar should be processed. Under the
// filter_and_warn policy a bad bar is dropped with a warning instead of
// failing the run.
func (v *barValidator) check(bar types.Bar) (bool, error) {
	err := bar.Validate()

	if err == nil && v.lastTS.IsSome() && bar.Timestamp.Before(v.lastTS.Unwrap().Timestamp) {
		err = errors.Newf(errors.ErrCodeOutOfOrderBar,
			"bar at %s arrived after %s", bar.Timestamp, v.lastTS.Unwrap().Timestamp)
	}

	if err == nil {
		v.lastTS = optional.Some(bar)

		return true, nil
	}

	if v.policy == ValidationFilterAndWarn {
		v.log.Warn("dropping malformed bar", zap.Error(err))

		return false, nil
	}

	return false, err
}
