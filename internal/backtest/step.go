package backtest

import (
	"github.com/moznion/go-optional"

	"github.com/replaylab/replay-trading/internal/datasource"
	"github.com/replaylab/replay-trading/internal/indicator"
	"github.com/replaylab/replay-trading/internal/logger"
	"github.com/replaylab/replay-trading/internal/strategy"
	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

// StepObservation is what the agent sees after reset or a step.
type StepObservation struct {
	Bar        types.Bar
	Indicators map[string]types.IndicatorValue
	Positions  []types.Position
	Equity     float64
	StepCount  int
	Done       bool
}

// StepResult is returned from Step: the observation plus the equity
// delta as reward and the fills/exits the step produced.
type StepResult struct {
	Observation StepObservation
	Reward      float64
	Done        bool
	Fills       []types.Fill
	Exits       []types.Trade
}

// proxyStrategy never emits signals from OnBar; the agent controls
// entries exclusively through Step. The optional inner strategy still
// receives fill/exit callbacks and can manage exits.
type proxyStrategy struct {
	inner optional.Option[strategy.Strategy]
}

func (p *proxyStrategy) Name() string {
	return "step-proxy"
}

func (p *proxyStrategy) Configure(config string) error {
	if p.inner.IsSome() {
		return p.inner.Unwrap().Configure(config)
	}

	return nil
}

func (p *proxyStrategy) OnBar(types.Bar, map[string]types.IndicatorValue, []types.Position) ([]types.Order, error) {
	return nil, nil
}

func (p *proxyStrategy) OnFill(fill types.Fill) ([]types.Order, error) {
	if p.inner.IsSome() {
		return p.inner.Unwrap().OnFill(fill)
	}

	return nil, nil
}

func (p *proxyStrategy) OnExit(fill types.Fill, trade types.Trade) ([]types.Order, error) {
	if p.inner.IsSome() {
		return p.inner.Unwrap().OnExit(fill, trade)
	}

	return nil, nil
}

func (p *proxyStrategy) CheckExits(bar types.Bar, positions []types.Position) ([]strategy.ExitInstruction, error) {
	if p.inner.IsSome() {
		return p.inner.Unwrap().CheckExits(bar, positions)
	}

	return nil, nil
}

// StepEngine re-expresses the bar loop as reset/step for reinforcement
// learning callers. Exit management (SL/TP/breakeven/trailing) still
// runs inside the loop; the agent only decides entries.
type StepEngine struct {
	config Config
	log    *logger.Logger

	provider   datasource.Provider
	events     *EventBus
	execution  *ExecutionModel
	portfolio  *Portfolio
	indicators *indicator.Manager
	processor  *Processor

	stepCount  int
	done       bool
	prevEquity float64
	currentBar optional.Option[types.Bar]
}

// NewStepEngine wires a step engine. inner is an optional strategy that
// receives fill/exit callbacks (None for pure agent control).
func NewStepEngine(provider datasource.Provider, config Config, inner optional.Option[strategy.Strategy], log *logger.Logger) (*StepEngine, error) {
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

	proxy := &proxyStrategy{inner: inner}

	if err := proxy.Configure(config.StrategyConfig); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStrategyConfig, "inner strategy configuration failed", err)
	}

	execution := NewExecutionModel(config)
	events := NewEventBus()
	portfolio := NewPortfolio(config, execution, log)
	processor := NewProcessor(config, "", portfolio, indicators, execution, proxy, events, log)

	return &StepEngine{
		config:     config,
		log:        log,
		provider:   provider,
		events:     events,
		execution:  execution,
		portfolio:  portfolio,
		indicators: indicators,
		processor:  processor,
		prevEquity: config.InitialEquity,
	}, nil
}

// Events exposes the listener registry.
func (e *StepEngine) Events() *EventBus {
	return e.events
}

// Reset rewinds the provider and portfolio and advances to the first
// bar, seeding the indicators with it.
func (e *StepEngine) Reset() (StepObservation, error) {
	if err := e.provider.Reset(); err != nil {
		return StepObservation{}, err
	}

	e.portfolio.Reset()
	e.processor.Reset()
	e.indicators.Reset()
	e.stepCount = 0
	e.done = false
	e.prevEquity = e.portfolio.InitialEquity()
	e.currentBar = optional.None[types.Bar]()

	next, err := e.provider.Next()
	if err != nil {
		return StepObservation{}, err
	}

	if next.IsNone() {
		e.done = true

		return StepObservation{
			Equity: e.portfolio.Equity(),
			Done:   true,
		}, nil
	}

	bar := next.Unwrap()
	e.currentBar = optional.Some(bar)

	if err := e.indicators.Update(bar); err != nil {
		return StepObservation{}, err
	}

	return e.observe(bar, false), nil
}

// Step advances one bar. A MARKET action replaces the pending market
// slot; LIMIT and STOP actions append to their queues; None places
// nothing. The reward is the equity change over the step.
func (e *StepEngine) Step(action optional.Option[types.Order]) (StepResult, error) {
	if e.done {
		return StepResult{}, errors.New(errors.ErrCodeStepExhaust, "data exhausted; call Reset to start over")
	}

	if action.IsSome() {
		e.processor.QueueOrder(action.Unwrap())
	}

	fillsBefore := len(e.portfolio.Fills())
	tradesBefore := len(e.portfolio.Trades())

	next, err := e.provider.Next()
	if err != nil {
		return StepResult{}, err
	}

	if next.IsNone() {
		e.done = true
		e.stepCount++

		reward := e.portfolio.Equity() - e.prevEquity
		e.prevEquity = e.portfolio.Equity()

		observation := StepObservation{
			Indicators: e.indicators.Values(),
			Positions:  e.portfolio.PositionViews(""),
			Equity:     e.portfolio.Equity(),
			StepCount:  e.stepCount,
			Done:       true,
		}
		if e.currentBar.IsSome() {
			observation.Bar = e.currentBar.Unwrap()
		}

		return StepResult{Observation: observation, Reward: reward, Done: true}, nil
	}

	bar := next.Unwrap()
	e.currentBar = optional.Some(bar)

	if err := e.processor.ProcessBar(bar); err != nil {
		return StepResult{}, err
	}

	e.stepCount++

	reward := e.portfolio.Equity() - e.prevEquity
	e.prevEquity = e.portfolio.Equity()

	return StepResult{
		Observation: e.observe(bar, false),
		Reward:      reward,
		Done:        false,
		Fills:       e.portfolio.Fills()[fillsBefore:],
		Exits:       e.portfolio.Trades()[tradesBefore:],
	}, nil
}

func (e *StepEngine) observe(bar types.Bar, done bool) StepObservation {
	return StepObservation{
		Bar:        bar,
		Indicators: e.indicators.Values(),
		Positions:  e.portfolio.PositionViews(""),
		Equity:     e.portfolio.Equity(),
		StepCount:  e.stepCount,
		Done:       done,
	}
}
