package backtest

import (
	"sort"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/replaylab/replay-trading/internal/indicator"
	"github.com/replaylab/replay-trading/internal/logger"
	"github.com/replaylab/replay-trading/internal/strategy"
	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

// Processor runs the four-phase loop for one symbol. Both the
// single-symbol engine and the multi-asset engine delegate here.
//
// Per bar, in strict order:
//
//	Phase 1: fill the pending market order, then pending limits in
//	         insertion order, then pending stops.
//	Phase 2: evaluate exits with gap protection and the documented
//	         priority; breakeven/trailing/partial-TP lifecycle.
//	Phase 3: strategy-requested exits.
//	Phase 4: strategy signal generation, then the indicator update —
//	         so OnBar(T) only ever sees values derived from bars before T.
type Processor struct {
	log        *logger.Logger
	portfolio  *Portfolio
	indicators *indicator.Manager
	execution  *ExecutionModel
	strat      strategy.Strategy
	events     *EventBus

	symbol            string
	skipSignalOnClose bool
	sameDirectionOnly bool

	pendingMarket optional.Option[types.Order]
	pendingLimits []*types.PendingOrder
	pendingStops  []*types.PendingOrder
}

// NewProcessor wires a processor. symbol scopes position lookups in the
// multi-asset engine; the single-symbol engine passes "".
func NewProcessor(
	config Config,
	symbol string,
	portfolio *Portfolio,
	indicators *indicator.Manager,
	execution *ExecutionModel,
	strat strategy.Strategy,
	events *EventBus,
	log *logger.Logger,
) *Processor {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Processor{
		log:               log,
		portfolio:         portfolio,
		indicators:        indicators,
		execution:         execution,
		strat:             strat,
		events:            events,
		symbol:            symbol,
		skipSignalOnClose: config.SkipSignalOnClose,
		sameDirectionOnly: config.SameDirectionOnly,
	}
}

// QueueOrder enqueues an order exactly as if the strategy had returned
// it from OnBar. Used by the step engine.
func (p *Processor) QueueOrder(order types.Order) {
	p.handleFollowUp(order)
}

// PendingLimitCount reports the number of queued limit orders.
func (p *Processor) PendingLimitCount() int {
	return len(p.pendingLimits)
}

// Reset clears the pending-order state.
func (p *Processor) Reset() {
	p.pendingMarket = optional.None[types.Order]()
	p.pendingLimits = nil
	p.pendingStops = nil
}

// ProcessBar runs one bar through the four phases. Strategy callback
// failures abort the run with the bar timestamp attached.
func (p *Processor) ProcessBar(bar types.Bar) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeStrategyRuntime,
				"strategy panic at bar %s: %v", bar.Timestamp, r)
		}
	}()

	if err := p.fillPendingOrders(bar); err != nil {
		return p.wrap(err, bar)
	}

	justClosed, err := p.evaluateExits(bar)
	if err != nil {
		return p.wrap(err, bar)
	}

	strategyClosed, err := p.strategyExits(bar)
	if err != nil {
		return p.wrap(err, bar)
	}

	justClosed = justClosed || strategyClosed

	if err := p.signalPhase(bar, justClosed); err != nil {
		return p.wrap(err, bar)
	}

	// Indicators absorb the bar only after the strategy has seen it, so
	// values shown to OnBar never include the current bar.
	if err := p.indicators.Update(bar); err != nil {
		return err
	}

	return nil
}

func (p *Processor) wrap(err error, bar types.Bar) error {
	if errors.GetCode(err) == errors.ErrCodeStrategyRuntime {
		return err
	}

	return errors.Wrapf(errors.ErrCodeStrategyRuntime, err, "bar %s", bar.Timestamp)
}

func (p *Processor) scopeSymbol(bar types.Bar) string {
	if p.symbol != "" {
		return p.symbol
	}

	return bar.Symbol
}

// directionOK enforces same_direction_only: with an open position on the
// symbol, orders on the opposite side are silently dropped.
func (p *Processor) directionOK(order types.Order, symbol string) bool {
	if !p.sameDirectionOnly {
		return true
	}

	views := p.portfolio.PositionViews(symbol)
	if len(views) == 0 {
		return true
	}

	return views[0].Side == order.Side
}

// ---------------------------------------------------------------------
// Phase 1
// ---------------------------------------------------------------------

func (p *Processor) fillPendingOrders(bar types.Bar) error {
	if err := p.fillMarket(bar); err != nil {
		return err
	}

	if err := p.fillLimits(bar); err != nil {
		return err
	}

	return p.fillStops(bar)
}

func (p *Processor) fillMarket(bar types.Bar) error {
	if p.pendingMarket.IsNone() {
		return nil
	}

	order := p.pendingMarket.Unwrap()
	p.pendingMarket = optional.None[types.Order]()

	symbol := p.orderSymbol(order, bar)

	// A merge order folds into a matching position even when the
	// position limit is already reached; entry slippage and taker fee
	// still apply.
	if order.MergePosition {
		if target := p.portfolio.FindPosition(symbol, order.Side); target.IsSome() {
			price := p.execution.EntryPrice(bar.Open, order.Side)

			fill := p.portfolio.MergePosition(target.Unwrap(), bar, price, order, false)
			if fill.IsNone() {
				return nil
			}

			return p.afterFill(fill.Unwrap())
		}
	}

	if !p.directionOK(order, symbol) {
		return nil
	}

	if !p.portfolio.CanOpen(symbol, order.Group) {
		return nil
	}

	fill := p.portfolio.OpenPosition(bar, order, bar.Open, true, false)
	if fill.IsNone() {
		return nil
	}

	return p.afterFill(fill.Unwrap())
}

func (p *Processor) fillLimits(bar types.Bar) error {
	// Snapshot: on-fill callbacks may queue new limits, which must not be
	// touched (or removed) during this bar's sweep.
	snapshot := make([]*types.PendingOrder, len(p.pendingLimits))
	copy(snapshot, p.pendingLimits)

	remove := make(map[*types.PendingOrder]bool)

	for _, pending := range snapshot {
		order := pending.Order
		symbol := p.orderSymbol(order, bar)

		mergeTarget := optional.None[int]()
		if order.MergePosition {
			mergeTarget = p.portfolio.FindPosition(symbol, order.Side)

			if mergeTarget.IsNone() {
				// Nothing to merge into yet; age the order.
				pending.BarsElapsed++
				if pending.Expired() {
					remove[pending] = true
				}

				continue
			}
		} else {
			if !p.directionOK(order, symbol) {
				remove[pending] = true

				continue
			}
		}

		pending.BarsElapsed++

		if order.MinPositions > 0 && p.portfolio.PositionCount(symbol) < order.MinPositions {
			continue
		}

		if p.execution.CheckLimitFill(order.LimitPrice, order.Side, bar) {
			var fill optional.Option[types.Fill]

			if order.MergePosition {
				fill = p.portfolio.MergePosition(mergeTarget.Unwrap(), bar, order.LimitPrice, order, order.UseMakerFee)
			} else if p.portfolio.CanOpen(symbol, order.Group) {
				fill = p.portfolio.OpenPosition(bar, order, order.LimitPrice, false, order.UseMakerFee)
			} else {
				// Position limit or group occupied: the order stays
				// queued for a later bar, subject to its timeout.
				if pending.Expired() {
					remove[pending] = true
				}

				continue
			}

			remove[pending] = true

			if fill.IsSome() {
				if err := p.afterFill(fill.Unwrap()); err != nil {
					return err
				}
			}

			continue
		}

		if pending.Expired() {
			remove[pending] = true
		}
	}

	if len(remove) > 0 {
		kept := p.pendingLimits[:0]
		for _, pending := range p.pendingLimits {
			if !remove[pending] {
				kept = append(kept, pending)
			}
		}

		p.pendingLimits = kept
	}

	return nil
}

func (p *Processor) fillStops(bar types.Bar) error {
	snapshot := make([]*types.PendingOrder, len(p.pendingStops))
	copy(snapshot, p.pendingStops)

	remove := make(map[*types.PendingOrder]bool)

	for _, pending := range snapshot {
		order := pending.Order
		symbol := p.orderSymbol(order, bar)

		if !p.directionOK(order, symbol) {
			remove[pending] = true

			continue
		}

		pending.BarsElapsed++

		triggered, rawPrice := p.execution.CheckStopFill(order.StopPrice, order.Side, bar)
		if triggered {
			remove[pending] = true

			// A triggered stop behaves like a market order: entry
			// slippage and taker fee at the trigger (or gap) price.
			if p.portfolio.CanOpen(symbol, order.Group) {
				fill := p.portfolio.OpenPosition(bar, order, rawPrice, true, false)
				if fill.IsSome() {
					if err := p.afterFill(fill.Unwrap()); err != nil {
						return err
					}
				}
			}

			continue
		}

		if pending.Expired() {
			remove[pending] = true
		}
	}

	if len(remove) > 0 {
		kept := p.pendingStops[:0]
		for _, pending := range p.pendingStops {
			if !remove[pending] {
				kept = append(kept, pending)
			}
		}

		p.pendingStops = kept
	}

	return nil
}

func (p *Processor) orderSymbol(order types.Order, bar types.Bar) string {
	if order.Symbol != "" {
		return order.Symbol
	}

	return p.scopeSymbol(bar)
}

func (p *Processor) afterFill(fill types.Fill) error {
	p.events.emitFill(fill)

	followUps, err := p.strat.OnFill(fill)
	if err != nil {
		return err
	}

	for _, order := range followUps {
		p.handleFollowUp(order)
	}

	return nil
}

// ---------------------------------------------------------------------
// Phase 2
// ---------------------------------------------------------------------

type pendingExit struct {
	index   int
	trigger ExitTrigger
}

func (p *Processor) evaluateExits(bar types.Bar) (bool, error) {
	symbol := p.scopeSymbol(bar)
	indices := p.portfolio.PositionIndices(symbol)

	exits := make([]pendingExit, 0, len(indices))

	for _, idx := range indices {
		pos := p.portfolio.PositionAt(idx)

		// A position opened in phase 1 of this bar is first evaluated on
		// the next bar, so every trade exits after the bar it entered on.
		if pos.EntryTime.Equal(bar.Timestamp) {
			continue
		}

		if trigger := p.execution.CheckExit(pos, bar); trigger.IsSome() {
			exits = append(exits, pendingExit{index: idx, trigger: trigger.Unwrap()})
		}
	}

	// Reverse global-index order keeps earlier indices valid as
	// positions are removed.
	closed := false

	for i := len(exits) - 1; i >= 0; i-- {
		exit := exits[i]

		var (
			trade types.Trade
			fill  types.Fill
		)

		if exit.trigger.Partial {
			fraction := p.portfolio.PositionAt(exit.index).PartialTPPct

			var err error

			trade, fill, err = p.portfolio.PartialClosePosition(exit.index, fraction, exit.trigger.Price, bar, exit.trigger.Reason)
			if err != nil {
				return closed, err
			}
		} else {
			trade, fill = p.portfolio.ClosePosition(exit.index, exit.trigger.Price, bar, exit.trigger.Reason, false)
		}

		closed = true

		if err := p.afterExit(trade, fill); err != nil {
			return closed, err
		}
	}

	return closed, nil
}

func (p *Processor) afterExit(trade types.Trade, fill types.Fill) error {
	p.events.emitExit(trade)

	followUps, err := p.strat.OnExit(fill, trade)
	if err != nil {
		return err
	}

	for _, order := range followUps {
		p.handleFollowUp(order)
	}

	return nil
}

// ---------------------------------------------------------------------
// Phase 3
// ---------------------------------------------------------------------

func (p *Processor) strategyExits(bar types.Bar) (bool, error) {
	symbol := p.scopeSymbol(bar)

	instructions, err := p.strat.CheckExits(bar, p.portfolio.PositionViews(symbol))
	if err != nil {
		return false, err
	}

	if len(instructions) == 0 {
		return false, nil
	}

	sort.Slice(instructions, func(i, j int) bool {
		return instructions[i].PositionIndex > instructions[j].PositionIndex
	})

	indices := p.portfolio.PositionIndices(symbol)
	closed := false

	for _, instruction := range instructions {
		if instruction.PositionIndex < 0 || instruction.PositionIndex >= len(indices) {
			p.log.Warn("strategy exit index out of range",
				zap.Int("index", instruction.PositionIndex),
				zap.Int("positions", len(indices)),
			)

			continue
		}

		globalIdx := indices[instruction.PositionIndex]

		reason := instruction.Reason
		if reason == "" {
			reason = types.ExitReasonSignal
		}

		var (
			trade types.Trade
			fill  types.Fill
		)

		if instruction.Fraction.IsSome() && instruction.Fraction.Unwrap() < 1 {
			trade, fill, err = p.portfolio.PartialClosePosition(globalIdx, instruction.Fraction.Unwrap(), instruction.Price, bar, reason)
			if err != nil {
				return closed, err
			}
		} else {
			trade, fill = p.portfolio.ClosePosition(globalIdx, instruction.Price, bar, reason, false)
		}

		closed = true

		if err := p.afterExit(trade, fill); err != nil {
			return closed, err
		}
	}

	return closed, nil
}

// ---------------------------------------------------------------------
// Phase 4
// ---------------------------------------------------------------------

func (p *Processor) signalPhase(bar types.Bar, justClosed bool) error {
	p.events.emitBar(bar)

	if justClosed && p.skipSignalOnClose {
		return nil
	}

	orders, err := p.strat.OnBar(bar, p.indicators.Values(), p.portfolio.PositionViews(p.scopeSymbol(bar)))
	if err != nil {
		return err
	}

	for _, order := range orders {
		if !order.IsSentinel() && p.sameDirectionOnly && !p.directionOK(order, p.orderSymbol(order, bar)) {
			continue
		}

		p.handleFollowUp(order)
	}

	return nil
}

// handleFollowUp routes one strategy-emitted order: the cancel flag
// clears the limit queue, market orders replace the single market slot
// (last wins), limit and stop orders append to their queues.
func (p *Processor) handleFollowUp(order types.Order) {
	if order.CancelPendingLimits {
		p.pendingLimits = nil
	}

	if order.IsSentinel() {
		return
	}

	switch order.OrderKind() {
	case types.OrderKindLimit:
		p.pendingLimits = append(p.pendingLimits, &types.PendingOrder{Order: order})
	case types.OrderKindStop:
		p.pendingStops = append(p.pendingStops, &types.PendingOrder{Order: order})
	default:
		p.pendingMarket = optional.Some(order)
	}

	p.events.emitSignal(order)
}
