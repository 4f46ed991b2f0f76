package backtest

import (
	"math"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/replaylab/replay-trading/internal/logger"
	"github.com/replaylab/replay-trading/internal/sizing"
	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

// Portfolio owns all open positions and mediates every mutation. Trades
// and fills are append-only; equity, peak equity and drawdown update on
// each close.
//
// Accounting: entry fees are deducted from equity at open; a close adds
// the gross PnL minus the exit fee. Trade.PnLUSD records the gross PnL
// and Trade.Fees the entry share plus exit fee, so
// initial + sum(PnL) - sum(fees) == final equity.
type Portfolio struct {
	log       *logger.Logger
	execution *ExecutionModel

	initialEquity  float64
	equity         float64
	peakEquity     float64
	maxDrawdown    float64
	defaultSizeUSD float64
	maxPositions   int

	// Per-symbol overrides (multi-asset).
	symbolMaxPositions map[string]int
	symbolDefaultSize  map[string]float64

	sizer            sizing.Sizer
	maxTotalExposure optional.Option[float64]

	positions   []*types.Position
	trades      []types.Trade
	fills       []types.Fill
	totalFees   float64
	equityCurve []types.EquitySample
}

// NewPortfolio builds a portfolio from the engine config.
func NewPortfolio(config Config, execution *ExecutionModel, log *logger.Logger) *Portfolio {
	if log == nil {
		log = logger.NewNopLogger()
	}

	symbolMax := make(map[string]int)
	symbolSize := make(map[string]float64)

	for symbol, override := range config.SymbolConfigs {
		if override.MaxPositions != nil {
			symbolMax[symbol] = *override.MaxPositions
		}

		if override.DefaultSizeUSD != nil {
			symbolSize[symbol] = *override.DefaultSizeUSD
		}
	}

	return &Portfolio{
		log:                log,
		execution:          execution,
		initialEquity:      config.InitialEquity,
		equity:             config.InitialEquity,
		peakEquity:         config.InitialEquity,
		defaultSizeUSD:     config.DefaultSizeUSD,
		maxPositions:       config.MaxPositions,
		symbolMaxPositions: symbolMax,
		symbolDefaultSize:  symbolSize,
		sizer:              config.Sizer,
		maxTotalExposure:   optional.FromNillable(config.MaxTotalExposureUSD),
	}
}

// InitialEquity returns the starting equity.
func (p *Portfolio) InitialEquity() float64 { return p.initialEquity }

// Equity returns the current equity.
func (p *Portfolio) Equity() float64 { return p.equity }

// PeakEquity returns the running peak.
func (p *Portfolio) PeakEquity() float64 { return p.peakEquity }

// MaxDrawdown returns the worst (peak-equity)/peak ratio seen.
func (p *Portfolio) MaxDrawdown() float64 { return p.maxDrawdown }

// TotalFees returns cumulative fees paid.
func (p *Portfolio) TotalFees() float64 { return p.totalFees }

// Trades returns the closed trades.
func (p *Portfolio) Trades() []types.Trade { return p.trades }

// Fills returns every fill recorded.
func (p *Portfolio) Fills() []types.Fill { return p.fills }

// EquityCurve returns the recorded equity samples.
func (p *Portfolio) EquityCurve() []types.EquitySample { return p.equityCurve }

// PositionCount returns the number of open positions, optionally
// restricted to one symbol.
func (p *Portfolio) PositionCount(symbol string) int {
	if symbol == "" {
		return len(p.positions)
	}

	n := 0

	for _, pos := range p.positions {
		if pos.Symbol == symbol {
			n++
		}
	}

	return n
}

// PositionIndices returns the global indices of open positions for a
// symbol ("" means all), in insertion order.
func (p *Portfolio) PositionIndices(symbol string) []int {
	out := make([]int, 0, len(p.positions))

	for i, pos := range p.positions {
		if symbol == "" || pos.Symbol == symbol {
			out = append(out, i)
		}
	}

	return out
}

// PositionAt returns the position at a global index for in-place phase-2
// mutation.
func (p *Portfolio) PositionAt(index int) *types.Position {
	return p.positions[index]
}

// PositionViews returns copies of the open positions for a symbol (""
// means all). Strategies only ever see these borrowed views.
func (p *Portfolio) PositionViews(symbol string) []types.Position {
	out := make([]types.Position, 0, len(p.positions))

	for _, pos := range p.positions {
		if symbol == "" || pos.Symbol == symbol {
			out = append(out, *pos)
		}
	}

	return out
}

// FindPosition returns the global index of the first open position with
// the given symbol and side.
func (p *Portfolio) FindPosition(symbol string, side types.Side) optional.Option[int] {
	for i, pos := range p.positions {
		if pos.Symbol == symbol && pos.Side == side {
			return optional.Some(i)
		}
	}

	return optional.None[int]()
}

// TotalExposure is the sum of open position sizes.
func (p *Portfolio) TotalExposure() float64 {
	total := 0.0
	for _, pos := range p.positions {
		total += pos.SizeUSD
	}

	return total
}

func (p *Portfolio) maxPositionsFor(symbol string) int {
	if limit, ok := p.symbolMaxPositions[symbol]; ok {
		return limit
	}

	return p.maxPositions
}

// CanOpen reports whether a new position may open for the symbol: the
// per-symbol count must be below the limit and, when a group label is
// set, no position in that group may exist.
func (p *Portfolio) CanOpen(symbol, group string) bool {
	if p.PositionCount(symbol) >= p.maxPositionsFor(symbol) {
		return false
	}

	if group != "" {
		for _, pos := range p.positions {
			if pos.Group == group {
				return false
			}
		}
	}

	return true
}

func (p *Portfolio) sizeFor(order types.Order, price float64, symbol string) float64 {
	if order.SizeUSD.IsSome() {
		return order.SizeUSD.Unwrap()
	}

	if p.sizer != nil {
		return p.sizer.GetSize(p.equity, order.Side, price, symbol, order.StopLossPct.TakeOr(0))
	}

	if size, ok := p.symbolDefaultSize[symbol]; ok {
		return size
	}

	return p.defaultSizeUSD
}

func (p *Portfolio) withinExposureCap(addedSize float64) bool {
	if p.maxTotalExposure.IsNone() {
		return true
	}

	return p.TotalExposure()+addedSize <= p.maxTotalExposure.Unwrap()
}

// OpenPosition fills an entry order. rawPrice is the pre-slippage price
// (bar open for market fills, the trigger or gap price for stop fills,
// the limit price for limit fills);
// slippage is applied only when applySlippage is set. Returns None when
// the exposure cap rejects the fill.
func (p *Portfolio) OpenPosition(bar types.Bar, order types.Order, rawPrice float64, applySlippage, isMaker bool) optional.Option[types.Fill] {
	symbol := order.Symbol
	if symbol == "" {
		symbol = bar.Symbol
	}

	sizeUSD := p.sizeFor(order, rawPrice, symbol)

	if !p.withinExposureCap(sizeUSD) {
		p.log.Debug("fill rejected by exposure cap",
			zap.String("symbol", order.Symbol),
			zap.Float64("size_usd", sizeUSD),
		)

		return optional.None[types.Fill]()
	}

	price := rawPrice
	slippageCost := 0.0

	if applySlippage {
		price = p.execution.EntryPrice(rawPrice, order.Side)
		slippageCost = math.Abs(price-rawPrice) / rawPrice * sizeUSD
	}

	pos := &types.Position{
		Side:               order.Side,
		EntryPrice:         price,
		EntryTime:          bar.Timestamp,
		SizeUSD:            sizeUSD,
		Symbol:             symbol,
		Group:              order.Group,
		StopLossPct:        order.StopLossPct.TakeOr(0),
		TakeProfitPct:      order.TakeProfitPct.TakeOr(0),
		PositionHigh:       price,
		PositionLow:        price,
		BreakevenTrigger:   order.BreakevenTrigger.TakeOr(0),
		BreakevenLock:      order.BreakevenLock.TakeOr(0),
		TrailPct:           order.TrailPct.TakeOr(0),
		TrailActivationPct: order.TrailActivationPct.TakeOr(0),
		PartialTPPct:       order.PartialTPPct.TakeOr(0),
		PartialTPNewTPPct:  order.PartialTPNewTPPct.TakeOr(0),
	}
	pos.RecalcLevels()

	fee := p.execution.Fee(sizeUSD, isMaker)
	pos.EntryFees = fee
	p.totalFees += fee
	p.equity -= fee

	p.positions = append(p.positions, pos)

	fill := types.Fill{
		ID:           uuid.New().String(),
		Timestamp:    bar.Timestamp,
		Side:         order.Side,
		Price:        price,
		SizeUSD:      sizeUSD,
		Symbol:       symbol,
		Fees:         fee,
		SlippageCost: slippageCost,
		IsEntry:      true,
	}
	p.fills = append(p.fills, fill)

	return optional.Some(fill)
}

// MergePosition folds a limit or market fill into an existing position: the entry
// becomes the size-weighted average, the size grows, and SL/TP/BE/trail
// levels re-derive from the new entry using the merging order's
// percentages (fields the order leaves unset keep the previous ones).
func (p *Portfolio) MergePosition(index int, bar types.Bar, rawPrice float64, order types.Order, isMaker bool) optional.Option[types.Fill] {
	pos := p.positions[index]

	addedSize := p.sizeFor(order, rawPrice, pos.Symbol)
	if !p.withinExposureCap(addedSize) {
		p.log.Debug("merge rejected by exposure cap",
			zap.String("symbol", pos.Symbol),
			zap.Float64("size_usd", addedSize),
		)

		return optional.None[types.Fill]()
	}

	totalSize := pos.SizeUSD + addedSize
	pos.EntryPrice = (pos.EntryPrice*pos.SizeUSD + rawPrice*addedSize) / totalSize
	pos.SizeUSD = totalSize

	if order.StopLossPct.IsSome() {
		pos.StopLossPct = order.StopLossPct.Unwrap()
	}

	if order.TakeProfitPct.IsSome() {
		pos.TakeProfitPct = order.TakeProfitPct.Unwrap()
	}

	if order.BreakevenTrigger.IsSome() {
		pos.BreakevenTrigger = order.BreakevenTrigger.Unwrap()
	}

	if order.BreakevenLock.IsSome() {
		pos.BreakevenLock = order.BreakevenLock.Unwrap()
	}

	if order.TrailPct.IsSome() {
		pos.TrailPct = order.TrailPct.Unwrap()
	}

	if order.TrailActivationPct.IsSome() {
		pos.TrailActivationPct = order.TrailActivationPct.Unwrap()
	}

	pos.RecalcLevels()

	fee := p.execution.Fee(addedSize, isMaker)
	pos.EntryFees += fee
	p.totalFees += fee
	p.equity -= fee

	fill := types.Fill{
		ID:        uuid.New().String(),
		Timestamp: bar.Timestamp,
		Side:      pos.Side,
		Price:     rawPrice,
		SizeUSD:   addedSize,
		Symbol:    pos.Symbol,
		Fees:      fee,
		IsEntry:   true,
		IsMerge:   true,
	}
	p.fills = append(p.fills, fill)

	return optional.Some(fill)
}

// ClosePosition closes the position at a global index and records the
// trade, the exit fill, and an equity sample.
func (p *Portfolio) ClosePosition(index int, rawPrice float64, bar types.Bar, reason types.ExitReason, isMaker bool) (types.Trade, types.Fill) {
	pos := p.positions[index]
	p.positions = append(p.positions[:index], p.positions[index+1:]...)

	return p.settle(pos, pos.SizeUSD, pos.EntryFees, rawPrice, bar, reason, isMaker, false)
}

// PartialClosePosition closes a fraction of the position. When the
// reason is PARTIAL_TP the remaining position's take profit is rewritten
// to the configured follow-up level and the partial flag latches so it
// can fire at most once.
func (p *Portfolio) PartialClosePosition(index int, fraction, rawPrice float64, bar types.Bar, reason types.ExitReason) (types.Trade, types.Fill, error) {
	if fraction <= 0 || fraction >= 1 {
		return types.Trade{}, types.Fill{}, errors.Newf(errors.ErrCodeInvalidFraction,
			"partial close fraction must be in (0,1), got %f", fraction)
	}

	pos := p.positions[index]

	closeSize := pos.SizeUSD * fraction
	entryShare := pos.EntryFees * fraction

	pos.SizeUSD -= closeSize
	pos.EntryFees -= entryShare

	if reason == types.ExitReasonPartialTP {
		pos.PartialTPDone = true

		if pos.PartialTPNewTPPct > 0 {
			pos.TakeProfitPct = pos.PartialTPNewTPPct
			pos.RecalcLevels()
		}
	}

	trade, fill := p.settle(pos, closeSize, entryShare, rawPrice, bar, reason, false, true)

	return trade, fill, nil
}

// settle does the shared close accounting for full and partial closes.
func (p *Portfolio) settle(pos *types.Position, closeSize, entryFeeShare, rawPrice float64, bar types.Bar, reason types.ExitReason, isMaker, isPartial bool) (types.Trade, types.Fill) {
	exitPrice := p.execution.ExitPrice(rawPrice, pos.Side)
	slippageCost := math.Abs(exitPrice-rawPrice) / rawPrice * closeSize

	grossPnL := types.GrossPnL(pos.Side, pos.EntryPrice, exitPrice, closeSize)
	exitFee := p.execution.Fee(closeSize, isMaker)

	p.totalFees += exitFee
	p.equity += grossPnL - exitFee

	// Ruin condition: equity is floored at zero.
	if p.equity < 0 {
		p.equity = 0
	}

	p.peakEquity = math.Max(p.peakEquity, p.equity)

	if p.peakEquity > 0 {
		drawdown := (p.peakEquity - p.equity) / p.peakEquity
		p.maxDrawdown = math.Max(p.maxDrawdown, drawdown)
	}

	pnlPct := 0.0
	if pos.EntryPrice > 0 {
		if pos.IsLong() {
			pnlPct = (exitPrice - pos.EntryPrice) / pos.EntryPrice
		} else {
			pnlPct = (pos.EntryPrice - exitPrice) / pos.EntryPrice
		}
	}

	trade := types.Trade{
		ID:         uuid.New().String(),
		EntryTime:  pos.EntryTime,
		ExitTime:   bar.Timestamp,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		SizeUSD:    closeSize,
		PnLUSD:     grossPnL,
		PnLPct:     pnlPct,
		Fees:       entryFeeShare + exitFee,
		Reason:     reason,
		Symbol:     pos.Symbol,
		IsPartial:  isPartial,
		Group:      pos.Group,
	}
	p.trades = append(p.trades, trade)

	fill := types.Fill{
		ID:           uuid.New().String(),
		Timestamp:    bar.Timestamp,
		Side:         pos.Side,
		Price:        exitPrice,
		SizeUSD:      closeSize,
		Symbol:       pos.Symbol,
		Fees:         exitFee,
		SlippageCost: slippageCost,
		IsEntry:      false,
		Reason:       reason,
	}
	p.fills = append(p.fills, fill)

	p.equityCurve = append(p.equityCurve, types.EquitySample{Timestamp: bar.Timestamp, Equity: p.equity})

	p.log.Debug("position closed",
		zap.String("symbol", pos.Symbol),
		zap.String("reason", string(reason)),
		zap.Float64("pnl_usd", grossPnL),
		zap.Float64("equity", p.equity),
	)

	return trade, fill
}

// Reset restores the portfolio to its initial state.
func (p *Portfolio) Reset() {
	p.equity = p.initialEquity
	p.peakEquity = p.initialEquity
	p.maxDrawdown = 0
	p.positions = nil
	p.trades = nil
	p.fills = nil
	p.totalFees = 0
	p.equityCurve = nil
}
