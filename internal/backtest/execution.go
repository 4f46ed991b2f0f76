package backtest

import (
	"math"

	"github.com/moznion/go-optional"

	"github.com/replaylab/replay-trading/internal/types"
)

// ExecutionModel applies adverse slippage and fees, and evaluates exit
// triggers with gap protection.
type ExecutionModel struct {
	Slippage float64
	TakerFee float64
	MakerFee float64
}

// NewExecutionModel builds the execution model from the engine config.
func NewExecutionModel(config Config) *ExecutionModel {
	return &ExecutionModel{
		Slippage: config.Slippage,
		TakerFee: config.TakerFee,
		MakerFee: config.MakerFee,
	}
}

// EntryPrice applies adverse slippage to an entry: longs pay up, shorts
// receive less.
func (e *ExecutionModel) EntryPrice(raw float64, side types.Side) float64 {
	if side == types.SideLong {
		return raw * (1 + e.Slippage)
	}

	return raw * (1 - e.Slippage)
}

// ExitPrice applies adverse slippage to an exit: longs receive less,
// shorts pay up.
func (e *ExecutionModel) ExitPrice(raw float64, side types.Side) float64 {
	if side == types.SideLong {
		return raw * (1 - e.Slippage)
	}

	return raw * (1 + e.Slippage)
}

// Fee computes the fee for one side of a trade.
func (e *ExecutionModel) Fee(sizeUSD float64, isMaker bool) float64 {
	if isMaker {
		return sizeUSD * e.MakerFee
	}

	return sizeUSD * e.TakerFee
}

// CheckLimitFill reports whether a limit entry would fill on this bar.
// A long limit fills when the low trades through it, a short limit when
// the high does.
func (e *ExecutionModel) CheckLimitFill(limitPrice float64, side types.Side, bar types.Bar) bool {
	if side == types.SideLong {
		return bar.Low <= limitPrice
	}

	return bar.High >= limitPrice
}

// CheckStopFill reports whether a stop entry would trigger on this bar
// and at which raw price. A bar that opens beyond the stop fills at the
// open.
func (e *ExecutionModel) CheckStopFill(stopPrice float64, side types.Side, bar types.Bar) (bool, float64) {
	if side == types.SideLong {
		if bar.Open >= stopPrice {
			return true, bar.Open
		}

		if bar.High >= stopPrice {
			return true, stopPrice
		}

		return false, 0
	}

	if bar.Open <= stopPrice {
		return true, bar.Open
	}

	if bar.Low <= stopPrice {
		return true, stopPrice
	}

	return false, 0
}

// ExitTrigger is the outcome of phase-2 evaluation for one position.
type ExitTrigger struct {
	// Price is the raw exit price before slippage.
	Price  float64
	Reason types.ExitReason
	// Partial marks a partial take profit rather than a full close.
	Partial bool
}

// CheckExit evaluates a position against a bar in strict priority order:
// gap-through stop, gap-through take profit, intra-bar stop, breakeven
// and trailing updates (with a re-check of the tightened stop), then
// intra-bar take profit. Position extremes are folded in first, and the
// breakeven/trailing state on the position is mutated in place.
func (e *ExecutionModel) CheckExit(pos *types.Position, bar types.Bar) optional.Option[ExitTrigger] {
	pos.TrackExtremes(bar)

	if trigger := e.checkGapAndStop(pos, bar); trigger.IsSome() {
		return trigger
	}

	e.updateTrailing(pos)
	e.updateBreakeven(pos)

	// A stop that just ratcheted past the bar's range fires on the same
	// bar, ahead of the take-profit check.
	if trigger := e.checkIntrabarStop(pos, bar); trigger.IsSome() {
		return trigger
	}

	return e.checkTakeProfit(pos, bar)
}

func (e *ExecutionModel) checkGapAndStop(pos *types.Position, bar types.Bar) optional.Option[ExitTrigger] {
	if pos.IsLong() {
		if pos.StopLoss > 0 && bar.Open <= pos.StopLoss {
			return optional.Some(ExitTrigger{Price: bar.Open, Reason: stopReason(pos, true)})
		}

		if pos.TakeProfit > 0 && bar.Open >= pos.TakeProfit {
			return optional.Some(ExitTrigger{Price: bar.Open, Reason: types.ExitReasonTakeProfitGap})
		}

		if pos.StopLoss > 0 && bar.Low <= pos.StopLoss {
			return optional.Some(ExitTrigger{Price: pos.StopLoss, Reason: stopReason(pos, false)})
		}

		return optional.None[ExitTrigger]()
	}

	if pos.StopLoss > 0 && bar.Open >= pos.StopLoss {
		return optional.Some(ExitTrigger{Price: bar.Open, Reason: stopReason(pos, true)})
	}

	if pos.TakeProfit > 0 && bar.Open <= pos.TakeProfit {
		return optional.Some(ExitTrigger{Price: bar.Open, Reason: types.ExitReasonTakeProfitGap})
	}

	if pos.StopLoss > 0 && bar.High >= pos.StopLoss {
		return optional.Some(ExitTrigger{Price: pos.StopLoss, Reason: stopReason(pos, false)})
	}

	return optional.None[ExitTrigger]()
}

func (e *ExecutionModel) checkIntrabarStop(pos *types.Position, bar types.Bar) optional.Option[ExitTrigger] {
	if pos.StopLoss <= 0 {
		return optional.None[ExitTrigger]()
	}

	if pos.IsLong() && bar.Low <= pos.StopLoss {
		return optional.Some(ExitTrigger{Price: pos.StopLoss, Reason: stopReason(pos, false)})
	}

	if !pos.IsLong() && bar.High >= pos.StopLoss {
		return optional.Some(ExitTrigger{Price: pos.StopLoss, Reason: stopReason(pos, false)})
	}

	return optional.None[ExitTrigger]()
}

func (e *ExecutionModel) checkTakeProfit(pos *types.Position, bar types.Bar) optional.Option[ExitTrigger] {
	if pos.TakeProfit <= 0 {
		return optional.None[ExitTrigger]()
	}

	hit := (pos.IsLong() && bar.High >= pos.TakeProfit) || (!pos.IsLong() && bar.Low <= pos.TakeProfit)
	if !hit {
		return optional.None[ExitTrigger]()
	}

	if pos.PartialTPPct > 0 && !pos.PartialTPDone {
		return optional.Some(ExitTrigger{Price: pos.TakeProfit, Reason: types.ExitReasonPartialTP, Partial: true})
	}

	return optional.Some(ExitTrigger{Price: pos.TakeProfit, Reason: types.ExitReasonTakeProfit})
}

// updateTrailing ratchets the stop toward price once the favorable
// excursion reaches the activation threshold. The stop never loosens.
func (e *ExecutionModel) updateTrailing(pos *types.Position) {
	if pos.TrailPct <= 0 {
		return
	}

	if !pos.TrailActivated && pos.FavorableExcursionPct() >= pos.TrailActivationPct {
		pos.TrailActivated = true
	}

	if !pos.TrailActivated {
		return
	}

	if pos.IsLong() {
		trail := pos.PositionHigh * (1 - pos.TrailPct)
		pos.StopLoss = math.Max(pos.StopLoss, trail)

		return
	}

	trail := pos.PositionLow * (1 + pos.TrailPct)
	if pos.StopLoss > 0 {
		pos.StopLoss = math.Min(pos.StopLoss, trail)
	} else {
		pos.StopLoss = trail
	}
}

// updateBreakeven locks the stop to a small profit once the trigger
// excursion is reached. Activation is sticky.
func (e *ExecutionModel) updateBreakeven(pos *types.Position) {
	if pos.BreakevenActivated || pos.BreakevenTrigger <= 0 {
		return
	}

	if pos.FavorableExcursionPct() < pos.BreakevenTrigger {
		return
	}

	pos.BreakevenActivated = true

	if pos.IsLong() {
		pos.StopLoss = math.Max(pos.StopLoss, pos.EntryPrice*(1+pos.BreakevenLock))

		return
	}

	lock := pos.EntryPrice * (1 - pos.BreakevenLock)
	if pos.StopLoss > 0 {
		pos.StopLoss = math.Min(pos.StopLoss, lock)
	} else {
		pos.StopLoss = lock
	}
}

func stopReason(pos *types.Position, gap bool) types.ExitReason {
	switch {
	case pos.TrailActivated && gap:
		return types.ExitReasonTrailingStopGap
	case pos.TrailActivated:
		return types.ExitReasonTrailingStop
	case pos.BreakevenActivated && gap:
		return types.ExitReasonBreakevenGap
	case pos.BreakevenActivated:
		return types.ExitReasonBreakeven
	case gap:
		return types.ExitReasonStopLossGap
	default:
		return types.ExitReasonStopLoss
	}
}
