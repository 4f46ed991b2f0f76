package strategy

import (
	"github.com/moznion/go-optional"

	"github.com/replaylab/replay-trading/internal/indicator"
	"github.com/replaylab/replay-trading/internal/types"
)

// SMACrossover is a worked example strategy: long when the fast SMA
// crosses above the slow one, short on the opposite cross, fixed
// percentage exits.
type SMACrossover struct {
	Base

	fastName string
	slowName string

	takeProfitPct float64
	stopLossPct   float64

	prevFast optional.Option[float64]
	prevSlow optional.Option[float64]
}

// NewSMACrossover builds the example with the given indicator instance
// names (they must exist in the engine's indicator config).
func NewSMACrossover(fastName, slowName string, takeProfitPct, stopLossPct float64) *SMACrossover {
	return &SMACrossover{
		fastName:      fastName,
		slowName:      slowName,
		takeProfitPct: takeProfitPct,
		stopLossPct:   stopLossPct,
	}
}

// DefaultSMACrossoverIndicators returns an indicator config matching
// the conventional instance names.
func DefaultSMACrossoverIndicators(fastPeriod, slowPeriod int) map[string]indicator.Spec {
	return map[string]indicator.Spec{
		"sma_fast": {Type: types.IndicatorTypeSMA, Period: fastPeriod},
		"sma_slow": {Type: types.IndicatorTypeSMA, Period: slowPeriod},
	}
}

// Name implements Strategy.
func (s *SMACrossover) Name() string {
	return "sma-crossover"
}

// OnBar implements Strategy.
func (s *SMACrossover) OnBar(_ types.Bar, indicators map[string]types.IndicatorValue, positions []types.Position) ([]types.Order, error) {
	fast, fastOK := scalarOf(indicators, s.fastName)
	slow, slowOK := scalarOf(indicators, s.slowName)

	defer func() {
		if fastOK {
			s.prevFast = optional.Some(fast)
		}

		if slowOK {
			s.prevSlow = optional.Some(slow)
		}
	}()

	if !fastOK || !slowOK || s.prevFast.IsNone() || s.prevSlow.IsNone() || len(positions) > 0 {
		return nil, nil
	}

	crossedUp := fast > slow && s.prevFast.Unwrap() <= s.prevSlow.Unwrap()
	crossedDown := fast < slow && s.prevFast.Unwrap() >= s.prevSlow.Unwrap()

	if !crossedUp && !crossedDown {
		return nil, nil
	}

	side := types.SideLong
	if crossedDown {
		side = types.SideShort
	}

	order := types.MarketOrder(side)
	order.TakeProfitPct = optional.Some(s.takeProfitPct)
	order.StopLossPct = optional.Some(s.stopLossPct)

	return []types.Order{order}, nil
}

func scalarOf(indicators map[string]types.IndicatorValue, name string) (float64, bool) {
	value, ok := indicators[name]
	if !ok {
		return 0, false
	}

	return value.Scalar()
}
