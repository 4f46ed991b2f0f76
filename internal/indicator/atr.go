package indicator

import (
	"math"

	"github.com/moznion/go-optional"

	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

const (
	ATRModeSMA    = "sma"
	ATRModeWilder = "wilder"
)

// ATR is the average true range.
//
// True range per bar = max(high-low, |high-prev_close|, |low-prev_close|).
// SMA mode takes a rolling mean of TR; wilder mode seeds with that mean
// and then recurses ATR = ((period-1)*prev + TR) / period.
type ATR struct {
	name   string
	period int
	mode   string

	prevClose optional.Option[float64]
	trWindow  *window
	wilderATR optional.Option[float64]
	value     optional.Option[float64]
}

func newATR(name string, spec Spec) (Indicator, error) {
	period := spec.period(14)
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "atr %s: period must be positive", name)
	}

	mode := spec.Mode
	if mode == "" {
		mode = ATRModeSMA
	}

	if mode != ATRModeSMA && mode != ATRModeWilder {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "atr %s: unknown mode %q", name, mode)
	}

	return &ATR{name: name, period: period, mode: mode, trWindow: newWindow(period)}, nil
}

func (a *ATR) Name() string              { return a.name }
func (a *ATR) Type() types.IndicatorType { return types.IndicatorTypeATR }

func (a *ATR) Update(bar types.Bar) {
	var tr float64

	if a.prevClose.IsNone() {
		// First bar has no previous close.
		tr = bar.High - bar.Low
	} else {
		prev := a.prevClose.Unwrap()
		tr = math.Max(bar.High-bar.Low, math.Max(math.Abs(bar.High-prev), math.Abs(bar.Low-prev)))
	}

	a.prevClose = optional.Some(bar.Close)

	if a.mode == ATRModeWilder {
		a.updateWilder(tr)
	} else {
		a.updateSMA(tr)
	}
}

func (a *ATR) updateSMA(tr float64) {
	a.trWindow.push(tr)
	if a.trWindow.full() {
		a.value = optional.Some(a.trWindow.mean())
	}
}

func (a *ATR) updateWilder(tr float64) {
	if a.wilderATR.IsNone() {
		a.trWindow.push(tr)
		if a.trWindow.full() {
			seed := a.trWindow.mean()
			a.wilderATR = optional.Some(seed)
			a.value = optional.Some(seed)
		}

		return
	}

	next := (float64(a.period-1)*a.wilderATR.Unwrap() + tr) / float64(a.period)
	a.wilderATR = optional.Some(next)
	a.value = optional.Some(next)
}

func (a *ATR) Value() optional.Option[types.IndicatorValue] {
	if a.value.IsNone() {
		return optional.None[types.IndicatorValue]()
	}

	return optional.Some(types.ScalarValue(a.value.Unwrap()))
}

func (a *ATR) Reset() {
	a.prevClose = optional.None[float64]()
	a.trWindow.reset()
	a.wilderATR = optional.None[float64]()
	a.value = optional.None[float64]()
}

// CHOP is a choppiness filter: ATR(period) / close, as a plain ratio.
// High values mean a ranging market, low values a trending one.
type CHOP struct {
	name  string
	atr   *ATR
	value optional.Option[float64]
}

func newCHOP(name string, spec Spec) (Indicator, error) {
	atrSpec := spec
	atrSpec.Type = types.IndicatorTypeATR

	inner, err := newATR(name+"_atr", atrSpec)
	if err != nil {
		return nil, err
	}

	return &CHOP{name: name, atr: inner.(*ATR)}, nil
}

func (c *CHOP) Name() string              { return c.name }
func (c *CHOP) Type() types.IndicatorType { return types.IndicatorTypeCHOP }

func (c *CHOP) Update(bar types.Bar) {
	c.atr.Update(bar)

	if c.atr.value.IsSome() && bar.Close > 0 {
		c.value = optional.Some(c.atr.value.Unwrap() / bar.Close)
	}
}

func (c *CHOP) Value() optional.Option[types.IndicatorValue] {
	if c.value.IsNone() {
		return optional.None[types.IndicatorValue]()
	}

	return optional.Some(types.ScalarValue(c.value.Unwrap()))
}

func (c *CHOP) Reset() {
	c.atr.Reset()
	c.value = optional.None[float64]()
}
