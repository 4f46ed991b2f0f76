package indicator

import (
	"github.com/moznion/go-optional"

	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

const (
	RSIModeWilder = "wilder"
	RSIModeSimple = "simple"
)

// RSI is the relative strength index over 0..100.
//
// Wilder mode smooths gains/losses exponentially with alpha = 1/period;
// simple mode uses a rolling arithmetic average.
type RSI struct {
	name   string
	period int
	mode   string
	source string

	prevClose optional.Option[float64]
	avgGain   float64
	avgLoss   float64
	count     int

	gains  *window
	losses *window

	value optional.Option[float64]
}

func newRSI(name string, spec Spec) (Indicator, error) {
	period := spec.period(14)
	if period <= 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "rsi %s: period must exceed 1", name)
	}

	mode := spec.Mode
	if mode == "" {
		mode = RSIModeWilder
	}

	if mode != RSIModeWilder && mode != RSIModeSimple {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "rsi %s: unknown mode %q", name, mode)
	}

	return &RSI{
		name:   name,
		period: period,
		mode:   mode,
		source: spec.source(),
		gains:  newWindow(period),
		losses: newWindow(period),
	}, nil
}

func (r *RSI) Name() string              { return r.name }
func (r *RSI) Type() types.IndicatorType { return types.IndicatorTypeRSI }

func (r *RSI) Update(bar types.Bar) {
	price := bar.Source(r.source)

	if r.prevClose.IsNone() {
		r.prevClose = optional.Some(price)

		return
	}

	delta := price - r.prevClose.Unwrap()
	r.prevClose = optional.Some(price)

	gain := 0.0
	loss := 0.0

	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	r.count++

	if r.mode == RSIModeWilder {
		r.updateWilder(gain, loss)
	} else {
		r.updateSimple(gain, loss)
	}
}

// updateWilder applies exponential smoothing with alpha = 1/period. The
// series is seeded as if a zero gain/loss preceded the first real delta,
// which keeps warmup aligned with the batch formulation.
func (r *RSI) updateWilder(gain, loss float64) {
	alpha := 1.0 / float64(r.period)

	if r.count == 1 {
		r.avgGain = alpha * gain
		r.avgLoss = alpha * loss
	} else {
		r.avgGain = alpha*gain + (1-alpha)*r.avgGain
		r.avgLoss = alpha*loss + (1-alpha)*r.avgLoss
	}

	if r.count >= r.period-1 {
		r.value = optional.Some(rsiFrom(r.avgGain, r.avgLoss))
	}
}

func (r *RSI) updateSimple(gain, loss float64) {
	r.gains.push(gain)
	r.losses.push(loss)

	if !r.gains.full() {
		return
	}

	r.value = optional.Some(rsiFrom(r.gains.mean(), r.losses.mean()))
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss

	return 100 - (100 / (1 + rs))
}

func (r *RSI) Value() optional.Option[types.IndicatorValue] {
	if r.value.IsNone() {
		return optional.None[types.IndicatorValue]()
	}

	return optional.Some(types.ScalarValue(r.value.Unwrap()))
}

func (r *RSI) Reset() {
	r.prevClose = optional.None[float64]()
	r.avgGain = 0
	r.avgLoss = 0
	r.count = 0
	r.gains.reset()
	r.losses.reset()
	r.value = optional.None[float64]()
}
