package indicator

import (
	"github.com/moznion/go-optional"

	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

// SMA is the arithmetic mean of the last period source values.
type SMA struct {
	name   string
	source string
	win    *window
}

func newSMA(name string, spec Spec) (Indicator, error) {
	period := spec.period(14)
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "sma %s: period must be positive", name)
	}

	return &SMA{name: name, source: spec.source(), win: newWindow(period)}, nil
}

func (s *SMA) Name() string              { return s.name }
func (s *SMA) Type() types.IndicatorType { return types.IndicatorTypeSMA }

func (s *SMA) Update(bar types.Bar) {
	s.win.push(bar.Source(s.source))
}

func (s *SMA) Value() optional.Option[types.IndicatorValue] {
	if !s.win.full() {
		return optional.None[types.IndicatorValue]()
	}

	return optional.Some(types.ScalarValue(s.win.mean()))
}

func (s *SMA) Reset() {
	s.win.reset()
}

// EMA is an exponential moving average with alpha = 2/(period+1), seeded
// with the SMA of the first period samples.
type EMA struct {
	name   string
	source string
	state  *emaState
}

func newEMA(name string, spec Spec) (Indicator, error) {
	period := spec.period(14)
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "ema %s: period must be positive", name)
	}

	return &EMA{name: name, source: spec.source(), state: newEMAState(period)}, nil
}

func (e *EMA) Name() string              { return e.name }
func (e *EMA) Type() types.IndicatorType { return types.IndicatorTypeEMA }

func (e *EMA) Update(bar types.Bar) {
	e.state.update(bar.Source(e.source))
}

func (e *EMA) Value() optional.Option[types.IndicatorValue] {
	if !e.state.ready() {
		return optional.None[types.IndicatorValue]()
	}

	return optional.Some(types.ScalarValue(e.state.value))
}

func (e *EMA) Reset() {
	e.state.reset()
}
