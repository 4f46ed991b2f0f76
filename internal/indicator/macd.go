package indicator

import (
	"github.com/moznion/go-optional"

	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

// MACD outputs a record with fields macd, signal and hist.
//
// macd = EMA(fast) - EMA(slow); signal = EMA(macd, signal_period);
// hist = macd - signal.
type MACD struct {
	name   string
	source string

	fast   *emaState
	slow   *emaState
	signal *emaState
}

func newMACD(name string, spec Spec) (Indicator, error) {
	fastPeriod := spec.FastPeriod
	if fastPeriod == 0 {
		fastPeriod = 12
	}

	slowPeriod := spec.SlowPeriod
	if slowPeriod == 0 {
		slowPeriod = 26
	}

	signalPeriod := spec.SignalPeriod
	if signalPeriod == 0 {
		signalPeriod = 9
	}

	if fastPeriod <= 0 || slowPeriod <= 0 || signalPeriod <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "macd %s: periods must be positive", name)
	}

	if fastPeriod >= slowPeriod {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter,
			"macd %s: fast_period %d must be below slow_period %d", name, fastPeriod, slowPeriod)
	}

	return &MACD{
		name:   name,
		source: spec.source(),
		fast:   newEMAState(fastPeriod),
		slow:   newEMAState(slowPeriod),
		signal: newEMAState(signalPeriod),
	}, nil
}

func (m *MACD) Name() string              { return m.name }
func (m *MACD) Type() types.IndicatorType { return types.IndicatorTypeMACD }

func (m *MACD) Update(bar types.Bar) {
	price := bar.Source(m.source)

	m.fast.update(price)
	m.slow.update(price)

	if !m.fast.ready() || !m.slow.ready() {
		return
	}

	m.signal.update(m.fast.value - m.slow.value)
}

func (m *MACD) Value() optional.Option[types.IndicatorValue] {
	if !m.signal.ready() {
		return optional.None[types.IndicatorValue]()
	}

	macdLine := m.fast.value - m.slow.value

	return optional.Some(types.RecordValue(map[string]float64{
		"macd":   macdLine,
		"signal": m.signal.value,
		"hist":   macdLine - m.signal.value,
	}))
}

func (m *MACD) Reset() {
	m.fast.reset()
	m.slow.reset()
	m.signal.reset()
}
