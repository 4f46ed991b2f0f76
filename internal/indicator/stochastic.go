package indicator

import (
	"github.com/moznion/go-optional"

	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

// Stochastic outputs a record with fields k and d.
//
// raw_k = 100*(close-llow)/(hhigh-llow) over k_period; k is raw_k
// smoothed over smooth_k; d is k smoothed over d_period. Until the d
// window fills, d reports the latest k.
type Stochastic struct {
	name    string
	kPeriod int

	highs   *window
	lows    *window
	rawK    *window
	kValues *window

	value optional.Option[types.IndicatorValue]
}

func newStochastic(name string, spec Spec) (Indicator, error) {
	kPeriod := spec.KPeriod
	if kPeriod == 0 {
		kPeriod = spec.period(14)
	}

	dPeriod := spec.DPeriod
	if dPeriod == 0 {
		dPeriod = 3
	}

	smoothK := spec.SmoothK
	if smoothK == 0 {
		smoothK = 3
	}

	if kPeriod <= 0 || dPeriod <= 0 || smoothK <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "stochastic %s: periods must be positive", name)
	}

	return &Stochastic{
		name:    name,
		kPeriod: kPeriod,
		highs:   newWindow(kPeriod),
		lows:    newWindow(kPeriod),
		rawK:    newWindow(smoothK),
		kValues: newWindow(dPeriod),
	}, nil
}

func (s *Stochastic) Name() string              { return s.name }
func (s *Stochastic) Type() types.IndicatorType { return types.IndicatorTypeStochastic }

func (s *Stochastic) Update(bar types.Bar) {
	s.highs.push(bar.High)
	s.lows.push(bar.Low)

	if !s.highs.full() {
		return
	}

	highest := s.highs.max()
	lowest := s.lows.min()

	rawK := 50.0
	if highest != lowest {
		rawK = (bar.Close - lowest) / (highest - lowest) * 100
	}

	s.rawK.push(rawK)
	if !s.rawK.full() {
		return
	}

	k := s.rawK.mean()
	s.kValues.push(k)

	d := k
	if s.kValues.full() {
		d = s.kValues.mean()
	}

	s.value = optional.Some(types.RecordValue(map[string]float64{
		"k": k,
		"d": d,
	}))
}

func (s *Stochastic) Value() optional.Option[types.IndicatorValue] {
	return s.value
}

func (s *Stochastic) Reset() {
	s.highs.reset()
	s.lows.reset()
	s.rawK.reset()
	s.kValues.reset()
	s.value = optional.None[types.IndicatorValue]()
}
