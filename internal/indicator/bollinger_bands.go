package indicator

import (
	"math"

	"github.com/moznion/go-optional"

	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

// BollingerBands outputs a record with fields upper, middle, lower,
// bandwidth and pct_b. Bandwidth is (upper-lower)/middle as a ratio.
type BollingerBands struct {
	name   string
	numStd float64
	source string
	win    *window
}

func newBollingerBands(name string, spec Spec) (Indicator, error) {
	period := spec.period(20)
	if period <= 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "bollinger %s: period must exceed 1", name)
	}

	numStd := spec.NumStd
	if numStd == 0 {
		numStd = 2.0
	}

	if numStd < 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "bollinger %s: num_std must be non-negative", name)
	}

	return &BollingerBands{name: name, numStd: numStd, source: spec.source(), win: newWindow(period)}, nil
}

func (b *BollingerBands) Name() string              { return b.name }
func (b *BollingerBands) Type() types.IndicatorType { return types.IndicatorTypeBollinger }

func (b *BollingerBands) Update(bar types.Bar) {
	b.win.push(bar.Source(b.source))
}

func (b *BollingerBands) Value() optional.Option[types.IndicatorValue] {
	if !b.win.full() {
		return optional.None[types.IndicatorValue]()
	}

	price := b.win.vals[len(b.win.vals)-1]
	mean := b.win.mean()

	variance := 0.0
	for _, x := range b.win.vals {
		variance += (x - mean) * (x - mean)
	}

	std := math.Sqrt(variance / float64(len(b.win.vals)))

	upper := mean + b.numStd*std
	lower := mean - b.numStd*std

	bandwidth := 0.0
	if mean != 0 {
		bandwidth = (upper - lower) / mean
	}

	pctB := 0.5
	if upper != lower {
		pctB = (price - lower) / (upper - lower)
	}

	return optional.Some(types.RecordValue(map[string]float64{
		"upper":     upper,
		"middle":    mean,
		"lower":     lower,
		"bandwidth": bandwidth,
		"pct_b":     pctB,
	}))
}

func (b *BollingerBands) Reset() {
	b.win.reset()
}
