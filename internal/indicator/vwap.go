package indicator

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/replaylab/replay-trading/internal/types"
)

// VWAP is the session volume-weighted average price. The session resets
// at midnight UTC; the first bar of the new day counts toward the new
// session.
type VWAP struct {
	name string

	cumVol   float64
	cumTPVol float64
	day      optional.Option[time.Time]
	value    optional.Option[float64]
}

func newVWAP(name string, _ Spec) (Indicator, error) {
	return &VWAP{name: name}, nil
}

func (v *VWAP) Name() string              { return v.name }
func (v *VWAP) Type() types.IndicatorType { return types.IndicatorTypeVWAP }

func (v *VWAP) Update(bar types.Bar) {
	day := bar.Timestamp.UTC().Truncate(24 * time.Hour)

	if v.day.IsSome() && !day.Equal(v.day.Unwrap()) {
		v.cumVol = 0
		v.cumTPVol = 0
	}

	v.day = optional.Some(day)

	v.cumTPVol += bar.TypicalPrice() * bar.Volume
	v.cumVol += bar.Volume

	if v.cumVol > 0 {
		v.value = optional.Some(v.cumTPVol / v.cumVol)
	}
}

func (v *VWAP) Value() optional.Option[types.IndicatorValue] {
	if v.value.IsNone() {
		return optional.None[types.IndicatorValue]()
	}

	return optional.Some(types.ScalarValue(v.value.Unwrap()))
}

func (v *VWAP) Reset() {
	v.cumVol = 0
	v.cumTPVol = 0
	v.day = optional.None[time.Time]()
	v.value = optional.None[float64]()
}

// OBV is on-balance volume: volume added on up closes, subtracted on
// down closes, unchanged when the close repeats.
type OBV struct {
	name string

	prevClose optional.Option[float64]
	obv       float64
	started   bool
}

func newOBV(name string, _ Spec) (Indicator, error) {
	return &OBV{name: name}, nil
}

func (o *OBV) Name() string              { return o.name }
func (o *OBV) Type() types.IndicatorType { return types.IndicatorTypeOBV }

func (o *OBV) Update(bar types.Bar) {
	if o.prevClose.IsSome() {
		prev := o.prevClose.Unwrap()
		if bar.Close > prev {
			o.obv += bar.Volume
		} else if bar.Close < prev {
			o.obv -= bar.Volume
		}
	}

	o.prevClose = optional.Some(bar.Close)
	o.started = true
}

func (o *OBV) Value() optional.Option[types.IndicatorValue] {
	if !o.started {
		return optional.None[types.IndicatorValue]()
	}

	return optional.Some(types.ScalarValue(o.obv))
}

func (o *OBV) Reset() {
	o.prevClose = optional.None[float64]()
	o.obv = 0
	o.started = false
}
