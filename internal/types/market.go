package types

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/replaylab/replay-trading/pkg/errors"
)

// TimeFrame labels the resolution of a bar stream.
type TimeFrame string

const (
	TimeFrame1m  TimeFrame = "1m"
	TimeFrame5m  TimeFrame = "5m"
	TimeFrame15m TimeFrame = "15m"
	TimeFrame30m TimeFrame = "30m"
	TimeFrame1h  TimeFrame = "1h"
	TimeFrame2h  TimeFrame = "2h"
	TimeFrame4h  TimeFrame = "4h"
	TimeFrame1d  TimeFrame = "1d"
)

var timeFrameDurations = map[TimeFrame]time.Duration{
	TimeFrame1m:  time.Minute,
	TimeFrame5m:  5 * time.Minute,
	TimeFrame15m: 15 * time.Minute,
	TimeFrame30m: 30 * time.Minute,
	TimeFrame1h:  time.Hour,
	TimeFrame2h:  2 * time.Hour,
	TimeFrame4h:  4 * time.Hour,
	TimeFrame1d:  24 * time.Hour,
}

// Duration returns the bucket length of the timeframe.
func (tf TimeFrame) Duration() (time.Duration, error) {
	d, ok := timeFrameDurations[tf]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeUnsupportedTimeFrame, "unsupported timeframe: %s", tf)
	}

	return d, nil
}

// Bucket returns the epoch-aligned (UTC) bucket start for ts.
func (tf TimeFrame) Bucket(ts time.Time) (time.Time, error) {
	d, err := tf.Duration()
	if err != nil {
		return time.Time{}, err
	}

	return ts.UTC().Truncate(d), nil
}

// Bar is a single immutable OHLCV candle.
type Bar struct {
	Timestamp time.Time `yaml:"timestamp" json:"timestamp" csv:"timestamp" validate:"required"`
	Open      float64   `yaml:"open" json:"open" csv:"open" validate:"gte=0"`
	High      float64   `yaml:"high" json:"high" csv:"high" validate:"gte=0"`
	Low       float64   `yaml:"low" json:"low" csv:"low" validate:"gte=0"`
	Close     float64   `yaml:"close" json:"close" csv:"close" validate:"gte=0"`
	Volume    float64   `yaml:"volume" json:"volume" csv:"volume" validate:"gte=0"`
	Symbol    string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	TimeFrame TimeFrame `yaml:"timeframe" json:"timeframe" csv:"timeframe"`
}

// Source selects a price field by name. Unknown names fall back to close.
func (b Bar) Source(field string) float64 {
	switch field {
	case "open":
		return b.Open
	case "high":
		return b.High
	case "low":
		return b.Low
	default:
		return b.Close
	}
}

// TypicalPrice is (high + low + close) / 3.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// Validate checks structural bar sanity: finite, non-negative values and
// a high/low envelope that contains open and close.
func (b *Bar) Validate() error {
	validate := validator.New()
	if err := validate.Struct(b); err != nil {
		return errors.Wrap(errors.ErrCodeMalformedBar, "invalid bar", err)
	}

	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Newf(errors.ErrCodeMalformedBar, "bar at %s has non-finite value", b.Timestamp)
		}
	}

	if b.High < math.Max(b.Open, math.Max(b.Close, b.Low)) {
		return errors.Newf(errors.ErrCodeMalformedBar, "bar at %s: high %f below open/close/low", b.Timestamp, b.High)
	}

	if b.Low > math.Min(b.Open, math.Min(b.Close, b.High)) {
		return errors.Newf(errors.ErrCodeMalformedBar, "bar at %s: low %f above open/close/high", b.Timestamp, b.Low)
	}

	return nil
}
