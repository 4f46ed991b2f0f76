package indicator

import (
	"math"
	"time"

	"github.com/moznion/go-optional"

	"github.com/replaylab/replay-trading/internal/types"
)

// Resampler folds a 1m stream into higher-timeframe bars. Buckets are
// epoch-aligned in UTC so the same input produces the same buckets
// regardless of stream start. The in-progress bucket is never emitted.
type Resampler struct {
	tf types.TimeFrame

	started     bool
	bucketStart time.Time
	symbol      string
	open        float64
	high        float64
	low         float64
	close       float64
	volume      float64
}

// NewResampler builds a resampler for the given target timeframe.
func NewResampler(tf types.TimeFrame) (*Resampler, error) {
	if _, err := tf.Duration(); err != nil {
		return nil, err
	}

	return &Resampler{tf: tf}, nil
}

// TimeFrame returns the target timeframe.
func (r *Resampler) TimeFrame() types.TimeFrame {
	return r.tf
}

// Push consumes one 1m bar. When the bar starts a new bucket, the
// previous bucket is closed and returned with timestamp = bucket start.
func (r *Resampler) Push(bar types.Bar) (optional.Option[types.Bar], error) {
	bucket, err := r.tf.Bucket(bar.Timestamp)
	if err != nil {
		return optional.None[types.Bar](), err
	}

	completed := optional.None[types.Bar]()

	if r.started && !bucket.Equal(r.bucketStart) {
		completed = optional.Some(r.snapshot())
		r.started = false
	}

	if !r.started {
		r.started = true
		r.bucketStart = bucket
		r.symbol = bar.Symbol
		r.open = bar.Open
		r.high = bar.High
		r.low = bar.Low
	} else {
		r.high = math.Max(r.high, bar.High)
		r.low = math.Min(r.low, bar.Low)
	}

	r.close = bar.Close
	r.volume += bar.Volume

	return completed, nil
}

func (r *Resampler) snapshot() types.Bar {
	out := types.Bar{
		Timestamp: r.bucketStart,
		Open:      r.open,
		High:      r.high,
		Low:       r.low,
		Close:     r.close,
		Volume:    r.volume,
		Symbol:    r.symbol,
		TimeFrame: r.tf,
	}

	r.volume = 0

	return out
}

// Reset discards the in-progress bucket.
func (r *Resampler) Reset() {
	r.started = false
	r.volume = 0
}
