package datasource

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/replaylab/replay-trading/internal/types"
)

// ReplayProvider wraps a provider and sleeps between bars, turning a
// historical stream into a paced feed. The sleep happens strictly in the
// producer path; the engine is unaware of it.
type ReplayProvider struct {
	inner Provider
	delay time.Duration
	first bool
}

// NewReplayProvider paces the inner provider with the given delay.
func NewReplayProvider(inner Provider, delay time.Duration) *ReplayProvider {
	return &ReplayProvider{inner: inner, delay: delay, first: true}
}

func (r *ReplayProvider) Next() (optional.Option[types.Bar], error) {
	if !r.first && r.delay > 0 {
		time.Sleep(r.delay)
	}

	r.first = false

	return r.inner.Next()
}

func (r *ReplayProvider) Reset() error {
	r.first = true

	return r.inner.Reset()
}

func (r *ReplayProvider) Symbol() string {
	return r.inner.Symbol()
}

func (r *ReplayProvider) TimeFrame() types.TimeFrame {
	return r.inner.TimeFrame()
}
