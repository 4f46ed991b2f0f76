// Package datasource provides bar providers: lazy, finite, restartable
// sequences of bars in non-decreasing timestamp order.
package datasource

import (
	"github.com/moznion/go-optional"

	"github.com/replaylab/replay-trading/internal/types"
)

// Provider yields bars in non-decreasing timestamp order. Next returns
// None when the stream is exhausted.
type Provider interface {
	// Next returns the next bar, or None at end of stream.
	Next() (optional.Option[types.Bar], error)
	// Reset rewinds the provider so a full run can be replayed.
	Reset() error
	// Symbol describes the stream's instrument.
	Symbol() string
	// TimeFrame describes the stream's bar resolution.
	TimeFrame() types.TimeFrame
}

// Counter is implemented by providers that know their bar count up
// front; the engine uses it to draw progress.
type Counter interface {
	Count() (int, error)
}

// SliceProvider serves bars from memory. It is the building block for
// tests and for fetchers that download a full range before replay.
type SliceProvider struct {
	bars      []types.Bar
	cursor    int
	symbol    string
	timeFrame types.TimeFrame
}

// NewSliceProvider wraps a bar slice. Bars must already be sorted by
// timestamp.
func NewSliceProvider(bars []types.Bar, symbol string, timeFrame types.TimeFrame) *SliceProvider {
	return &SliceProvider{bars: bars, symbol: symbol, timeFrame: timeFrame}
}

func (s *SliceProvider) Next() (optional.Option[types.Bar], error) {
	if s.cursor >= len(s.bars) {
		return optional.None[types.Bar](), nil
	}

	bar := s.bars[s.cursor]
	s.cursor++

	return optional.Some(bar), nil
}

func (s *SliceProvider) Reset() error {
	s.cursor = 0

	return nil
}

func (s *SliceProvider) Symbol() string {
	return s.symbol
}

func (s *SliceProvider) TimeFrame() types.TimeFrame {
	return s.timeFrame
}

// Count implements Counter.
func (s *SliceProvider) Count() (int, error) {
	return len(s.bars), nil
}
