// Package sizing provides pluggable position sizing for the backtest
// engine. When a sizer is configured it supersedes the engine's default
// size for every order that carries no explicit size.
package sizing

import (
	"github.com/replaylab/replay-trading/internal/types"
)

// Sizer determines the quote-currency size of a new position.
type Sizer interface {
	// GetSize returns the position size in USD. stopLossPct is the
	// order's stop distance as a fraction (0 when not configured).
	GetSize(equity float64, side types.Side, price float64, symbol string, stopLossPct float64) float64
}

// Fixed always returns the same USD size. This matches the engine's
// behavior when no sizer is configured.
type Fixed struct {
	SizeUSD float64
}

// NewFixed creates a fixed-size sizer.
func NewFixed(sizeUSD float64) *Fixed {
	return &Fixed{SizeUSD: sizeUSD}
}

func (s *Fixed) GetSize(_ float64, _ types.Side, _ float64, _ string, _ float64) float64 {
	return s.SizeUSD
}

func clamp(size, minSize, maxSize float64) float64 {
	if size < minSize {
		size = minSize
	}

	if maxSize > 0 && size > maxSize {
		size = maxSize
	}

	return size
}
