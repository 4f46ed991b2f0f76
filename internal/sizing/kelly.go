package sizing

import (
	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

// Kelly sizes positions with a fractional Kelly criterion derived from
// expected win rate and average win/loss magnitudes.
type Kelly struct {
	WinRate      float64
	AvgWin       float64
	AvgLoss      float64
	Fraction     float64
	MinSize      float64
	MaxSize      float64
	MaxEquityPct float64
}

// NewKelly creates a Kelly sizer. fraction scales the raw Kelly
// allocation (0.25 = quarter Kelly); maxEquityPct caps the allocation.
func NewKelly(winRate, avgWin, avgLoss, fraction, minSize, maxSize, maxEquityPct float64) (*Kelly, error) {
	if winRate <= 0 || winRate >= 1 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "win rate must be in (0,1), got %f", winRate)
	}

	if avgWin <= 0 || avgLoss <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "avg win/loss must be positive, got %f/%f", avgWin, avgLoss)
	}

	if fraction <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "fraction must be positive, got %f", fraction)
	}

	return &Kelly{
		WinRate:      winRate,
		AvgWin:       avgWin,
		AvgLoss:      avgLoss,
		Fraction:     fraction,
		MinSize:      minSize,
		MaxSize:      maxSize,
		MaxEquityPct: maxEquityPct,
	}, nil
}

// KellyFraction is the raw Kelly fraction before the fractional
// multiplier: f* = win_rate - (1-win_rate)/payoff_ratio.
func (s *Kelly) KellyFraction() float64 {
	payoff := s.AvgWin / s.AvgLoss

	return s.WinRate - (1-s.WinRate)/payoff
}

func (s *Kelly) GetSize(equity float64, _ types.Side, _ float64, _ string, _ float64) float64 {
	f := s.KellyFraction()

	// Negative Kelly means no edge.
	if f <= 0 {
		return s.MinSize
	}

	alloc := f * s.Fraction
	if s.MaxEquityPct > 0 && alloc > s.MaxEquityPct {
		alloc = s.MaxEquityPct
	}

	return clamp(equity*alloc, s.MinSize, s.MaxSize)
}
