package sizing

import (
	"github.com/replaylab/replay-trading/internal/types"
)

// EquityPct sizes each position as a fraction of current equity.
type EquityPct struct {
	Pct     float64
	MinSize float64
	MaxSize float64
}

// NewEquityPct creates an equity-percentage sizer. maxSize of 0 means no cap.
func NewEquityPct(pct, minSize, maxSize float64) *EquityPct {
	return &EquityPct{Pct: pct, MinSize: minSize, MaxSize: maxSize}
}

func (s *EquityPct) GetSize(equity float64, _ types.Side, _ float64, _ string, _ float64) float64 {
	return clamp(equity*s.Pct, s.MinSize, s.MaxSize)
}

// RiskPct sizes positions so a stop-loss hit loses at most RiskPct of
// equity: size = equity * risk_pct / stop_loss_pct.
type RiskPct struct {
	Risk         float64
	MinSize      float64
	MaxSize      float64
	DefaultSLPct float64
}

// NewRiskPct creates a risk-based sizer. defaultSLPct is used when the
// order carries no stop loss.
func NewRiskPct(risk, minSize, maxSize, defaultSLPct float64) *RiskPct {
	return &RiskPct{Risk: risk, MinSize: minSize, MaxSize: maxSize, DefaultSLPct: defaultSLPct}
}

func (s *RiskPct) GetSize(equity float64, _ types.Side, _ float64, _ string, stopLossPct float64) float64 {
	sl := stopLossPct
	if sl <= 0 {
		sl = s.DefaultSLPct
	}

	if sl <= 0 {
		return clamp(s.MinSize, s.MinSize, s.MaxSize)
	}

	return clamp(equity*s.Risk/sl, s.MinSize, s.MaxSize)
}
