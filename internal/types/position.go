package types

import (
	"math"
	"time"
)

// Position is an open position owned by the portfolio. The engine and
// strategies receive borrowed views only; all mutation goes through the
// portfolio.
type Position struct {
	Side       Side      `yaml:"side" json:"side"`
	EntryPrice float64   `yaml:"entry_price" json:"entry_price"`
	EntryTime  time.Time `yaml:"entry_time" json:"entry_time"`
	SizeUSD    float64   `yaml:"size_usd" json:"size_usd"`
	Symbol     string    `yaml:"symbol" json:"symbol"`
	Group      string    `yaml:"group" json:"group"`

	// Current exit levels. Zero means the rule is not configured.
	StopLoss   float64 `yaml:"stop_loss" json:"stop_loss"`
	TakeProfit float64 `yaml:"take_profit" json:"take_profit"`

	// Percentages the levels were derived from; kept so merge fills can
	// re-derive levels from the new average entry.
	StopLossPct   float64 `yaml:"stop_loss_pct" json:"stop_loss_pct"`
	TakeProfitPct float64 `yaml:"take_profit_pct" json:"take_profit_pct"`

	// Extreme prices seen since entry.
	PositionHigh float64 `yaml:"position_high" json:"position_high"`
	PositionLow  float64 `yaml:"position_low" json:"position_low"`

	BreakevenTrigger   float64 `yaml:"breakeven_trigger" json:"breakeven_trigger"`
	BreakevenLock      float64 `yaml:"breakeven_lock" json:"breakeven_lock"`
	BreakevenActivated bool    `yaml:"breakeven_activated" json:"breakeven_activated"`

	TrailPct           float64 `yaml:"trail_pct" json:"trail_pct"`
	TrailActivationPct float64 `yaml:"trail_activation_pct" json:"trail_activation_pct"`
	TrailActivated     bool    `yaml:"trail_activated" json:"trail_activated"`

	// EntryFees accumulates entry-side fees so closes can attribute the
	// proportional share to each trade.
	EntryFees float64 `yaml:"entry_fees" json:"entry_fees"`

	PartialTPPct      float64 `yaml:"partial_tp_pct" json:"partial_tp_pct"`
	PartialTPNewTPPct float64 `yaml:"partial_tp_new_tp_pct" json:"partial_tp_new_tp_pct"`
	PartialTPDone     bool    `yaml:"partial_tp_done" json:"partial_tp_done"`
}

// IsLong reports whether the position is on the long side.
func (p *Position) IsLong() bool {
	return p.Side == SideLong
}

// TrackExtremes folds a bar's range into the position extremes.
func (p *Position) TrackExtremes(bar Bar) {
	p.PositionHigh = math.Max(p.PositionHigh, bar.High)
	if p.PositionLow == 0 {
		p.PositionLow = bar.Low
	} else {
		p.PositionLow = math.Min(p.PositionLow, bar.Low)
	}
}

// FavorableExcursionPct is the best profit fraction seen since entry.
func (p *Position) FavorableExcursionPct() float64 {
	if p.EntryPrice <= 0 {
		return 0
	}

	if p.IsLong() {
		return (p.PositionHigh - p.EntryPrice) / p.EntryPrice
	}

	return (p.EntryPrice - p.PositionLow) / p.EntryPrice
}

// RecalcLevels re-derives SL/TP levels from the entry price using the
// stored percentages. Used after merge fills move the average entry.
func (p *Position) RecalcLevels() {
	if p.IsLong() {
		if p.TakeProfitPct > 0 {
			p.TakeProfit = p.EntryPrice * (1 + p.TakeProfitPct)
		}

		if p.StopLossPct > 0 {
			p.StopLoss = p.EntryPrice * (1 - p.StopLossPct)
		}

		return
	}

	if p.TakeProfitPct > 0 {
		p.TakeProfit = p.EntryPrice * (1 - p.TakeProfitPct)
	}

	if p.StopLossPct > 0 {
		p.StopLoss = p.EntryPrice * (1 + p.StopLossPct)
	}
}
