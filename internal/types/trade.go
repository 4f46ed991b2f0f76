package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExitReason is the closed set of reasons a position (or part of one) can
// close. The _GAP variants mean the bar opened already beyond the trigger
// and the fill used the open price.
type ExitReason string

const (
	ExitReasonStopLoss        ExitReason = "STOP_LOSS"
	ExitReasonStopLossGap     ExitReason = "STOP_LOSS_GAP"
	ExitReasonTakeProfit      ExitReason = "TAKE_PROFIT"
	ExitReasonTakeProfitGap   ExitReason = "TAKE_PROFIT_GAP"
	ExitReasonBreakeven       ExitReason = "BREAKEVEN"
	ExitReasonBreakevenGap    ExitReason = "BREAKEVEN_GAP"
	ExitReasonTrailingStop    ExitReason = "TRAILING_STOP"
	ExitReasonTrailingStopGap ExitReason = "TRAILING_STOP_GAP"
	ExitReasonPartialTP       ExitReason = "PARTIAL_TP"
	ExitReasonSignal          ExitReason = "SIGNAL"
)

// IsGap reports whether the reason is a gap-fill variant.
func (r ExitReason) IsGap() bool {
	return len(r) > 4 && r[len(r)-4:] == "_GAP"
}

// Normalize strips the _GAP suffix for breakdown reporting.
func (r ExitReason) Normalize() ExitReason {
	if r.IsGap() {
		return r[:len(r)-4]
	}

	return r
}

// Fill is an immutable record of one executed order side. Price is already
// slippage-adjusted. Reason is empty for entries.
type Fill struct {
	ID           string     `yaml:"id" json:"id" csv:"id"`
	Timestamp    time.Time  `yaml:"timestamp" json:"timestamp" csv:"timestamp"`
	Side         Side       `yaml:"side" json:"side" csv:"side"`
	Price        float64    `yaml:"price" json:"price" csv:"price"`
	SizeUSD      float64    `yaml:"size_usd" json:"size_usd" csv:"size_usd"`
	Symbol       string     `yaml:"symbol" json:"symbol" csv:"symbol"`
	Fees         float64    `yaml:"fees" json:"fees" csv:"fees"`
	SlippageCost float64    `yaml:"slippage_cost" json:"slippage_cost" csv:"slippage_cost"`
	IsEntry      bool       `yaml:"is_entry" json:"is_entry" csv:"is_entry"`
	IsMerge      bool       `yaml:"is_merge" json:"is_merge" csv:"is_merge"`
	Reason       ExitReason `yaml:"reason" json:"reason" csv:"reason"`
}

// Trade is an immutable closed round-trip (or partial close).
type Trade struct {
	ID         string     `yaml:"id" json:"id" csv:"id"`
	EntryTime  time.Time  `yaml:"entry_time" json:"entry_time" csv:"entry_time"`
	ExitTime   time.Time  `yaml:"exit_time" json:"exit_time" csv:"exit_time"`
	Side       Side       `yaml:"side" json:"side" csv:"side"`
	EntryPrice float64    `yaml:"entry_price" json:"entry_price" csv:"entry_price"`
	ExitPrice  float64    `yaml:"exit_price" json:"exit_price" csv:"exit_price"`
	SizeUSD    float64    `yaml:"size_usd" json:"size_usd" csv:"size_usd"`
	PnLUSD     float64    `yaml:"pnl_usd" json:"pnl_usd" csv:"pnl_usd"`
	PnLPct     float64    `yaml:"pnl_pct" json:"pnl_pct" csv:"pnl_pct"`
	Fees       float64    `yaml:"fees" json:"fees" csv:"fees"`
	Reason     ExitReason `yaml:"reason" json:"reason" csv:"reason"`
	Symbol     string     `yaml:"symbol" json:"symbol" csv:"symbol"`
	IsPartial  bool       `yaml:"is_partial" json:"is_partial" csv:"is_partial"`
	Group      string     `yaml:"group" json:"group" csv:"group"`
}

// HoldingTime is the trade duration.
func (t Trade) HoldingTime() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

// GrossPnL computes size * directional return on decimals, before fees.
func GrossPnL(side Side, entry, exit, sizeUSD float64) float64 {
	if entry == 0 {
		return 0
	}

	entryDec := decimal.NewFromFloat(entry)
	exitDec := decimal.NewFromFloat(exit)
	sizeDec := decimal.NewFromFloat(sizeUSD)

	move := exitDec.Sub(entryDec)
	if side == SideShort {
		move = entryDec.Sub(exitDec)
	}

	pnl, _ := sizeDec.Mul(move).Div(entryDec).Float64()

	return pnl
}

// EquitySample is one point of the equity curve, recorded after each
// close.
type EquitySample struct {
	Timestamp time.Time `yaml:"timestamp" json:"timestamp" csv:"timestamp"`
	Equity    float64   `yaml:"equity" json:"equity" csv:"equity"`
}
