// Package reporting builds run results and summary metrics from the
// portfolio's trade ledger.
package reporting

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/moznion/go-optional"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

// PortfolioState is the slice of portfolio data the results builder
// consumes.
type PortfolioState struct {
	InitialEquity float64
	FinalEquity   float64
	MaxDrawdown   float64
	TotalFees     float64
	Trades        []types.Trade
	Fills         []types.Fill
	EquityCurve   []types.EquitySample
}

// Results holds the complete outcome of one run.
type Results struct {
	Symbol         string  `yaml:"symbol"`
	InitialEquity  float64 `yaml:"initial_equity"`
	FinalEquity    float64 `yaml:"final_equity"`
	NetPnL         float64 `yaml:"net_pnl"`
	NetReturnPct   float64 `yaml:"net_return_pct"`
	MaxDrawdownPct float64 `yaml:"max_drawdown_pct"`

	TotalTrades   int     `yaml:"total_trades"`
	WinningTrades int     `yaml:"winning_trades"`
	LosingTrades  int     `yaml:"losing_trades"`
	WinRate       float64 `yaml:"win_rate"`
	AvgWin        float64 `yaml:"avg_win"`
	AvgLoss       float64 `yaml:"avg_loss"`
	AvgWinPct     float64 `yaml:"avg_win_pct"`
	AvgLossPct    float64 `yaml:"avg_loss_pct"`
	// ProfitFactor is +Inf when the run has no losing trades.
	ProfitFactor float64 `yaml:"profit_factor"`
	TotalFees    float64 `yaml:"total_fees"`

	Trades      []types.Trade        `yaml:"trades"`
	Fills       []types.Fill         `yaml:"fills"`
	EquityCurve []types.EquitySample `yaml:"equity_curve"`
	// ExitBreakdown counts trades per reason with _GAP variants folded in.
	ExitBreakdown map[types.ExitReason]int `yaml:"exit_breakdown"`
	Monthly       []MonthStats             `yaml:"monthly"`

	BuyHoldReturnPct optional.Option[float64] `yaml:"buy_hold_return_pct"`
	FirstPrice       optional.Option[float64] `yaml:"first_price"`
	LastPrice        optional.Option[float64] `yaml:"last_price"`
}

// Build computes all metrics from the final portfolio state.
func Build(state PortfolioState, symbol string, firstBar, lastBar optional.Option[types.Bar]) Results {
	results := Results{
		Symbol:        symbol,
		InitialEquity: state.InitialEquity,
		FinalEquity:   state.FinalEquity,
		Trades:        state.Trades,
		Fills:         state.Fills,
		EquityCurve:   state.EquityCurve,
		TotalFees:     state.TotalFees,
		ExitBreakdown: map[types.ExitReason]int{},
	}

	if firstBar.IsSome() && lastBar.IsSome() {
		first := firstBar.Unwrap().Close
		last := lastBar.Unwrap().Close
		results.FirstPrice = optional.Some(first)
		results.LastPrice = optional.Some(last)

		if first > 0 {
			results.BuyHoldReturnPct = optional.Some((last - first) / first * 100)
		}
	}

	total := len(state.Trades)
	if total == 0 {
		return results
	}

	grossProfit := 0.0
	grossLoss := 0.0
	winPctSum := 0.0
	lossPctSum := 0.0

	for _, trade := range state.Trades {
		results.ExitBreakdown[trade.Reason.Normalize()]++

		if trade.PnLUSD > 0 {
			results.WinningTrades++
			grossProfit += trade.PnLUSD
			winPctSum += trade.PnLPct
		} else {
			results.LosingTrades++
			grossLoss += math.Abs(trade.PnLUSD)
			lossPctSum += math.Abs(trade.PnLPct)
		}
	}

	results.TotalTrades = total
	results.NetPnL = state.FinalEquity - state.InitialEquity
	results.NetReturnPct = results.NetPnL / state.InitialEquity * 100
	results.MaxDrawdownPct = state.MaxDrawdown * 100
	results.WinRate = float64(results.WinningTrades) / float64(total) * 100

	if results.WinningTrades > 0 {
		results.AvgWin = grossProfit / float64(results.WinningTrades)
		results.AvgWinPct = winPctSum / float64(results.WinningTrades) * 100
	}

	if results.LosingTrades > 0 {
		results.AvgLoss = grossLoss / float64(results.LosingTrades)
		results.AvgLossPct = lossPctSum / float64(results.LosingTrades) * 100
	}

	if grossLoss > 0 {
		results.ProfitFactor = grossProfit / grossLoss
	} else {
		results.ProfitFactor = math.Inf(1)
	}

	results.Monthly = MonthlyBreakdown(state.Trades)

	return results
}

// Summary renders the human-readable report.
func (r Results) Summary() string {
	printer := message.NewPrinter(language.English)

	var b strings.Builder

	line := strings.Repeat("=", 60)

	fmt.Fprintf(&b, "%s\n", line)
	fmt.Fprintf(&b, "  Backtest Results: %s\n", orNA(r.Symbol))
	fmt.Fprintf(&b, "%s\n", line)
	printer.Fprintf(&b, "  Net PnL:          $%.2f (%+.1f%%)\n", r.NetPnL, r.NetReturnPct)
	printer.Fprintf(&b, "  Max Drawdown:     %.1f%%\n", r.MaxDrawdownPct)
	printer.Fprintf(&b, "  Total Trades:     %d\n", r.TotalTrades)
	printer.Fprintf(&b, "  Win Rate:         %.1f%%\n", r.WinRate)
	printer.Fprintf(&b, "  Avg Win:          $%.2f (%.2f%%)\n", r.AvgWin, r.AvgWinPct)
	printer.Fprintf(&b, "  Avg Loss:         $%.2f (%.2f%%)\n", r.AvgLoss, r.AvgLossPct)
	printer.Fprintf(&b, "  Profit Factor:    %.2f\n", r.ProfitFactor)
	printer.Fprintf(&b, "  Total Fees:       $%.2f\n", r.TotalFees)
	printer.Fprintf(&b, "  Initial Equity:   $%.2f\n", r.InitialEquity)
	printer.Fprintf(&b, "  Final Equity:     $%.2f\n", r.FinalEquity)

	if r.BuyHoldReturnPct.IsSome() {
		fmt.Fprintf(&b, "  %s\n", strings.Repeat("-", 56))
		printer.Fprintf(&b, "  Buy & Hold:       %+.1f%%\n", r.BuyHoldReturnPct.Unwrap())
		printer.Fprintf(&b, "  Alpha:            %+.1f%%\n", r.NetReturnPct-r.BuyHoldReturnPct.Unwrap())
	}

	if len(r.ExitBreakdown) > 0 {
		fmt.Fprintf(&b, "  %s\n", strings.Repeat("-", 56))
		fmt.Fprintf(&b, "  Exit Breakdown:\n")

		for _, reason := range sortedReasons(r.ExitBreakdown) {
			count := r.ExitBreakdown[reason]
			pct := float64(count) / float64(r.TotalTrades) * 100
			fmt.Fprintf(&b, "    %-20s %4d (%.1f%%)\n", reason, count, pct)
		}
	}

	fmt.Fprintf(&b, "%s\n", line)

	return b.String()
}

// WriteYAML serializes the results to a YAML file.
func (r Results) WriteYAML(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return errors.Wrap(errors.ErrCodeRunFailed, "failed to marshal results", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeRunFailed, "failed to write results", err)
	}

	return nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}

	return s
}
