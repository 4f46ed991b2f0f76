package reporting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/replaylab/replay-trading/internal/types"
)

// MonthStats aggregates the trades that closed in one calendar month.
type MonthStats struct {
	Year        int     `yaml:"year"`
	Month       int     `yaml:"month"`
	Trades      int     `yaml:"trades"`
	Wins        int     `yaml:"wins"`
	Losses      int     `yaml:"losses"`
	GrossProfit float64 `yaml:"gross_profit"`
	GrossLoss   float64 `yaml:"gross_loss"`
	NetPnL      float64 `yaml:"net_pnl"`
	Fees        float64 `yaml:"fees"`
	MaxWin      float64 `yaml:"max_win"`
	MaxLoss     float64 `yaml:"max_loss"`
}

// WinRate is the month's win percentage.
func (m MonthStats) WinRate() float64 {
	if m.Trades == 0 {
		return 0
	}

	return float64(m.Wins) / float64(m.Trades) * 100
}

// Label renders the month as YYYY-MM.
func (m MonthStats) Label() string {
	return fmt.Sprintf("%d-%02d", m.Year, m.Month)
}

// MonthlyBreakdown groups trades by exit month (when PnL is realized)
// and returns chronologically sorted stats.
func MonthlyBreakdown(trades []types.Trade) []MonthStats {
	if len(trades) == 0 {
		return nil
	}

	type key struct {
		year  int
		month int
	}

	months := make(map[key]*MonthStats)

	for _, trade := range trades {
		exit := trade.ExitTime.UTC()
		k := key{year: exit.Year(), month: int(exit.Month())}

		stats, ok := months[k]
		if !ok {
			stats = &MonthStats{Year: k.year, Month: k.month}
			months[k] = stats
		}

		stats.Trades++
		stats.Fees += trade.Fees
		stats.NetPnL += trade.PnLUSD

		if trade.PnLUSD > 0 {
			stats.Wins++
			stats.GrossProfit += trade.PnLUSD

			if trade.PnLUSD > stats.MaxWin {
				stats.MaxWin = trade.PnLUSD
			}
		} else {
			stats.Losses++
			stats.GrossLoss += -trade.PnLUSD

			if trade.PnLUSD < stats.MaxLoss {
				stats.MaxLoss = trade.PnLUSD
			}
		}
	}

	out := make([]MonthStats, 0, len(months))
	for _, stats := range months {
		out = append(out, *stats)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}

		return out[i].Month < out[j].Month
	})

	return out
}

// FormatMonthlyTable renders the monthly breakdown as an ASCII table.
// Return % is computed on the running equity entering each month.
func FormatMonthlyTable(months []MonthStats, initialEquity float64) string {
	if len(months) == 0 {
		return "  No trades to display."
	}

	var b strings.Builder

	rule := "  " + strings.Repeat("-", 62)

	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "  %-10s %6s %6s %10s %8s %9s %9s\n",
		"Month", "Trades", "WR%", "Net PnL", "Return%", "MaxWin", "MaxLoss")
	fmt.Fprintf(&b, "%s\n", rule)

	runningEquity := initialEquity
	totalTrades := 0
	totalWins := 0
	totalPnL := 0.0

	for _, m := range months {
		returnPct := 0.0
		if runningEquity != 0 {
			returnPct = m.NetPnL / runningEquity * 100
		}

		runningEquity += m.NetPnL
		totalTrades += m.Trades
		totalWins += m.Wins
		totalPnL += m.NetPnL

		fmt.Fprintf(&b, "  %-10s %6d %5.1f%% %10.2f %7.1f%% %9.2f %9.2f\n",
			m.Label(), m.Trades, m.WinRate(), m.NetPnL, returnPct, m.MaxWin, m.MaxLoss)
	}

	fmt.Fprintf(&b, "%s\n", rule)

	totalWR := 0.0
	if totalTrades > 0 {
		totalWR = float64(totalWins) / float64(totalTrades) * 100
	}

	fmt.Fprintf(&b, "  %-10s %6d %5.1f%% %10.2f\n", "Total", totalTrades, totalWR, totalPnL)

	return b.String()
}

func sortedReasons(breakdown map[types.ExitReason]int) []types.ExitReason {
	out := make([]types.ExitReason, 0, len(breakdown))
	for reason := range breakdown {
		out = append(out, reason)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// MonthlyTable renders the results' monthly breakdown.
func (r Results) MonthlyTable() string {
	return FormatMonthlyTable(r.Monthly, r.InitialEquity)
}
