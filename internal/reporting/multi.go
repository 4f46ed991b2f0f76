package reporting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/moznion/go-optional"

	"github.com/replaylab/replay-trading/internal/types"
)

// MultiResults is the outcome of a multi-asset run: combined portfolio
// metrics plus a per-symbol split of the shared trade ledger.
type MultiResults struct {
	Combined  Results            `yaml:"combined"`
	PerSymbol map[string]Results `yaml:"per_symbol"`
}

// BuildMulti computes combined and per-symbol results from a shared
// portfolio. Per-symbol drawdown is not recomputed: drawdown is a
// portfolio-wide property, so symbol splits report trades and PnL only.
func BuildMulti(state PortfolioState, firstBars, lastBars map[string]optional.Option[types.Bar]) MultiResults {
	combined := Build(state, "PORTFOLIO", optional.None[types.Bar](), optional.None[types.Bar]())

	perSymbol := make(map[string]Results)

	symbols := make([]string, 0, len(firstBars))
	for symbol := range firstBars {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	for _, symbol := range symbols {
		symbolState := PortfolioState{
			InitialEquity: state.InitialEquity,
			Trades:        filterTrades(state.Trades, symbol),
			Fills:         filterFills(state.Fills, symbol),
		}

		symbolPnL := 0.0
		for _, trade := range symbolState.Trades {
			symbolPnL += trade.PnLUSD
		}

		for _, fill := range symbolState.Fills {
			symbolState.TotalFees += fill.Fees
		}

		symbolState.FinalEquity = state.InitialEquity + symbolPnL - symbolState.TotalFees

		perSymbol[symbol] = Build(symbolState, symbol, firstBars[symbol], lastBars[symbol])
	}

	return MultiResults{Combined: combined, PerSymbol: perSymbol}
}

// Summary renders the combined report followed by a per-symbol table.
func (m MultiResults) Summary() string {
	var b strings.Builder

	b.WriteString(m.Combined.Summary())

	if len(m.PerSymbol) == 0 {
		return b.String()
	}

	symbols := make([]string, 0, len(m.PerSymbol))
	for symbol := range m.PerSymbol {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	fmt.Fprintf(&b, "  %-10s %8s %12s %8s\n", "Symbol", "Trades", "Net PnL", "WR%")

	for _, symbol := range symbols {
		r := m.PerSymbol[symbol]
		fmt.Fprintf(&b, "  %-10s %8d %12.2f %7.1f%%\n", symbol, r.TotalTrades, r.NetPnL, r.WinRate)
	}

	return b.String()
}

func filterTrades(trades []types.Trade, symbol string) []types.Trade {
	out := make([]types.Trade, 0, len(trades))

	for _, trade := range trades {
		if trade.Symbol == symbol {
			out = append(out, trade)
		}
	}

	return out
}

func filterFills(fills []types.Fill, symbol string) []types.Fill {
	out := make([]types.Fill, 0, len(fills))

	for _, fill := range fills {
		if fill.Symbol == symbol {
			out = append(out, fill)
		}
	}

	return out
}
