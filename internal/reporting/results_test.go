package reporting

import (
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/replaylab/replay-trading/internal/types"
)

type ResultsTestSuite struct {
	suite.Suite
}

func TestResultsSuite(t *testing.T) {
	suite.Run(t, new(ResultsTestSuite))
}

func tradeAt(month time.Month, pnl float64, reason types.ExitReason) types.Trade {
	entry := time.Date(2024, month, 10, 10, 0, 0, 0, time.UTC)

	return types.Trade{
		EntryTime: entry,
		ExitTime:  entry.Add(90 * time.Minute),
		Side:      types.SideLong,
		PnLUSD:    pnl,
		PnLPct:    pnl / 10_000,
		Fees:      3,
		Reason:    reason,
		SizeUSD:   10_000,
	}
}

func (suite *ResultsTestSuite) TestEmptyRunKeepsEquityAndBuyHold() {
	state := PortfolioState{InitialEquity: 10_000, FinalEquity: 10_000}

	first := types.Bar{Close: 100}
	last := types.Bar{Close: 120}

	results := Build(state, "ETH", optional.Some(first), optional.Some(last))

	suite.Zero(results.TotalTrades)
	suite.Equal(10_000.0, results.FinalEquity)
	suite.InDelta(20.0, results.BuyHoldReturnPct.Unwrap(), 1e-9)
}

func (suite *ResultsTestSuite) TestMetricsComputation() {
	trades := []types.Trade{
		tradeAt(time.March, 400, types.ExitReasonTakeProfit),
		tradeAt(time.March, -200, types.ExitReasonStopLoss),
		tradeAt(time.April, 300, types.ExitReasonTakeProfitGap),
	}

	state := PortfolioState{
		InitialEquity: 10_000,
		FinalEquity:   10_491,
		MaxDrawdown:   0.02,
		TotalFees:     9,
		Trades:        trades,
	}

	results := Build(state, "ETH", optional.None[types.Bar](), optional.None[types.Bar]())

	suite.Equal(3, results.TotalTrades)
	suite.Equal(2, results.WinningTrades)
	suite.Equal(1, results.LosingTrades)
	suite.InDelta(66.666, results.WinRate, 0.01)
	suite.InDelta(350, results.AvgWin, 1e-9)
	suite.InDelta(200, results.AvgLoss, 1e-9)
	suite.InDelta(700.0/200.0, results.ProfitFactor, 1e-9)
	suite.InDelta(2.0, results.MaxDrawdownPct, 1e-9)
	suite.InDelta(491, results.NetPnL, 1e-9)

	// Gap variants fold into their base reason.
	suite.Equal(2, results.ExitBreakdown[types.ExitReasonTakeProfit])
	suite.Equal(1, results.ExitBreakdown[types.ExitReasonStopLoss])

	suite.Len(results.Monthly, 2)
	suite.Equal("2024-03", results.Monthly[0].Label())
	suite.InDelta(200, results.Monthly[0].NetPnL, 1e-9)
}

func (suite *ResultsTestSuite) TestProfitFactorInfinityWithoutLosses() {
	trades := []types.Trade{tradeAt(time.March, 400, types.ExitReasonTakeProfit)}

	state := PortfolioState{InitialEquity: 10_000, FinalEquity: 10_400, Trades: trades}
	results := Build(state, "", optional.None[types.Bar](), optional.None[types.Bar]())

	suite.True(math.IsInf(results.ProfitFactor, 1))
}

func (suite *ResultsTestSuite) TestSummaryRenders() {
	trades := []types.Trade{
		tradeAt(time.March, 400, types.ExitReasonTakeProfit),
		tradeAt(time.March, -200, types.ExitReasonStopLoss),
	}

	state := PortfolioState{InitialEquity: 10_000, FinalEquity: 10_200, Trades: trades}
	results := Build(state, "ETHUSDT", optional.Some(types.Bar{Close: 100}), optional.Some(types.Bar{Close: 101}))

	summary := results.Summary()
	suite.Contains(summary, "ETHUSDT")
	suite.Contains(summary, "Exit Breakdown")
	suite.Contains(summary, "Buy & Hold")

	table := results.MonthlyTable()
	suite.Contains(table, "2024-03")
	suite.Contains(table, "Total")
}

func (suite *ResultsTestSuite) TestMonthlyTableEmpty() {
	suite.Contains(FormatMonthlyTable(nil, 10_000), "No trades")
}

func (suite *ResultsTestSuite) TestMultiResultsSplitBySymbol() {
	ethTrade := tradeAt(time.March, 400, types.ExitReasonTakeProfit)
	ethTrade.Symbol = "ETH"

	btcTrade := tradeAt(time.April, -100, types.ExitReasonStopLoss)
	btcTrade.Symbol = "BTC"

	state := PortfolioState{
		InitialEquity: 10_000,
		FinalEquity:   10_300,
		Trades:        []types.Trade{ethTrade, btcTrade},
		Fills: []types.Fill{
			{Symbol: "ETH", Fees: 2},
			{Symbol: "BTC", Fees: 1},
		},
	}

	firstBars := map[string]optional.Option[types.Bar]{
		"ETH": optional.Some(types.Bar{Close: 100}),
		"BTC": optional.Some(types.Bar{Close: 50_000}),
	}
	lastBars := map[string]optional.Option[types.Bar]{
		"ETH": optional.Some(types.Bar{Close: 110}),
		"BTC": optional.Some(types.Bar{Close: 49_000}),
	}

	results := BuildMulti(state, firstBars, lastBars)

	suite.Equal(2, results.Combined.TotalTrades)
	suite.Equal(1, results.PerSymbol["ETH"].TotalTrades)
	suite.Equal(1, results.PerSymbol["BTC"].TotalTrades)
	suite.InDelta(400, results.PerSymbol["ETH"].Trades[0].PnLUSD, 1e-9)
	suite.Contains(results.Summary(), "PORTFOLIO")
}
