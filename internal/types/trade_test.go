package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type TradeTestSuite struct {
	suite.Suite
}

func TestTradeSuite(t *testing.T) {
	suite.Run(t, new(TradeTestSuite))
}

func (suite *TradeTestSuite) TestGrossPnLLong() {
	// 10000 USD notional, +2% move.
	pnl := GrossPnL(SideLong, 100, 102, 10_000)
	suite.InDelta(200, pnl, 1e-9)
}

func (suite *TradeTestSuite) TestGrossPnLShort() {
	pnl := GrossPnL(SideShort, 100, 102, 10_000)
	suite.InDelta(-200, pnl, 1e-9)

	pnl = GrossPnL(SideShort, 100, 95, 10_000)
	suite.InDelta(500, pnl, 1e-9)
}

func (suite *TradeTestSuite) TestGrossPnLZeroEntry() {
	suite.Zero(GrossPnL(SideLong, 0, 100, 10_000))
}

func (suite *TradeTestSuite) TestExitReasonGapNormalization() {
	suite.True(ExitReasonStopLossGap.IsGap())
	suite.False(ExitReasonStopLoss.IsGap())
	suite.Equal(ExitReasonStopLoss, ExitReasonStopLossGap.Normalize())
	suite.Equal(ExitReasonTakeProfit, ExitReasonTakeProfitGap.Normalize())
	suite.Equal(ExitReasonSignal, ExitReasonSignal.Normalize())
}

func (suite *TradeTestSuite) TestHoldingTime() {
	trade := Trade{
		EntryTime: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		ExitTime:  time.Date(2024, 3, 1, 11, 30, 0, 0, time.UTC),
	}
	suite.Equal(90*time.Minute, trade.HoldingTime())
}

func (suite *TradeTestSuite) TestPositionExtremesAndExcursion() {
	pos := Position{Side: SideLong, EntryPrice: 100, PositionHigh: 100, PositionLow: 100}

	pos.TrackExtremes(Bar{High: 103, Low: 99})
	suite.Equal(103.0, pos.PositionHigh)
	suite.Equal(99.0, pos.PositionLow)
	suite.InDelta(0.03, pos.FavorableExcursionPct(), 1e-12)

	short := Position{Side: SideShort, EntryPrice: 100, PositionHigh: 100, PositionLow: 100}
	short.TrackExtremes(Bar{High: 101, Low: 96})
	suite.InDelta(0.04, short.FavorableExcursionPct(), 1e-12)
}

func (suite *TradeTestSuite) TestRecalcLevels() {
	pos := Position{Side: SideLong, EntryPrice: 200, TakeProfitPct: 0.05, StopLossPct: 0.02}
	pos.RecalcLevels()
	suite.InDelta(210, pos.TakeProfit, 1e-9)
	suite.InDelta(196, pos.StopLoss, 1e-9)

	short := Position{Side: SideShort, EntryPrice: 200, TakeProfitPct: 0.05, StopLossPct: 0.02}
	short.RecalcLevels()
	suite.InDelta(190, short.TakeProfit, 1e-9)
	suite.InDelta(204, short.StopLoss, 1e-9)
}
