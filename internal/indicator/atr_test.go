package indicator

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/replaylab/replay-trading/internal/types"
)

type ATRTestSuite struct {
	suite.Suite
}

func TestATRSuite(t *testing.T) {
	suite.Run(t, new(ATRTestSuite))
}

func (suite *ATRTestSuite) TestSMAModeRollingMean() {
	atr, err := New("atr", Spec{Type: types.IndicatorTypeATR, Period: 2})
	suite.Require().NoError(err)

	// Bar 1: TR = high - low = 2 (no previous close).
	atr.Update(ohlcBar(0, 10, 11, 9, 10, 1))
	suite.True(atr.Value().IsNone())

	// Bar 2: TR = max(12-10, |12-10|, |10-10|) = 2. ATR = 2.
	atr.Update(ohlcBar(1, 10, 12, 10, 11, 1))
	suite.InDelta(2.0, scalar(&suite.Suite, atr), 1e-12)

	// Bar 3: prev close 11, TR = max(1, 3, 2) = 3. ATR = (2+3)/2.
	atr.Update(ohlcBar(2, 13, 14, 13, 13.5, 1))
	suite.InDelta(2.5, scalar(&suite.Suite, atr), 1e-12)
}

func (suite *ATRTestSuite) TestWilderModeRecursion() {
	atr, err := New("atr", Spec{Type: types.IndicatorTypeATR, Period: 2, Mode: ATRModeWilder})
	suite.Require().NoError(err)

	atr.Update(ohlcBar(0, 10, 11, 9, 10, 1))
	atr.Update(ohlcBar(1, 10, 12, 10, 11, 1))
	// Seeded with mean TR = 2.
	suite.InDelta(2.0, scalar(&suite.Suite, atr), 1e-12)

	// TR = 3; ATR = ((2-1)*2 + 3)/2 = 2.5.
	atr.Update(ohlcBar(2, 13, 14, 13, 13.5, 1))
	suite.InDelta(2.5, scalar(&suite.Suite, atr), 1e-12)
}

func (suite *ATRTestSuite) TestCHOPIsATROverCloseRatio() {
	chop, err := New("chop", Spec{Type: types.IndicatorTypeCHOP, Period: 2})
	suite.Require().NoError(err)

	chop.Update(ohlcBar(0, 100, 102, 98, 100, 1))
	suite.True(chop.Value().IsNone())

	// TRs: 4 and 4 -> ATR 4; close 100 -> ratio 0.04.
	chop.Update(ohlcBar(1, 100, 102, 98, 100, 1))
	suite.InDelta(0.04, scalar(&suite.Suite, chop), 1e-12)
}

func (suite *ATRTestSuite) TestRejectsUnknownMode() {
	_, err := New("atr", Spec{Type: types.IndicatorTypeATR, Mode: "magic"})
	suite.Error(err)
}
