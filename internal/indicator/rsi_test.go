package indicator

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/replaylab/replay-trading/internal/types"
)

type RSITestSuite struct {
	suite.Suite
}

func TestRSISuite(t *testing.T) {
	suite.Run(t, new(RSITestSuite))
}

func (suite *RSITestSuite) TestSimpleModeAllGainsIs100() {
	rsi, err := New("rsi", Spec{Type: types.IndicatorTypeRSI, Period: 3, Mode: RSIModeSimple})
	suite.Require().NoError(err)

	for i, close := range []float64{1, 2, 3, 4} {
		rsi.Update(closeBar(i, close))
	}

	suite.InDelta(100.0, scalar(&suite.Suite, rsi), 1e-12)
}

func (suite *RSITestSuite) TestSimpleModeMixedMoves() {
	rsi, err := New("rsi", Spec{Type: types.IndicatorTypeRSI, Period: 2, Mode: RSIModeSimple})
	suite.Require().NoError(err)

	// Deltas: +2, -1 -> avg gain 1, avg loss 0.5 -> RS 2 -> RSI 66.67.
	rsi.Update(closeBar(0, 10))
	rsi.Update(closeBar(1, 12))
	rsi.Update(closeBar(2, 11))

	suite.InDelta(100-100.0/3, scalar(&suite.Suite, rsi), 1e-9)
}

func (suite *RSITestSuite) TestWilderModeWarmup() {
	rsi, err := New("rsi", Spec{Type: types.IndicatorTypeRSI, Period: 5})
	suite.Require().NoError(err)

	closes := []float64{10, 11, 10.5, 11.5, 12}
	for i, close := range closes {
		rsi.Update(closeBar(i, close))
	}

	// 4 deltas processed, period 5: ready at count >= period-1.
	value := rsi.Value()
	suite.True(value.IsSome())

	out, _ := value.Unwrap().Scalar()
	suite.Greater(out, 50.0)
	suite.LessOrEqual(out, 100.0)
}

func (suite *RSITestSuite) TestWilderSmoothingDecaysOldMoves() {
	rsi, err := New("rsi", Spec{Type: types.IndicatorTypeRSI, Period: 3})
	suite.Require().NoError(err)

	rsi.Update(closeBar(0, 100))
	rsi.Update(closeBar(1, 110))

	for i := 2; i < 20; i++ {
		rsi.Update(closeBar(i, 110-float64(i)))
	}

	out := scalar(&suite.Suite, rsi)
	suite.Less(out, 10.0)
}

func (suite *RSITestSuite) TestRejectsUnknownMode() {
	_, err := New("rsi", Spec{Type: types.IndicatorTypeRSI, Mode: "magic"})
	suite.Error(err)
}
