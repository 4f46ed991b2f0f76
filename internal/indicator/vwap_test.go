package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/replaylab/replay-trading/internal/types"
)

type VWAPTestSuite struct {
	suite.Suite
}

func TestVWAPSuite(t *testing.T) {
	suite.Run(t, new(VWAPTestSuite))
}

func (suite *VWAPTestSuite) TestRunningTypicalPriceAverage() {
	vwap, err := New("vwap", Spec{Type: types.IndicatorTypeVWAP})
	suite.Require().NoError(err)

	vwap.Update(ohlcBar(0, 10, 12, 8, 10, 2))  // typical 10, vol 2
	vwap.Update(ohlcBar(1, 10, 22, 18, 20, 1)) // typical 20, vol 1

	suite.InDelta((10*2+20*1)/3.0, scalar(&suite.Suite, vwap), 1e-12)
}

func (suite *VWAPTestSuite) TestResetsAtMidnightUTC() {
	vwap, err := New("vwap", Spec{Type: types.IndicatorTypeVWAP})
	suite.Require().NoError(err)

	lateBar := types.Bar{
		Timestamp: time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC),
		Open:      10, High: 10, Low: 10, Close: 10, Volume: 100,
	}
	vwap.Update(lateBar)
	suite.InDelta(10.0, scalar(&suite.Suite, vwap), 1e-12)

	// First bar of the new UTC day starts a fresh session and counts
	// its own volume.
	newDayBar := types.Bar{
		Timestamp: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		Open:      50, High: 50, Low: 50, Close: 50, Volume: 1,
	}
	vwap.Update(newDayBar)
	suite.InDelta(50.0, scalar(&suite.Suite, vwap), 1e-12)
}

func (suite *VWAPTestSuite) TestOBVAccumulation() {
	obv, err := New("obv", Spec{Type: types.IndicatorTypeOBV})
	suite.Require().NoError(err)

	obv.Update(closeBar(0, 10))
	suite.InDelta(0.0, scalar(&suite.Suite, obv), 1e-12)

	up := ohlcBar(1, 10, 11, 10, 11, 5)
	obv.Update(up)
	suite.InDelta(5.0, scalar(&suite.Suite, obv), 1e-12)

	down := ohlcBar(2, 11, 11, 9, 9, 3)
	obv.Update(down)
	suite.InDelta(2.0, scalar(&suite.Suite, obv), 1e-12)

	flat := ohlcBar(3, 9, 9, 9, 9, 100)
	obv.Update(flat)
	suite.InDelta(2.0, scalar(&suite.Suite, obv), 1e-12)
}
