package types

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MarketTestSuite struct {
	suite.Suite
}

func TestMarketSuite(t *testing.T) {
	suite.Run(t, new(MarketTestSuite))
}

func validBar() Bar {
	return Bar{
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Open:      100,
		High:      101,
		Low:       99,
		Close:     100.5,
		Volume:    12,
		TimeFrame: TimeFrame1m,
	}
}

func (suite *MarketTestSuite) TestValidateAcceptsWellFormedBar() {
	bar := validBar()
	suite.NoError(bar.Validate())
}

func (suite *MarketTestSuite) TestValidateRejectsNaN() {
	bar := validBar()
	bar.Close = math.NaN()
	suite.Error(bar.Validate())
}

func (suite *MarketTestSuite) TestValidateRejectsHighBelowClose() {
	bar := validBar()
	bar.High = 100.2
	bar.Close = 100.5
	suite.Error(bar.Validate())
}

func (suite *MarketTestSuite) TestValidateRejectsLowAboveOpen() {
	bar := validBar()
	bar.Low = 100.5
	bar.Open = 100
	suite.Error(bar.Validate())
}

func (suite *MarketTestSuite) TestValidateRejectsNegativePrice() {
	bar := validBar()
	bar.Low = -1
	suite.Error(bar.Validate())
}

func (suite *MarketTestSuite) TestSourceSelection() {
	bar := validBar()
	suite.Equal(bar.Open, bar.Source("open"))
	suite.Equal(bar.High, bar.Source("high"))
	suite.Equal(bar.Low, bar.Source("low"))
	suite.Equal(bar.Close, bar.Source("close"))
	suite.Equal(bar.Close, bar.Source("unknown"))
}

func (suite *MarketTestSuite) TestTypicalPrice() {
	bar := validBar()
	suite.InDelta((101.0+99.0+100.5)/3, bar.TypicalPrice(), 1e-12)
}

func (suite *MarketTestSuite) TestBucketIsEpochAligned() {
	ts := time.Date(2024, 3, 1, 10, 29, 0, 0, time.UTC)

	bucket, err := TimeFrame15m.Bucket(ts)
	suite.Require().NoError(err)
	suite.Equal(time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC), bucket)

	bucket, err = TimeFrame1h.Bucket(ts)
	suite.Require().NoError(err)
	suite.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), bucket)

	bucket, err = TimeFrame1d.Bucket(ts)
	suite.Require().NoError(err)
	suite.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), bucket)
}

func (suite *MarketTestSuite) TestUnsupportedTimeFrame() {
	_, err := TimeFrame("7m").Duration()
	suite.Error(err)
}
