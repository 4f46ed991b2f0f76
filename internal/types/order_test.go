package types

import (
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"
)

type OrderTestSuite struct {
	suite.Suite
}

func TestOrderSuite(t *testing.T) {
	suite.Run(t, new(OrderTestSuite))
}

func (suite *OrderTestSuite) TestMarketOrderKind() {
	order := MarketOrder(SideLong)
	suite.Equal(OrderKindMarket, order.OrderKind())
	suite.False(order.IsSentinel())
}

func (suite *OrderTestSuite) TestZeroValueOrderIsMarket() {
	order := Order{Side: SideShort}
	suite.Equal(OrderKindMarket, order.OrderKind())
}

func (suite *OrderTestSuite) TestLimitOrderDefaultsToMakerFee() {
	order := LimitOrder(SideLong, 100)
	suite.Equal(OrderKindLimit, order.OrderKind())
	suite.True(order.UseMakerFee)
}

func (suite *OrderTestSuite) TestCancelSentinel() {
	order := CancelPendingLimitsOrder()
	suite.True(order.IsSentinel())
	suite.True(order.CancelPendingLimits)
}

func (suite *OrderTestSuite) TestValidateRejectsBreakevenLockAboveTrigger() {
	order := MarketOrder(SideLong)
	order.BreakevenTrigger = optional.Some(0.01)
	order.BreakevenLock = optional.Some(0.02)

	err := order.Validate()
	suite.Error(err)
	suite.Contains(err.Error(), "be_lock_pct")
}

func (suite *OrderTestSuite) TestValidateRejectsPartialFractionOutOfRange() {
	order := MarketOrder(SideLong)
	order.PartialTPPct = optional.Some(1.0)

	suite.Error(order.Validate())

	order.PartialTPPct = optional.Some(0.5)
	suite.NoError(order.Validate())
}

func (suite *OrderTestSuite) TestValidateRequiresLimitPrice() {
	order := LimitOrder(SideShort, 0)
	suite.Error(order.Validate())
}

func (suite *OrderTestSuite) TestValidateRequiresStopPrice() {
	order := StopOrder(SideLong, 0)
	suite.Error(order.Validate())
}

func (suite *OrderTestSuite) TestValidateRejectsNegativePercentages() {
	order := MarketOrder(SideLong)
	order.TakeProfitPct = optional.Some(-0.05)

	suite.Error(order.Validate())
}

func (suite *OrderTestSuite) TestPendingOrderExpiry() {
	pending := PendingOrder{Order: Order{Side: SideLong, TimeoutBars: 2}}
	suite.False(pending.Expired())

	pending.BarsElapsed = 2
	suite.True(pending.Expired())

	forever := PendingOrder{Order: Order{Side: SideLong}, BarsElapsed: 1000}
	suite.False(forever.Expired())
}

func (suite *OrderTestSuite) TestSideOpposite() {
	suite.Equal(SideShort, SideLong.Opposite())
	suite.Equal(SideLong, SideShort.Opposite())
}
