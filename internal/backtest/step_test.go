package backtest

import (
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/replaylab/replay-trading/internal/datasource"
	"github.com/replaylab/replay-trading/internal/strategy"
	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

type StepEngineTestSuite struct {
	suite.Suite
}

func TestStepEngineSuite(t *testing.T) {
	suite.Run(t, new(StepEngineTestSuite))
}

func (suite *StepEngineTestSuite) newEngine(bars []types.Bar, config Config) *StepEngine {
	provider := datasource.NewSliceProvider(bars, "TEST", types.TimeFrame1m)

	engine, err := NewStepEngine(provider, config, optional.None[strategy.Strategy](), nil)
	suite.Require().NoError(err)

	return engine
}

func (suite *StepEngineTestSuite) TestResetReturnsFirstBar() {
	bars := []types.Bar{testBar(0, 100, 101, 99, 100), testBar(1, 101, 102, 100, 101)}
	engine := suite.newEngine(bars, DefaultConfig())

	obs, err := engine.Reset()
	suite.Require().NoError(err)

	suite.Equal(bars[0], obs.Bar)
	suite.False(obs.Done)
	suite.Zero(obs.StepCount)
	suite.Equal(10_000.0, obs.Equity)
	suite.Empty(obs.Positions)
}

func (suite *StepEngineTestSuite) TestStepAppliesActionAndRewards() {
	bars := []types.Bar{
		testBar(0, 100, 100, 100, 100),
		testBar(1, 100, 100, 100, 100),
		testBar(2, 110, 110, 110, 110),
	}

	config := frictionlessConfig()
	engine := suite.newEngine(bars, config)

	_, err := engine.Reset()
	suite.Require().NoError(err)

	// Action queues a market order; it fills at the next bar's open.
	result, err := engine.Step(optional.Some(types.MarketOrder(types.SideLong)))
	suite.Require().NoError(err)
	suite.Len(result.Fills, 1)
	suite.Len(result.Observation.Positions, 1)
	suite.Zero(result.Reward)

	// A step with no action: no exit is configured, the position stays
	// open and equity is unchanged until a close, so reward stays zero.
	result, err = engine.Step(optional.None[types.Order]())
	suite.Require().NoError(err)
	suite.Zero(result.Reward)
	suite.Equal(2, result.Observation.StepCount)
}

func (suite *StepEngineTestSuite) TestStepRewardOnClose() {
	bars := []types.Bar{
		testBar(0, 100, 100, 100, 100),
		testBar(1, 100, 100, 100, 100),
		testBar(2, 104, 105.5, 103.5, 105),
	}

	config := frictionlessConfig()
	engine := suite.newEngine(bars, config)

	_, err := engine.Reset()
	suite.Require().NoError(err)

	order := types.MarketOrder(types.SideLong)
	order.TakeProfitPct = optional.Some(0.05)

	_, err = engine.Step(optional.Some(order))
	suite.Require().NoError(err)

	result, err := engine.Step(optional.None[types.Order]())
	suite.Require().NoError(err)

	// Long 10k from 100 to 105 = +500.
	suite.InDelta(500, result.Reward, 1e-9)
	suite.Len(result.Exits, 1)
	suite.Empty(result.Observation.Positions)
}

func (suite *StepEngineTestSuite) TestExhaustionAndReset() {
	bars := []types.Bar{testBar(0, 100, 100, 100, 100), testBar(1, 100, 100, 100, 100)}
	engine := suite.newEngine(bars, DefaultConfig())

	_, err := engine.Reset()
	suite.Require().NoError(err)

	result, err := engine.Step(optional.None[types.Order]())
	suite.Require().NoError(err)
	suite.False(result.Done)

	result, err = engine.Step(optional.None[types.Order]())
	suite.Require().NoError(err)
	suite.True(result.Done)

	_, err = engine.Step(optional.None[types.Order]())
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStepExhaust))

	obs, err := engine.Reset()
	suite.Require().NoError(err)
	suite.False(obs.Done)
	suite.Equal(bars[0], obs.Bar)
}
