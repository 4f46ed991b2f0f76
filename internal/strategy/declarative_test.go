package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/replaylab/replay-trading/internal/indicator"
	"github.com/replaylab/replay-trading/internal/types"
)

type DeclarativeTestSuite struct {
	suite.Suite
}

func TestDeclarativeSuite(t *testing.T) {
	suite.Run(t, new(DeclarativeTestSuite))
}

func barAt(close float64) types.Bar {
	return types.Bar{
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Open:      close, High: close, Low: close, Close: close, Volume: 1,
	}
}

func floatPtr(v float64) *float64 { return &v }

func (suite *DeclarativeTestSuite) TestConfigureFromYAML() {
	doc := `
name: trendmaster
indicators:
  ema_fast: {type: ema, period: 15, timeframe: 30m}
  ema_slow: {type: ema, period: 35, timeframe: 30m}
entry:
  long:
    conditions:
      - {type: crossover, fast: ema_fast, slow: ema_slow}
  short:
    conditions:
      - {type: crossunder, fast: ema_fast, slow: ema_slow}
exit:
  tp_pct: 0.08
  sl_pct: 0.035
`

	strat := &Declarative{}
	suite.Require().NoError(strat.Configure(doc))
	suite.Equal("trendmaster", strat.Name())
	suite.Len(strat.IndicatorSpecs(), 2)
	suite.Equal(types.TimeFrame30m, strat.IndicatorSpecs()["ema_fast"].TimeFrame)
}

func (suite *DeclarativeTestSuite) TestConfigureRejectsUnknownCondition() {
	doc := `
entry:
  long:
    conditions:
      - {type: teleports_above, fast: a, slow: b}
`

	strat := &Declarative{}
	suite.Error(strat.Configure(doc))
}

func (suite *DeclarativeTestSuite) TestConfigureRejectsBreakevenContradiction() {
	config := DeclarativeConfig{}
	config.Exit.BreakevenTrigger = floatPtr(0.01)
	config.Exit.BreakevenLock = floatPtr(0.02)

	_, err := NewDeclarative(config)
	suite.Error(err)
}

func (suite *DeclarativeTestSuite) newCrossoverStrategy() *Declarative {
	config := DeclarativeConfig{}
	config.Entry.Long.Conditions = []Condition{{Type: ConditionCrossover, Fast: "fast", Slow: "slow"}}
	config.Entry.Short.Conditions = []Condition{{Type: ConditionCrossunder, Fast: "fast", Slow: "slow"}}
	config.Exit.TakeProfitPct = floatPtr(0.08)
	config.Exit.StopLossPct = floatPtr(0.035)

	strat, err := NewDeclarative(config)
	suite.Require().NoError(err)

	return strat
}

func values(fast, slow float64) map[string]types.IndicatorValue {
	return map[string]types.IndicatorValue{
		"fast": types.ScalarValue(fast),
		"slow": types.ScalarValue(slow),
	}
}

func (suite *DeclarativeTestSuite) TestCrossoverNeedsPreviousValues() {
	strat := suite.newCrossoverStrategy()

	// First bar: no previous values, no signal even though fast > slow.
	orders, err := strat.OnBar(barAt(100), values(11, 10), nil)
	suite.Require().NoError(err)
	suite.Empty(orders)

	// No cross: fast stays above.
	orders, err = strat.OnBar(barAt(100), values(12, 10), nil)
	suite.Require().NoError(err)
	suite.Empty(orders)
}

func (suite *DeclarativeTestSuite) TestCrossoverEmitsLongWithExitFields() {
	strat := suite.newCrossoverStrategy()

	_, err := strat.OnBar(barAt(100), values(9, 10), nil)
	suite.Require().NoError(err)

	orders, err := strat.OnBar(barAt(100), values(11, 10), nil)
	suite.Require().NoError(err)
	suite.Require().Len(orders, 1)

	order := orders[0]
	suite.Equal(types.SideLong, order.Side)
	suite.Equal(types.OrderKindMarket, order.OrderKind())
	suite.InDelta(0.08, order.TakeProfitPct.Unwrap(), 1e-12)
	suite.InDelta(0.035, order.StopLossPct.Unwrap(), 1e-12)
}

func (suite *DeclarativeTestSuite) TestCrossunderEmitsShort() {
	strat := suite.newCrossoverStrategy()

	_, err := strat.OnBar(barAt(100), values(11, 10), nil)
	suite.Require().NoError(err)

	orders, err := strat.OnBar(barAt(100), values(9, 10), nil)
	suite.Require().NoError(err)
	suite.Require().Len(orders, 1)
	suite.Equal(types.SideShort, orders[0].Side)
}

func (suite *DeclarativeTestSuite) TestNoSignalWhileInPosition() {
	strat := suite.newCrossoverStrategy()

	_, err := strat.OnBar(barAt(100), values(9, 10), nil)
	suite.Require().NoError(err)

	open := []types.Position{{Side: types.SideLong, EntryPrice: 100}}

	orders, err := strat.OnBar(barAt(100), values(11, 10), open)
	suite.Require().NoError(err)
	suite.Empty(orders)
}

func (suite *DeclarativeTestSuite) TestThresholdAndCompareConditions() {
	config := DeclarativeConfig{}
	config.Entry.Long.Conditions = []Condition{
		{Type: ConditionBelowThreshold, Indicator: "rsi", Threshold: 30},
		{Type: ConditionAbove, Left: "bar.close", Right: "vwap"},
	}

	strat, err := NewDeclarative(config)
	suite.Require().NoError(err)

	indicators := map[string]types.IndicatorValue{
		"rsi":  types.ScalarValue(25),
		"vwap": types.ScalarValue(99),
	}

	orders, err := strat.OnBar(barAt(100), indicators, nil)
	suite.Require().NoError(err)
	suite.Len(orders, 1)

	// One failing condition vetoes the AND chain.
	indicators["rsi"] = types.ScalarValue(55)

	orders, err = strat.OnBar(barAt(100), indicators, nil)
	suite.Require().NoError(err)
	suite.Empty(orders)
}

func (suite *DeclarativeTestSuite) TestCrossesAboveThreshold() {
	config := DeclarativeConfig{}
	config.Entry.Long.Conditions = []Condition{
		{Type: ConditionCrossesAbove, Indicator: "rsi", Threshold: 50},
	}

	strat, err := NewDeclarative(config)
	suite.Require().NoError(err)

	_, err = strat.OnBar(barAt(100), map[string]types.IndicatorValue{"rsi": types.ScalarValue(45)}, nil)
	suite.Require().NoError(err)

	orders, err := strat.OnBar(barAt(100), map[string]types.IndicatorValue{"rsi": types.ScalarValue(55)}, nil)
	suite.Require().NoError(err)
	suite.Len(orders, 1)

	// Staying above is not a cross.
	orders, err = strat.OnBar(barAt(100), map[string]types.IndicatorValue{"rsi": types.ScalarValue(60)}, nil)
	suite.Require().NoError(err)
	suite.Empty(orders)
}

func (suite *DeclarativeTestSuite) TestRecordFieldOperand() {
	config := DeclarativeConfig{}
	config.Entry.Long.Conditions = []Condition{
		{Type: ConditionAboveThreshold, Indicator: "macd.hist", Threshold: 0},
	}

	strat, err := NewDeclarative(config)
	suite.Require().NoError(err)

	indicators := map[string]types.IndicatorValue{
		"macd": types.RecordValue(map[string]float64{"macd": 1.2, "signal": 0.8, "hist": 0.4}),
	}

	orders, err := strat.OnBar(barAt(100), indicators, nil)
	suite.Require().NoError(err)
	suite.Len(orders, 1)
}

func (suite *DeclarativeTestSuite) TestWarmupOperandVetoes() {
	config := DeclarativeConfig{}
	config.Entry.Long.Conditions = []Condition{
		{Type: ConditionAbove, Left: "missing", Right: "bar.close"},
	}

	strat, err := NewDeclarative(config)
	suite.Require().NoError(err)

	orders, err := strat.OnBar(barAt(100), map[string]types.IndicatorValue{}, nil)
	suite.Require().NoError(err)
	suite.Empty(orders)
}

func (suite *DeclarativeTestSuite) TestNumericLiteralOperand() {
	config := DeclarativeConfig{}
	config.Entry.Long.Conditions = []Condition{
		{Type: ConditionAbove, Left: "bar.close", Right: "99.5"},
	}

	strat, err := NewDeclarative(config)
	suite.Require().NoError(err)

	orders, err := strat.OnBar(barAt(100), map[string]types.IndicatorValue{}, nil)
	suite.Require().NoError(err)
	suite.Len(orders, 1)
}

func (suite *DeclarativeTestSuite) TestScaleInArmsMergeLimitOnFill() {
	config := DeclarativeConfig{}
	config.ScaleIn = ScaleInConfig{Enabled: true, DipPct: 0.002, SizePct: 0.5, TimeoutBars: 48}

	strat, err := NewDeclarative(config)
	suite.Require().NoError(err)

	fill := types.Fill{Side: types.SideLong, Price: 100, SizeUSD: 10_000, IsEntry: true}

	orders, err := strat.OnFill(fill)
	suite.Require().NoError(err)
	suite.Require().Len(orders, 1)

	order := orders[0]
	suite.Equal(types.OrderKindLimit, order.OrderKind())
	suite.True(order.MergePosition)
	suite.True(order.CancelPendingLimits)
	suite.InDelta(99.8, order.LimitPrice, 1e-9)
	suite.InDelta(5_000, order.SizeUSD.Unwrap(), 1e-9)
	suite.Equal(48, order.TimeoutBars)

	// Merge fills do not re-arm.
	merge := fill
	merge.IsMerge = true

	orders, err = strat.OnFill(merge)
	suite.Require().NoError(err)
	suite.Empty(orders)
}

func (suite *DeclarativeTestSuite) TestScaleInCanceledOnTakeProfit() {
	config := DeclarativeConfig{}
	config.ScaleIn = ScaleInConfig{Enabled: true}

	strat, err := NewDeclarative(config)
	suite.Require().NoError(err)

	orders, err := strat.OnExit(types.Fill{}, types.Trade{Reason: types.ExitReasonTakeProfitGap})
	suite.Require().NoError(err)
	suite.Require().Len(orders, 1)
	suite.True(orders[0].IsSentinel())

	orders, err = strat.OnExit(types.Fill{}, types.Trade{Reason: types.ExitReasonStopLoss})
	suite.Require().NoError(err)
	suite.Empty(orders)
}

func (suite *DeclarativeTestSuite) TestJSONSchemaExport() {
	schema, err := DeclarativeConfigSchema()
	suite.Require().NoError(err)
	suite.Contains(schema, "conditions")
	suite.Contains(schema, "indicators")
}

func (suite *DeclarativeTestSuite) TestIndicatorSpecsRoundTrip() {
	config := DeclarativeConfig{
		Indicators: map[string]indicator.Spec{
			"rsi_7": {Type: types.IndicatorTypeRSI, Period: 7},
		},
	}

	strat, err := NewDeclarative(config)
	suite.Require().NoError(err)
	suite.Equal(7, strat.IndicatorSpecs()["rsi_7"].Period)
}
