package backtest

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/replaylab/replay-trading/internal/types"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) TestDefaults() {
	config := DefaultConfig()

	suite.Equal(10_000.0, config.InitialEquity)
	suite.Equal(10_000.0, config.DefaultSizeUSD)
	suite.Equal(1, config.MaxPositions)
	suite.Equal(0.0002, config.Slippage)
	suite.Equal(0.00015, config.TakerFee)
	suite.Zero(config.MakerFee)
	suite.True(config.SkipSignalOnClose)
	suite.True(config.SameDirectionOnly)
	suite.Equal(ValidationStopOnFirst, config.BarValidation)
	suite.NoError(config.Validate())
}

func (suite *ConfigTestSuite) TestYAMLOverlaysDefaults() {
	doc := `
initial_equity: 25000
max_positions: 3
skip_signal_on_close: false
indicators:
  rsi_7: {type: rsi, period: 7}
  1h_ema: {type: ema, period: 35, timeframe: 1h}
`

	config, err := ConfigFromYAML(doc)
	suite.Require().NoError(err)

	suite.Equal(25_000.0, config.InitialEquity)
	suite.Equal(3, config.MaxPositions)
	suite.False(config.SkipSignalOnClose)
	// Untouched keys keep defaults.
	suite.True(config.SameDirectionOnly)
	suite.Equal(0.0002, config.Slippage)

	suite.Equal(7, config.Indicators["rsi_7"].Period)
	suite.Equal(types.TimeFrame1h, config.Indicators["1h_ema"].TimeFrame)
}

func (suite *ConfigTestSuite) TestValidationFailsFast() {
	_, err := ConfigFromYAML("taker_fee: -0.1")
	suite.Error(err)

	_, err = ConfigFromYAML("max_positions: 0")
	suite.Error(err)

	_, err = ConfigFromYAML("max_total_exposure_usd: -5")
	suite.Error(err)

	_, err = ConfigFromYAML("bar_validation: maybe")
	suite.Error(err)

	_, err = ConfigFromYAML("not: [valid")
	suite.Error(err)
}

func (suite *ConfigTestSuite) TestForSymbolMerge() {
	size := 2_500.0
	maxPositions := 4

	config := DefaultConfig()
	config.SymbolConfigs = map[string]SymbolConfig{
		"ETH": {DefaultSizeUSD: &size, MaxPositions: &maxPositions},
	}

	merged := config.forSymbol("ETH")
	suite.Equal(2_500.0, merged.DefaultSizeUSD)
	suite.Equal(4, merged.MaxPositions)

	untouched := config.forSymbol("BTC")
	suite.Equal(10_000.0, untouched.DefaultSizeUSD)
	suite.Equal(1, untouched.MaxPositions)
}
