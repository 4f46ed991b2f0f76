package backtest

import (
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/replaylab/replay-trading/internal/indicator"
	"github.com/replaylab/replay-trading/internal/sizing"
	"github.com/replaylab/replay-trading/pkg/errors"
)

// ValidationPolicy selects how malformed bars are handled.
type ValidationPolicy string

const (
	// ValidationStopOnFirst aborts the run on the first malformed bar.
	ValidationStopOnFirst ValidationPolicy = "stop_on_first"
	// ValidationFilterAndWarn drops malformed bars and logs a warning.
	ValidationFilterAndWarn ValidationPolicy = "filter_and_warn"
)

// Config holds every engine knob. Zero-value construction goes through
// DefaultConfig; YAML documents are overlaid on the defaults so omitted
// keys keep their default values.
type Config struct {
	InitialEquity  float64 `yaml:"initial_equity" validate:"gt=0"`
	DefaultSizeUSD float64 `yaml:"default_size_usd" validate:"gt=0"`
	MaxPositions   int     `yaml:"max_positions" validate:"gte=1"`

	Slippage float64 `yaml:"slippage" validate:"gte=0"`
	TakerFee float64 `yaml:"taker_fee" validate:"gte=0"`
	MakerFee float64 `yaml:"maker_fee" validate:"gte=0"`

	Indicators map[string]indicator.Spec `yaml:"indicators"`

	SkipSignalOnClose bool `yaml:"skip_signal_on_close"`
	SameDirectionOnly bool `yaml:"same_direction_only"`

	BarValidation ValidationPolicy `yaml:"bar_validation" validate:"oneof=stop_on_first filter_and_warn"`

	// Progress draws a progress bar when the provider can count its bars.
	Progress bool `yaml:"progress"`

	// StrategyConfig is passed verbatim to Strategy.Configure.
	StrategyConfig string `yaml:"strategy_config"`

	// Multi-asset only.
	MaxTotalExposureUSD *float64                `yaml:"max_total_exposure_usd"`
	SymbolConfigs       map[string]SymbolConfig `yaml:"symbol_configs"`

	// Sizer supersedes DefaultSizeUSD when present. Not a YAML key; wire
	// it programmatically.
	Sizer sizing.Sizer `yaml:"-"`
}

// SymbolConfig overrides per-symbol knobs in the multi-asset engine.
type SymbolConfig struct {
	DefaultSizeUSD *float64                  `yaml:"default_size_usd"`
	MaxPositions   *int                      `yaml:"max_positions"`
	Indicators     map[string]indicator.Spec `yaml:"indicators"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		InitialEquity:     10_000,
		DefaultSizeUSD:    10_000,
		MaxPositions:      1,
		Slippage:          0.0002,
		TakerFee:          0.00015,
		MakerFee:          0,
		SkipSignalOnClose: true,
		SameDirectionOnly: true,
		BarValidation:     ValidationStopOnFirst,
	}
}

// ConfigFromYAML overlays a YAML document on the defaults.
func ConfigFromYAML(doc string) (Config, error) {
	config := DefaultConfig()

	if err := yaml.Unmarshal([]byte(doc), &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse engine config", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate fails fast with a descriptive message on contradictory or
// out-of-range settings.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid engine config", err)
	}

	if c.MaxTotalExposureUSD != nil && *c.MaxTotalExposureUSD <= 0 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"max_total_exposure_usd must be positive, got %f", *c.MaxTotalExposureUSD)
	}

	return nil
}

// forSymbol merges a per-symbol override onto the base config.
func (c Config) forSymbol(symbol string) Config {
	merged := c

	override, ok := c.SymbolConfigs[symbol]
	if !ok {
		return merged
	}

	if override.DefaultSizeUSD != nil {
		merged.DefaultSizeUSD = *override.DefaultSizeUSD
	}

	if override.MaxPositions != nil {
		merged.MaxPositions = *override.MaxPositions
	}

	if override.Indicators != nil {
		merged.Indicators = override.Indicators
	}

	return merged
}
