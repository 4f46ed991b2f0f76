package indicator

import (
	"sort"

	"github.com/moznion/go-optional"

	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

// Indicator is a stateful streaming operator. It consumes completed bars
// of a single timeframe in chronological order; Value returns None until
// warmup is complete.
type Indicator interface {
	// Name returns the configured instance name (e.g. "1h_ema_35").
	Name() string
	// Type returns the indicator kind.
	Type() types.IndicatorType
	// Update processes one completed bar.
	Update(bar types.Bar)
	// Value returns the current output, or None during warmup.
	Value() optional.Option[types.IndicatorValue]
	// Reset clears all internal state.
	Reset()
}

// Spec configures a single indicator instance. Zero fields take the
// per-type defaults.
type Spec struct {
	Type      types.IndicatorType `yaml:"type" json:"type" validate:"required"`
	TimeFrame types.TimeFrame     `yaml:"timeframe" json:"timeframe"`
	Period    int                 `yaml:"period" json:"period" validate:"gte=0"`
	Source    string              `yaml:"source" json:"source"`
	// Mode selects the smoothing for RSI ("wilder"/"simple") and ATR
	// ("sma"/"wilder").
	Mode         string  `yaml:"mode" json:"mode"`
	NumStd       float64 `yaml:"num_std" json:"num_std"`
	FastPeriod   int     `yaml:"fast_period" json:"fast_period"`
	SlowPeriod   int     `yaml:"slow_period" json:"slow_period"`
	SignalPeriod int     `yaml:"signal_period" json:"signal_period"`
	KPeriod      int     `yaml:"k_period" json:"k_period"`
	DPeriod      int     `yaml:"d_period" json:"d_period"`
	SmoothK      int     `yaml:"smooth_k" json:"smooth_k"`
}

func (s Spec) timeFrame() types.TimeFrame {
	if s.TimeFrame == "" {
		return types.TimeFrame1m
	}

	return s.TimeFrame
}

func (s Spec) source() string {
	if s.Source == "" {
		return "close"
	}

	return s.Source
}

func (s Spec) period(def int) int {
	if s.Period == 0 {
		return def
	}

	return s.Period
}

// Factory builds an indicator instance from a spec.
type Factory func(name string, spec Spec) (Indicator, error)

var registry = map[types.IndicatorType]Factory{
	types.IndicatorTypeSMA:        newSMA,
	types.IndicatorTypeEMA:        newEMA,
	types.IndicatorTypeRSI:        newRSI,
	types.IndicatorTypeATR:        newATR,
	types.IndicatorTypeCHOP:       newCHOP,
	types.IndicatorTypeBollinger:  newBollingerBands,
	types.IndicatorTypeMACD:       newMACD,
	types.IndicatorTypeStochastic: newStochastic,
	types.IndicatorTypeVWAP:       newVWAP,
	types.IndicatorTypeOBV:        newOBV,
}

// Register adds a custom indicator factory. Registering an existing type
// returns an error.
func Register(t types.IndicatorType, f Factory) error {
	if _, ok := registry[t]; ok {
		return errors.Newf(errors.ErrCodeIndicatorAlreadyExists, "indicator type already registered: %s", t)
	}

	registry[t] = f

	return nil
}

// New builds an indicator from its spec.
func New(name string, spec Spec) (Indicator, error) {
	factory, ok := registry[spec.Type]
	if !ok {
		available := make([]string, 0, len(registry))
		for t := range registry {
			available = append(available, string(t))
		}

		sort.Strings(available)

		return nil, errors.Newf(errors.ErrCodeUnknownIndicator,
			"unknown indicator type %q, available: %v", spec.Type, available)
	}

	return factory(name, spec)
}
