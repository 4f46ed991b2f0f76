package strategy

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/replaylab/replay-trading/internal/indicator"
	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

// Condition kinds understood by the declarative strategy.
const (
	ConditionCrossover      = "crossover"
	ConditionCrossunder     = "crossunder"
	ConditionAbove          = "above"
	ConditionBelow          = "below"
	ConditionAboveThreshold = "above_threshold"
	ConditionBelowThreshold = "below_threshold"
	ConditionCrossesAbove   = "crosses_above"
	ConditionCrossesBelow   = "crosses_below"
)

// Condition is one entry rule. Operands name an indicator (dotted for
// record fields, e.g. "macd.hist"), a numeric literal, or a bar pseudo
// field ("bar.close", "bar.open", "bar.high", "bar.low").
type Condition struct {
	Type      string  `yaml:"type" json:"type" jsonschema:"enum=crossover,enum=crossunder,enum=above,enum=below,enum=above_threshold,enum=below_threshold,enum=crosses_above,enum=crosses_below"`
	Fast      string  `yaml:"fast,omitempty" json:"fast,omitempty"`
	Slow      string  `yaml:"slow,omitempty" json:"slow,omitempty"`
	Left      string  `yaml:"left,omitempty" json:"left,omitempty"`
	Right     string  `yaml:"right,omitempty" json:"right,omitempty"`
	Indicator string  `yaml:"indicator,omitempty" json:"indicator,omitempty"`
	Threshold float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`
}

// EntryRules is an AND-ed condition list.
type EntryRules struct {
	Conditions []Condition `yaml:"conditions" json:"conditions"`
}

// ExitConfig carries the percentage exit fields forwarded to every
// emitted order. Nil fields stay unset on the order.
type ExitConfig struct {
	TakeProfitPct      *float64 `yaml:"tp_pct,omitempty" json:"tp_pct,omitempty"`
	StopLossPct        *float64 `yaml:"sl_pct,omitempty" json:"sl_pct,omitempty"`
	BreakevenTrigger   *float64 `yaml:"be_trigger_pct,omitempty" json:"be_trigger_pct,omitempty"`
	BreakevenLock      *float64 `yaml:"be_lock_pct,omitempty" json:"be_lock_pct,omitempty"`
	TrailPct           *float64 `yaml:"trail_pct,omitempty" json:"trail_pct,omitempty"`
	TrailActivationPct *float64 `yaml:"trail_activation_pct,omitempty" json:"trail_activation_pct,omitempty"`
	PartialTPPct       *float64 `yaml:"partial_tp_pct,omitempty" json:"partial_tp_pct,omitempty"`
	PartialTPNewTPPct  *float64 `yaml:"partial_tp_new_tp_pct,omitempty" json:"partial_tp_new_tp_pct,omitempty"`
}

// ScaleInConfig arms a merge limit order below (above for shorts) every
// entry fill.
type ScaleInConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	DipPct      float64 `yaml:"dip_pct" json:"dip_pct"`
	SizePct     float64 `yaml:"size_pct" json:"size_pct"`
	TimeoutBars int     `yaml:"timeout_bars" json:"timeout_bars"`
}

// DeclarativeConfig is the full no-code strategy document.
type DeclarativeConfig struct {
	Name       string                    `yaml:"name" json:"name"`
	Indicators map[string]indicator.Spec `yaml:"indicators" json:"indicators"`
	Entry      struct {
		Long  EntryRules `yaml:"long" json:"long"`
		Short EntryRules `yaml:"short" json:"short"`
	} `yaml:"entry" json:"entry"`
	Exit    ExitConfig    `yaml:"exit" json:"exit"`
	ScaleIn ScaleInConfig `yaml:"scale_in" json:"scale_in"`
}

// Validate fails fast on unknown condition kinds and contradictory exit
// percentages.
func (c *DeclarativeConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeStrategyConfig, "invalid declarative config", err)
	}

	for _, condition := range append(append([]Condition{}, c.Entry.Long.Conditions...), c.Entry.Short.Conditions...) {
		switch condition.Type {
		case ConditionCrossover, ConditionCrossunder, ConditionAbove, ConditionBelow,
			ConditionAboveThreshold, ConditionBelowThreshold, ConditionCrossesAbove, ConditionCrossesBelow:
		default:
			return errors.Newf(errors.ErrCodeUnknownCondition, "unknown condition type: %q", condition.Type)
		}
	}

	if c.Exit.BreakevenTrigger != nil && c.Exit.BreakevenLock != nil &&
		*c.Exit.BreakevenLock >= *c.Exit.BreakevenTrigger {
		return errors.Newf(errors.ErrCodeStrategyConfig,
			"be_lock_pct %f must be below be_trigger_pct %f", *c.Exit.BreakevenLock, *c.Exit.BreakevenTrigger)
	}

	return nil
}

// Declarative interprets a condition tree over the standard strategy
// interface: AND-ed entry conditions per side, percentage exits
// forwarded to orders, and an optional scale-in merge limit per fill.
type Declarative struct {
	Base

	config     DeclarativeConfig
	prevValues map[string]types.IndicatorValue
}

// NewDeclarative builds a strategy from an already-parsed config.
func NewDeclarative(config DeclarativeConfig) (*Declarative, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Declarative{config: config}, nil
}

// Name implements Strategy.
func (d *Declarative) Name() string {
	if d.config.Name != "" {
		return d.config.Name
	}

	return "declarative"
}

// Configure implements Strategy: a non-empty document replaces the
// parsed config.
func (d *Declarative) Configure(doc string) error {
	if strings.TrimSpace(doc) == "" {
		return nil
	}

	var config DeclarativeConfig
	if err := yaml.Unmarshal([]byte(doc), &config); err != nil {
		return errors.Wrap(errors.ErrCodeStrategyConfig, "failed to parse declarative config", err)
	}

	if err := config.Validate(); err != nil {
		return err
	}

	d.config = config

	return nil
}

// IndicatorSpecs returns the indicator section for the engine config.
func (d *Declarative) IndicatorSpecs() map[string]indicator.Spec {
	return d.config.Indicators
}

// OnBar implements Strategy.
func (d *Declarative) OnBar(bar types.Bar, indicators map[string]types.IndicatorValue, positions []types.Position) ([]types.Order, error) {
	defer func() {
		d.prevValues = indicators
	}()

	if len(positions) > 0 {
		return nil, nil
	}

	if d.evaluateAll(d.config.Entry.Long.Conditions, bar, indicators) {
		return []types.Order{d.buildOrder(types.SideLong)}, nil
	}

	if d.evaluateAll(d.config.Entry.Short.Conditions, bar, indicators) {
		return []types.Order{d.buildOrder(types.SideShort)}, nil
	}

	return nil, nil
}

// OnFill arms the scale-in merge limit on every fresh entry fill.
func (d *Declarative) OnFill(fill types.Fill) ([]types.Order, error) {
	if !fill.IsEntry || fill.IsMerge || !d.config.ScaleIn.Enabled {
		return nil, nil
	}

	dip := d.config.ScaleIn.DipPct
	if dip == 0 {
		dip = 0.002
	}

	sizePct := d.config.ScaleIn.SizePct
	if sizePct == 0 {
		sizePct = 0.5
	}

	timeout := d.config.ScaleIn.TimeoutBars
	if timeout == 0 {
		timeout = 48
	}

	limitPrice := fill.Price * (1 - dip)
	if fill.Side == types.SideShort {
		limitPrice = fill.Price * (1 + dip)
	}

	order := types.LimitOrder(fill.Side, limitPrice)
	order.Symbol = fill.Symbol
	order.SizeUSD = optional.Some(fill.SizeUSD * sizePct)
	order.TimeoutBars = timeout
	order.MergePosition = true
	order.CancelPendingLimits = true

	return []types.Order{order}, nil
}

// OnExit cancels a pending scale-in once the position take-profits.
func (d *Declarative) OnExit(_ types.Fill, trade types.Trade) ([]types.Order, error) {
	if d.config.ScaleIn.Enabled && trade.Reason.Normalize() == types.ExitReasonTakeProfit {
		return []types.Order{types.CancelPendingLimitsOrder()}, nil
	}

	return nil, nil
}

func (d *Declarative) buildOrder(side types.Side) types.Order {
	order := types.MarketOrder(side)
	exit := d.config.Exit

	order.TakeProfitPct = fromPtr(exit.TakeProfitPct)
	order.StopLossPct = fromPtr(exit.StopLossPct)
	order.BreakevenTrigger = fromPtr(exit.BreakevenTrigger)
	order.BreakevenLock = fromPtr(exit.BreakevenLock)
	order.TrailPct = fromPtr(exit.TrailPct)
	order.TrailActivationPct = fromPtr(exit.TrailActivationPct)
	order.PartialTPPct = fromPtr(exit.PartialTPPct)
	order.PartialTPNewTPPct = fromPtr(exit.PartialTPNewTPPct)

	return order
}

func fromPtr(v *float64) optional.Option[float64] {
	if v == nil {
		return optional.None[float64]()
	}

	return optional.Some(*v)
}

func (d *Declarative) evaluateAll(conditions []Condition, bar types.Bar, indicators map[string]types.IndicatorValue) bool {
	if len(conditions) == 0 {
		return false
	}

	for _, condition := range conditions {
		if !d.evaluate(condition, bar, indicators) {
			return false
		}
	}

	return true
}

// evaluate returns false whenever an operand is unavailable (warmup).
func (d *Declarative) evaluate(condition Condition, bar types.Bar, indicators map[string]types.IndicatorValue) bool {
	switch condition.Type {
	case ConditionCrossover, ConditionCrossunder:
		fastNow := resolveOperand(condition.Fast, bar, indicators)
		slowNow := resolveOperand(condition.Slow, bar, indicators)
		fastPrev := resolveOperand(condition.Fast, bar, d.prevValues)
		slowPrev := resolveOperand(condition.Slow, bar, d.prevValues)

		if fastNow.IsNone() || slowNow.IsNone() || fastPrev.IsNone() || slowPrev.IsNone() {
			return false
		}

		if condition.Type == ConditionCrossunder {
			return fastNow.Unwrap() < slowNow.Unwrap() && fastPrev.Unwrap() >= slowPrev.Unwrap()
		}

		return fastNow.Unwrap() > slowNow.Unwrap() && fastPrev.Unwrap() <= slowPrev.Unwrap()

	case ConditionAbove, ConditionBelow:
		left := resolveOperand(condition.Left, bar, indicators)
		right := resolveOperand(condition.Right, bar, indicators)

		if left.IsNone() || right.IsNone() {
			return false
		}

		if condition.Type == ConditionAbove {
			return left.Unwrap() > right.Unwrap()
		}

		return left.Unwrap() < right.Unwrap()

	case ConditionAboveThreshold:
		current := resolveOperand(condition.Indicator, bar, indicators)

		return current.IsSome() && current.Unwrap() > condition.Threshold

	case ConditionBelowThreshold:
		current := resolveOperand(condition.Indicator, bar, indicators)

		return current.IsSome() && current.Unwrap() <= condition.Threshold

	case ConditionCrossesAbove:
		current := resolveOperand(condition.Indicator, bar, indicators)
		previous := resolveOperand(condition.Indicator, bar, d.prevValues)

		return current.IsSome() && previous.IsSome() &&
			current.Unwrap() > condition.Threshold && previous.Unwrap() <= condition.Threshold

	case ConditionCrossesBelow:
		current := resolveOperand(condition.Indicator, bar, indicators)
		previous := resolveOperand(condition.Indicator, bar, d.prevValues)

		return current.IsSome() && previous.IsSome() &&
			current.Unwrap() < condition.Threshold && previous.Unwrap() >= condition.Threshold
	}

	return false
}

// resolveOperand maps an operand name to a number: bar pseudo fields,
// numeric literals, scalar indicators, or dotted record fields.
func resolveOperand(name string, bar types.Bar, indicators map[string]types.IndicatorValue) optional.Option[float64] {
	if field, ok := strings.CutPrefix(name, "bar."); ok {
		switch field {
		case "open", "high", "low", "close":
			return optional.Some(bar.Source(field))
		default:
			return optional.None[float64]()
		}
	}

	if literal, err := strconv.ParseFloat(name, 64); err == nil {
		return optional.Some(literal)
	}

	indicatorName := name
	fieldName := ""

	if dot := strings.LastIndex(name, "."); dot >= 0 {
		indicatorName = name[:dot]
		fieldName = name[dot+1:]
	}

	value, ok := indicators[indicatorName]
	if !ok {
		return optional.None[float64]()
	}

	if fieldName != "" {
		if field, ok := value.Field(fieldName); ok {
			return optional.Some(field)
		}

		return optional.None[float64]()
	}

	if scalar, ok := value.Scalar(); ok {
		return optional.Some(scalar)
	}

	return optional.None[float64]()
}
