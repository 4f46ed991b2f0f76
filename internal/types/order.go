package types

import (
	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"

	"github.com/replaylab/replay-trading/pkg/errors"
)

type Side string

type OrderKind string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

const (
	OrderKindMarket OrderKind = "MARKET"
	OrderKindLimit  OrderKind = "LIMIT"
	OrderKindStop   OrderKind = "STOP"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}

	return SideLong
}

// Order is the value a strategy emits to request an entry. All exit
// management fields are optional and independent; levels are derived from
// the fill price (or the new average entry on merge fills).
type Order struct {
	Side   Side   `yaml:"side" json:"side" validate:"required,oneof=LONG SHORT"`
	Symbol string `yaml:"symbol" json:"symbol"`
	// Group partitions positions so max-positions can be enforced per label.
	Group string `yaml:"group" json:"group"`
	// SizeUSD overrides the engine's default size / sizer when set.
	SizeUSD optional.Option[float64] `yaml:"size_usd" json:"size_usd"`

	TakeProfitPct      optional.Option[float64] `yaml:"tp_pct" json:"tp_pct"`
	StopLossPct        optional.Option[float64] `yaml:"sl_pct" json:"sl_pct"`
	BreakevenTrigger   optional.Option[float64] `yaml:"be_trigger_pct" json:"be_trigger_pct"`
	BreakevenLock      optional.Option[float64] `yaml:"be_lock_pct" json:"be_lock_pct"`
	TrailPct           optional.Option[float64] `yaml:"trail_pct" json:"trail_pct"`
	TrailActivationPct optional.Option[float64] `yaml:"trail_activation_pct" json:"trail_activation_pct"`
	PartialTPPct       optional.Option[float64] `yaml:"partial_tp_pct" json:"partial_tp_pct"`
	PartialTPNewTPPct  optional.Option[float64] `yaml:"partial_tp_new_tp_pct" json:"partial_tp_new_tp_pct"`

	// CancelPendingLimits clears the limit queue before this order is queued.
	CancelPendingLimits bool `yaml:"cancel_pending_limits" json:"cancel_pending_limits"`

	// Limit-only fields.
	LimitPrice  float64 `yaml:"limit_price" json:"limit_price"`
	TimeoutBars int     `yaml:"timeout_bars" json:"timeout_bars" validate:"gte=0"`
	UseMakerFee bool    `yaml:"use_maker_fee" json:"use_maker_fee"`
	// MinPositions gates a limit fill until at least that many positions exist.
	MinPositions int `yaml:"min_positions" json:"min_positions" validate:"gte=0"`
	// MergePosition folds the fill into an existing same-symbol same-side
	// position instead of opening a new one.
	MergePosition bool `yaml:"merge_position" json:"merge_position"`

	// Stop-only field.
	StopPrice float64 `yaml:"stop_price" json:"stop_price"`

	kind OrderKind
}

// MarketOrder builds a MARKET order.
func MarketOrder(side Side) Order {
	return Order{Side: side, kind: OrderKindMarket}
}

// LimitOrder builds a LIMIT order at the given price. Maker fee applies
// unless disabled via o.UseMakerFee.
func LimitOrder(side Side, limitPrice float64) Order {
	return Order{Side: side, kind: OrderKindLimit, LimitPrice: limitPrice, UseMakerFee: true}
}

// StopOrder builds a STOP entry order at the given trigger price.
func StopOrder(side Side, stopPrice float64) Order {
	return Order{Side: side, kind: OrderKindStop, StopPrice: stopPrice}
}

// CancelPendingLimitsOrder builds the sentinel that clears the pending
// limit queue without placing a new order. IsSentinel reports it.
func CancelPendingLimitsOrder() Order {
	return Order{CancelPendingLimits: true}
}

// IsSentinel reports whether the order only carries the cancel flag and
// places nothing.
func (o Order) IsSentinel() bool {
	return o.Side == ""
}

// OrderKind reports the order variant. Zero-value orders are MARKET.
func (o Order) OrderKind() OrderKind {
	if o.kind == "" {
		return OrderKindMarket
	}

	return o.kind
}

// Validate fails fast on contradictory exit configuration.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	if o.OrderKind() == OrderKindLimit && o.LimitPrice <= 0 {
		return errors.Newf(errors.ErrCodeInvalidOrder, "limit order requires a positive limit price, got %f", o.LimitPrice)
	}

	if o.OrderKind() == OrderKindStop && o.StopPrice <= 0 {
		return errors.Newf(errors.ErrCodeInvalidOrder, "stop order requires a positive stop price, got %f", o.StopPrice)
	}

	if o.BreakevenTrigger.IsSome() && o.BreakevenLock.IsSome() {
		if o.BreakevenLock.Unwrap() >= o.BreakevenTrigger.Unwrap() {
			return errors.Newf(errors.ErrCodeInvalidOrder,
				"be_lock_pct %f must be below be_trigger_pct %f",
				o.BreakevenLock.Unwrap(), o.BreakevenTrigger.Unwrap())
		}
	}

	if o.PartialTPPct.IsSome() {
		frac := o.PartialTPPct.Unwrap()
		if frac <= 0 || frac >= 1 {
			return errors.Newf(errors.ErrCodeInvalidOrder, "partial_tp_pct must be in (0,1), got %f", frac)
		}
	}

	for name, opt := range map[string]optional.Option[float64]{
		"tp_pct":               o.TakeProfitPct,
		"sl_pct":               o.StopLossPct,
		"be_trigger_pct":       o.BreakevenTrigger,
		"be_lock_pct":          o.BreakevenLock,
		"trail_pct":            o.TrailPct,
		"trail_activation_pct": o.TrailActivationPct,
	} {
		if opt.IsSome() && opt.Unwrap() < 0 {
			return errors.Newf(errors.ErrCodeInvalidOrder, "%s must be non-negative, got %f", name, opt.Unwrap())
		}
	}

	return nil
}

// PendingOrder is an engine-internal queued order with its age counter.
type PendingOrder struct {
	Order       Order
	BarsElapsed int
}

// Expired reports whether the order's timeout has elapsed.
func (p *PendingOrder) Expired() bool {
	return p.Order.TimeoutBars > 0 && p.BarsElapsed >= p.Order.TimeoutBars
}
