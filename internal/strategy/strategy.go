package strategy

import (
	"github.com/moznion/go-optional"

	"github.com/replaylab/replay-trading/internal/types"
)

// ExitInstruction is one strategy-requested exit: the index into the
// positions slice the strategy was shown, the raw exit price (slippage is
// still applied), the reason, and an optional fraction for partial closes.
type ExitInstruction struct {
	PositionIndex int
	Price         float64
	Reason        types.ExitReason
	Fraction      optional.Option[float64]
}

// Strategy is the engine-facing callback set. OnBar is the only method a
// strategy must implement meaningfully; embed Base to inherit no-op
// implementations of the rest.
//
// The engine calls OnBar once per completed bar. Orders returned from any
// callback execute through the pending queues, never immediately; the
// strategy cannot bypass the four-phase loop.
type Strategy interface {
	// Name identifies the strategy in logs and results.
	Name() string
	// Configure is called once before a run with the raw YAML strategy
	// configuration. Configuration errors abort the run.
	Configure(config string) error
	// OnBar is called with each completed bar, the current indicator
	// values (derived from strictly earlier bars), and borrowed position
	// views. Returned orders are queued for the next bar.
	OnBar(bar types.Bar, indicators map[string]types.IndicatorValue, positions []types.Position) ([]types.Order, error)
	// OnFill is called after every entry or merge fill.
	OnFill(fill types.Fill) ([]types.Order, error)
	// OnExit is called after each close or partial close.
	OnExit(fill types.Fill, trade types.Trade) ([]types.Order, error)
	// CheckExits lets the strategy close positions at phase 3. Indices
	// refer to the positions slice passed in.
	CheckExits(bar types.Bar, positions []types.Position) ([]ExitInstruction, error)
}

// Base provides no-op implementations of the optional callbacks.
type Base struct{}

func (Base) Configure(string) error {
	return nil
}

func (Base) OnFill(types.Fill) ([]types.Order, error) {
	return nil, nil
}

func (Base) OnExit(types.Fill, types.Trade) ([]types.Order, error) {
	return nil, nil
}

func (Base) CheckExits(types.Bar, []types.Position) ([]ExitInstruction, error) {
	return nil, nil
}
