package backtest

import (
	"github.com/replaylab/replay-trading/internal/types"
)

// Subscription identifies a registered listener for removal.
type Subscription int

type barListener struct {
	id Subscription
	fn func(types.Bar)
}

type fillListener struct {
	id Subscription
	fn func(types.Fill)
}

type exitListener struct {
	id Subscription
	fn func(types.Trade)
}

type signalListener struct {
	id Subscription
	fn func(types.Order)
}

// EventBus fans engine events out to ordered listener lists. Listeners
// run synchronously in registration order.
type EventBus struct {
	nextID Subscription

	bar    []barListener
	fill   []fillListener
	exit   []exitListener
	signal []signalListener
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// OnBar subscribes to every processed bar.
func (b *EventBus) OnBar(fn func(types.Bar)) Subscription {
	b.nextID++
	b.bar = append(b.bar, barListener{id: b.nextID, fn: fn})

	return b.nextID
}

// OnFill subscribes to entry and merge fills.
func (b *EventBus) OnFill(fn func(types.Fill)) Subscription {
	b.nextID++
	b.fill = append(b.fill, fillListener{id: b.nextID, fn: fn})

	return b.nextID
}

// OnExit subscribes to closed (or partially closed) trades.
func (b *EventBus) OnExit(fn func(types.Trade)) Subscription {
	b.nextID++
	b.exit = append(b.exit, exitListener{id: b.nextID, fn: fn})

	return b.nextID
}

// OnSignal subscribes to orders queued by the strategy.
func (b *EventBus) OnSignal(fn func(types.Order)) Subscription {
	b.nextID++
	b.signal = append(b.signal, signalListener{id: b.nextID, fn: fn})

	return b.nextID
}

// Remove unsubscribes a listener by its subscription identity.
func (b *EventBus) Remove(sub Subscription) {
	for i, l := range b.bar {
		if l.id == sub {
			b.bar = append(b.bar[:i], b.bar[i+1:]...)

			return
		}
	}

	for i, l := range b.fill {
		if l.id == sub {
			b.fill = append(b.fill[:i], b.fill[i+1:]...)

			return
		}
	}

	for i, l := range b.exit {
		if l.id == sub {
			b.exit = append(b.exit[:i], b.exit[i+1:]...)

			return
		}
	}

	for i, l := range b.signal {
		if l.id == sub {
			b.signal = append(b.signal[:i], b.signal[i+1:]...)

			return
		}
	}
}

func (b *EventBus) emitBar(bar types.Bar) {
	for _, l := range b.bar {
		l.fn(bar)
	}
}

func (b *EventBus) emitFill(fill types.Fill) {
	for _, l := range b.fill {
		l.fn(fill)
	}
}

func (b *EventBus) emitExit(trade types.Trade) {
	for _, l := range b.exit {
		l.fn(trade)
	}
}

func (b *EventBus) emitSignal(order types.Order) {
	for _, l := range b.signal {
		l.fn(order)
	}
}
