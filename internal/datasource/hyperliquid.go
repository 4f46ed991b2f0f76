package datasource

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/replaylab/replay-trading/internal/logger"
	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

const hyperliquidWSURL = "wss://api.hyperliquid.xyz/ws"

// HyperliquidProvider streams live 1m candles over a websocket. A reader
// goroutine (the producer path) pushes completed candles into a buffered
// channel that Next drains; the engine stays single-threaded.
//
// The exchange re-sends the in-progress candle on every trade, so a
// candle is only emitted once a candle with a newer open time arrives.
type HyperliquidProvider struct {
	symbol string
	log    *logger.Logger

	conn   *websocket.Conn
	cancel context.CancelFunc
	bars   chan types.Bar
}

type hyperliquidSubscription struct {
	Method       string `json:"method"`
	Subscription struct {
		Type     string `json:"type"`
		Coin     string `json:"coin"`
		Interval string `json:"interval"`
	} `json:"subscription"`
}

type hyperliquidMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type hyperliquidCandle struct {
	OpenTime int64  `json:"t"`
	Open     string `json:"o"`
	High     string `json:"h"`
	Low      string `json:"l"`
	Close    string `json:"c"`
	Volume   string `json:"v"`
}

// NewHyperliquidProvider connects, subscribes to the symbol's 1m candle
// channel, and starts the reader goroutine.
func NewHyperliquidProvider(ctx context.Context, symbol string, log *logger.Logger) (*HyperliquidProvider, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, hyperliquidWSURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeProviderConnection, "failed to connect to hyperliquid", err)
	}

	sub := hyperliquidSubscription{Method: "subscribe"}
	sub.Subscription.Type = "candle"
	sub.Subscription.Coin = symbol
	sub.Subscription.Interval = "1m"

	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()

		return nil, errors.Wrap(errors.ErrCodeProviderConnection, "failed to subscribe", err)
	}

	readerCtx, cancel := context.WithCancel(ctx)

	provider := &HyperliquidProvider{
		symbol: symbol,
		log:    log,
		conn:   conn,
		cancel: cancel,
		bars:   make(chan types.Bar, 256),
	}

	go provider.readLoop(readerCtx)

	return provider, nil
}

func (h *HyperliquidProvider) readLoop(ctx context.Context) {
	defer close(h.bars)

	pending := optional.None[types.Bar]()

	for {
		if ctx.Err() != nil {
			return
		}

		var message hyperliquidMessage
		if err := h.conn.ReadJSON(&message); err != nil {
			h.log.Warn("hyperliquid read failed", zap.Error(err))

			return
		}

		if message.Channel != "candle" {
			continue
		}

		var candle hyperliquidCandle
		if err := json.Unmarshal(message.Data, &candle); err != nil {
			h.log.Warn("unparseable candle", zap.Error(err))

			continue
		}

		bar, err := h.candleToBar(candle)
		if err != nil {
			h.log.Warn("dropping bad candle", zap.Error(err))

			continue
		}

		// Same open time: the in-progress candle updated in place.
		if pending.IsSome() && pending.Unwrap().Timestamp.Before(bar.Timestamp) {
			select {
			case h.bars <- pending.Unwrap():
			case <-ctx.Done():
				return
			}
		}

		pending = optional.Some(bar)
	}
}

func (h *HyperliquidProvider) candleToBar(candle hyperliquidCandle) (types.Bar, error) {
	parse := func(field, value string) (float64, error) {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, errors.Wrapf(errors.ErrCodeFetchFailed, err, "failed to parse %s", field)
		}

		return f, nil
	}

	open, err := parse("open", candle.Open)
	if err != nil {
		return types.Bar{}, err
	}

	high, err := parse("high", candle.High)
	if err != nil {
		return types.Bar{}, err
	}

	low, err := parse("low", candle.Low)
	if err != nil {
		return types.Bar{}, err
	}

	closePrice, err := parse("close", candle.Close)
	if err != nil {
		return types.Bar{}, err
	}

	volume, err := parse("volume", candle.Volume)
	if err != nil {
		return types.Bar{}, err
	}

	return types.Bar{
		Timestamp: time.UnixMilli(candle.OpenTime).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		Symbol:    h.symbol,
		TimeFrame: types.TimeFrame1m,
	}, nil
}

// Next blocks until the next completed candle arrives. Returns None when
// the stream closes.
func (h *HyperliquidProvider) Next() (optional.Option[types.Bar], error) {
	bar, ok := <-h.bars
	if !ok {
		return optional.None[types.Bar](), nil
	}

	return optional.Some(bar), nil
}

// Reset is not supported for live streams.
func (h *HyperliquidProvider) Reset() error {
	return errors.New(errors.ErrCodeResetNotSupported, "live provider cannot rewind")
}

// Symbol implements Provider.
func (h *HyperliquidProvider) Symbol() string {
	return h.symbol
}

// TimeFrame implements Provider.
func (h *HyperliquidProvider) TimeFrame() types.TimeFrame {
	return types.TimeFrame1m
}

// Close stops the reader and closes the connection.
func (h *HyperliquidProvider) Close() error {
	h.cancel()

	return h.conn.Close()
}
