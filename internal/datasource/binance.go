package datasource

import (
	"context"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"go.uber.org/zap"

	"github.com/replaylab/replay-trading/internal/logger"
	"github.com/replaylab/replay-trading/internal/types"
	"github.com/replaylab/replay-trading/pkg/errors"
)

// binancePageLimit is the kline page size the exchange serves.
const binancePageLimit = 1000

// BinanceProvider downloads a historical 1m kline range once, then
// serves it as a restartable bar stream.
type BinanceProvider struct {
	*SliceProvider
}

// NewBinanceProvider fetches [start, end] for the symbol with paginated
// kline requests. API keys are optional for public market data.
func NewBinanceProvider(ctx context.Context, symbol string, start, end time.Time, apiKey, secretKey string, log *logger.Logger) (*BinanceProvider, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	client := binance.NewClient(apiKey, secretKey)

	bars, err := fetchKlines(ctx, client, symbol, start, end, log)
	if err != nil {
		return nil, err
	}

	return &BinanceProvider{
		SliceProvider: NewSliceProvider(bars, symbol, types.TimeFrame1m),
	}, nil
}

func fetchKlines(ctx context.Context, client *binance.Client, symbol string, start, end time.Time, log *logger.Logger) ([]types.Bar, error) {
	var bars []types.Bar

	currentStart := start.UnixMilli()
	endMillis := end.UnixMilli()

	for {
		klines, err := client.NewKlinesService().
			Symbol(symbol).
			Interval("1m").
			StartTime(currentStart).
			EndTime(endMillis).
			Limit(binancePageLimit).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeFetchFailed, err, "failed to fetch %s klines", symbol)
		}

		for _, kline := range klines {
			bar, err := klineToBar(kline, symbol)
			if err != nil {
				return nil, err
			}

			bars = append(bars, bar)
		}

		log.Debug("fetched kline page",
			zap.String("symbol", symbol),
			zap.Int("bars", len(bars)),
		)

		// Short page means we reached the end of the range.
		if len(klines) < binancePageLimit {
			break
		}

		currentStart = klines[len(klines)-1].CloseTime + 1
		if currentStart > endMillis {
			break
		}
	}

	return bars, nil
}

func klineToBar(kline *binance.Kline, symbol string) (types.Bar, error) {
	open, err := strconv.ParseFloat(kline.Open, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeFetchFailed, "failed to parse open", err)
	}

	high, err := strconv.ParseFloat(kline.High, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeFetchFailed, "failed to parse high", err)
	}

	low, err := strconv.ParseFloat(kline.Low, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeFetchFailed, "failed to parse low", err)
	}

	closePrice, err := strconv.ParseFloat(kline.Close, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeFetchFailed, "failed to parse close", err)
	}

	volume, err := strconv.ParseFloat(kline.Volume, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeFetchFailed, "failed to parse volume", err)
	}

	return types.Bar{
		Timestamp: time.UnixMilli(kline.OpenTime).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		Symbol:    symbol,
		TimeFrame: types.TimeFrame1m,
	}, nil
}
