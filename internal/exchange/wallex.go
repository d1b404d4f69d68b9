// Package exchange
package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/depthbook/internal/market"
	"github.com/amirphl/depthbook/internal/notifier"
	wallex "github.com/wallexchange/wallex-go"
	"go.uber.org/zap"
)

const maxBackoff = 5 * time.Minute

type WallexExchange struct {
	source   DepthSource
	notifier notifier.Notifier
	logger   *zap.Logger
	attempts int
	delay    time.Duration
}

type WallexOption func(*WallexExchange)

// WithDepthSource replaces the REST client.
func WithDepthSource(src DepthSource) WallexOption {
	return func(w *WallexExchange) { w.source = src }
}

func WithRetry(attempts int, delay time.Duration) WallexOption {
	return func(w *WallexExchange) {
		w.attempts = attempts
		w.delay = delay
	}
}

func WithExchangeLogger(logger *zap.Logger) WallexOption {
	return func(w *WallexExchange) { w.logger = logger }
}

func NewWallexExchange(apiKey string, n notifier.Notifier, opts ...WallexOption) *WallexExchange {
	w := &WallexExchange{
		source:   wallex.New(wallex.ClientOptions{APIKey: apiKey}),
		notifier: n,
		logger:   zap.NewNop(),
		attempts: 3,
		delay:    2 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WallexExchange) Name() string {
	return "wallex"
}

// retry wraps fn with exponential backoff capped at five minutes.
func retry(ctx context.Context, logger *zap.Logger, attempts int, delay time.Duration, fn func() error) error {
	backoff := delay
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		logger.Warn("Exchange | Wallex retry attempt failed",
			zap.Int("attempt", i),
			zap.Int("attempts", attempts),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
	return fmt.Errorf("all retry attempts failed: %w", err)
}

// FetchOrderBook retrieves the current order book for a symbol.
func (w *WallexExchange) FetchOrderBook(ctx context.Context, symbol string) (market.OrderBook, error) {
	if err := ctx.Err(); err != nil {
		w.logger.Warn("Exchange | FetchOrderBook cancelled", zap.String("exchange", w.Name()))
		return market.OrderBook{}, err
	}

	var asks, bids []*wallex.MarketOrder
	err := retry(ctx, w.logger, w.attempts, w.delay, func() error {
		var err error
		asks, bids, err = w.source.MarketOrders(NormalizeSymbol(symbol))
		if err != nil {
			return fmt.Errorf("fetching orderbook: %w", err)
		}
		return nil
	})
	if err != nil {
		if w.notifier != nil {
			if nerr := w.notifier.Send(ctx, fmt.Sprintf("Wallex orderbook %s failed: %v", symbol, err)); nerr != nil {
				w.logger.Warn("Exchange | notify failed", zap.Error(nerr))
			}
		}
		return market.OrderBook{}, fmt.Errorf("orderbook failed: %w", err)
	}

	askLevels, skippedAsks := levelsFromMarketOrders(asks)
	bidLevels, skippedBids := levelsFromMarketOrders(bids)
	if skipped := skippedAsks + skippedBids; skipped > 0 {
		w.logger.Warn("Exchange | skipped unparsable depth rows",
			zap.String("symbol", symbol),
			zap.Int("skipped", skipped),
		)
	}

	return market.OrderBook{
		Symbol:    symbol,
		Source:    w.Name(),
		Bids:      bidLevels,
		Asks:      askLevels,
		Timestamp: time.Now().UTC(),
	}, nil
}
