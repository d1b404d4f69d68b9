package exchange

import (
	"context"
	"time"

	"github.com/amirphl/depthbook/internal/generate"
	"github.com/amirphl/depthbook/internal/market"
)

// SyntheticExchange serves the reference ladder instead of live depth.
type SyntheticExchange struct {
	size int
}

func NewSyntheticExchange(size int) *SyntheticExchange {
	return &SyntheticExchange{size: size}
}

func (s *SyntheticExchange) Name() string {
	return "synthetic"
}

func (s *SyntheticExchange) FetchOrderBook(ctx context.Context, symbol string) (market.OrderBook, error) {
	if err := ctx.Err(); err != nil {
		return market.OrderBook{}, err
	}
	return market.OrderBook{
		Symbol:    symbol,
		Source:    s.Name(),
		Bids:      generate.Ladder(s.size),
		Asks:      generate.Ladder(s.size),
		Timestamp: time.Now().UTC(),
	}, nil
}
