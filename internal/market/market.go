// Package market
package market

import (
	"fmt"
	"time"

	"github.com/amirphl/depthbook/internal/orderbook"
)

// OrderBook represents an L2 snapshot for one symbol, keyed by price.
type OrderBook struct {
	Symbol    string
	Source    string
	Bids      map[float64]float64
	Asks      map[float64]float64
	Timestamp time.Time
}

// Levels returns the price map for side.
func (ob OrderBook) Levels(side orderbook.Side) map[float64]float64 {
	if side == orderbook.Bids {
		return ob.Bids
	}
	return ob.Asks
}

// Book builds a side order book from the snapshot.
func (ob OrderBook) Book(side orderbook.Side, opts ...orderbook.Option) (*orderbook.SideOrderBook, error) {
	meta := map[string]any{
		"symbol":    ob.Symbol,
		"source":    ob.Source,
		"timestamp": ob.Timestamp,
	}
	book, err := orderbook.New(side, ob.Levels(side), meta, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s %s book: %w", ob.Symbol, side, err)
	}
	return book, nil
}
