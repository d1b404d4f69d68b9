// Package exchange
package exchange

import (
	"context"

	"github.com/amirphl/depthbook/internal/market"
	wallex "github.com/wallexchange/wallex-go"
)

// Exchange is the interface for order book snapshot sources.
type Exchange interface {
	Name() string
	FetchOrderBook(ctx context.Context, symbol string) (market.OrderBook, error)
}

// DepthSource is the part of the Wallex REST client the exchange needs.
type DepthSource interface {
	MarketOrders(symbol string) ([]*wallex.MarketOrder, []*wallex.MarketOrder, error)
}
