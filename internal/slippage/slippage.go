// Package slippage turns fill statistics into price impact figures.
package slippage

import (
	"github.com/amirphl/depthbook/internal/orderbook"
)

// Estimate is the cost of taking Quantity from one side of a book.
type Estimate struct {
	Side     string               `json:"side"`
	Quantity float64              `json:"quantity"`
	Buffer   float64              `json:"buffer"`
	Stats    orderbook.PriceStats `json:"stats"`
	// Bps is the average fill price against the best filled price, in basis
	// points. Nil when nothing was filled.
	Bps *float64 `json:"slippage_bps"`
}

// impact in bps of avg against ref; positive means avg is worse than ref for
// a taker hitting side.
func impact(side orderbook.Side, avg, ref float64) (float64, bool) {
	if ref <= 0 {
		return 0, false
	}
	diff := avg - ref
	if side == orderbook.Bids {
		diff = ref - avg
	}
	return diff / ref * 10000.0, true
}

// Bps is the slippage of the fill's average price versus its best price.
func Bps(stats orderbook.PriceStats, side orderbook.Side) (float64, bool) {
	if stats.Average == nil || stats.Best == nil {
		return 0, false
	}
	return impact(side, *stats.Average, *stats.Best)
}

// VersusMid is the slippage of the fill's average price versus mid.
func VersusMid(stats orderbook.PriceStats, side orderbook.Side, mid float64) (float64, bool) {
	if stats.Average == nil {
		return 0, false
	}
	return impact(side, *stats.Average, mid)
}

// Mid is the midpoint of the best bid and the best ask.
func Mid(bids, asks *orderbook.SideOrderBook) (float64, bool) {
	bid, ok := bids.Best()
	if !ok {
		return 0, false
	}
	ask, ok := asks.Best()
	if !ok {
		return 0, false
	}
	return (bid.Price + ask.Price) / 2, true
}

// Quote prices quantity on book after skipping buffer.
func Quote(book *orderbook.SideOrderBook, quantity, buffer float64) (Estimate, error) {
	stats, err := book.GetPriceStats(quantity, buffer)
	if err != nil {
		return Estimate{}, err
	}
	est := Estimate{
		Side:     book.Side().String(),
		Quantity: quantity,
		Buffer:   buffer,
		Stats:    stats,
	}
	if bps, ok := Bps(stats, book.Side()); ok {
		est.Bps = &bps
	}
	return est, nil
}
