// Package orderbook models one side (bids or asks) of a limit order book and
// answers depth and fill-price queries over it.
//
// A SideOrderBook is not safe for concurrent use. Callers that share a book
// between goroutines must serialize every call.
package orderbook

import (
	"fmt"
	"iter"
	"maps"
	"math"
	"slices"

	"github.com/amirphl/depthbook/internal/levels"
	"go.uber.org/zap"
)

var (
	ErrNotFound        = levels.ErrNotFound
	ErrInvalidArgument = levels.ErrInvalidArgument
)

// PriceLevel is a price and the quantity resting at it.
type PriceLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// PriceStats is the outcome of walking the book for a target quantity.
// Average, Best and Worst are nil when nothing was filled.
type PriceStats struct {
	Average       *float64 `json:"average"`
	Best          *float64 `json:"best"`
	Worst         *float64 `json:"worst"`
	TotalQty      float64  `json:"total_qty"`
	DepthExceeded bool     `json:"depth_exceeded"`
}

// Filled reports whether any quantity was filled.
func (s PriceStats) Filled() bool {
	return s.TotalQty > 0
}

type Option func(*SideOrderBook)

// WithLogger sets the logger used for depth-exceeded warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(b *SideOrderBook) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// SideOrderBook is one side of an order book keyed by price.
type SideOrderBook struct {
	side   Side
	levels *levels.Levels
	meta   map[string]any
	logger *zap.Logger
}

// New creates a book for side holding a copy of initial. meta is kept as-is
// for caller annotations and never interpreted.
func New(side Side, initial map[float64]float64, meta map[string]any, opts ...Option) (*SideOrderBook, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("%w: side must be bids or asks, got %s", ErrInvalidArgument, side)
	}
	lv, err := levels.New(initial)
	if err != nil {
		return nil, fmt.Errorf("initial levels: %w", err)
	}
	if meta == nil {
		meta = make(map[string]any)
	}
	b := &SideOrderBook{
		side:   side,
		levels: lv,
		meta:   meta,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *SideOrderBook) Side() Side           { return b.side }
func (b *SideOrderBook) IsBids() bool         { return b.side == Bids }
func (b *SideOrderBook) Meta() map[string]any { return b.meta }
func (b *SideOrderBook) Len() int             { return b.levels.Len() }

func (b *SideOrderBook) Get(price float64) (float64, bool) {
	return b.levels.Get(price)
}

func (b *SideOrderBook) Set(price, quantity float64) error {
	return b.levels.Set(price, quantity)
}

// Delete removes the level at price, failing with ErrNotFound when absent.
func (b *SideOrderBook) Delete(price float64) error {
	return b.levels.Delete(price)
}

func (b *SideOrderBook) Update(batch map[float64]float64) error {
	return b.levels.Update(batch)
}

func (b *SideOrderBook) Clear() {
	b.levels.Clear()
}

// Prices yields prices in ascending or descending order regardless of side.
func (b *SideOrderBook) Prices(ascending bool) iter.Seq[float64] {
	return b.levels.Prices(ascending)
}

// Purge removes every level whose quantity is exactly zero and returns how
// many were removed.
func (b *SideOrderBook) Purge() int {
	var zero []float64
	for price, qty := range b.levels.All(true) {
		if qty == 0 {
			zero = append(zero, price)
		}
	}
	for _, price := range zero {
		// collected above, cannot be missing
		_ = b.levels.Delete(price)
	}
	return len(zero)
}

// bestFirst walks levels from the best price toward the worst.
func (b *SideOrderBook) bestFirst() iter.Seq2[float64, float64] {
	return b.levels.All(!b.IsBids())
}

// Best returns the top-of-book level, zero-quantity levels included.
func (b *SideOrderBook) Best() (PriceLevel, bool) {
	var (
		price, qty float64
		ok         bool
	)
	if b.IsBids() {
		price, qty, ok = b.levels.Max()
	} else {
		price, qty, ok = b.levels.Min()
	}
	return PriceLevel{Price: price, Quantity: qty}, ok
}

// Depth is the total quantity on this side.
func (b *SideOrderBook) Depth() float64 {
	return b.GetQuantity(nil, nil)
}

// Levels returns up to n levels best first. n <= 0 returns all of them.
func (b *SideOrderBook) Levels(n int) []PriceLevel {
	size := b.Len()
	if n > 0 && n < size {
		size = n
	}
	out := make([]PriceLevel, 0, size)
	for price, qty := range b.bestFirst() {
		if len(out) == size {
			break
		}
		out = append(out, PriceLevel{Price: price, Quantity: qty})
	}
	return out
}

// Snapshot copies the levels into a plain map.
func (b *SideOrderBook) Snapshot() map[float64]float64 {
	return maps.Collect(b.levels.All(true))
}

// GetQuantity sums the quantity between worstPrice and bestPrice, inclusive.
// For bids the worst price is the lower limit; for asks it is the upper one.
// A nil price leaves that end of the range open; a NaN price gives zero.
func (b *SideOrderBook) GetQuantity(worstPrice, bestPrice *float64) float64 {
	low, high := bestPrice, worstPrice
	if b.IsBids() {
		low, high = worstPrice, bestPrice
	}
	var total float64
	for _, qty := range b.levels.RangeLevels(low, high) {
		total += qty
	}
	return total
}

// GetPriceStats simulates filling quantity from the best price toward worse
// ones, after first skipping buffer units from the top of the book. When the
// book runs out first the result holds what was filled and DepthExceeded is set.
func (b *SideOrderBook) GetPriceStats(quantity, buffer float64) (PriceStats, error) {
	if math.IsNaN(quantity) || quantity < 0 {
		return PriceStats{}, fmt.Errorf("%w: quantity %v", ErrInvalidArgument, quantity)
	}
	if math.IsNaN(buffer) || buffer < 0 {
		return PriceStats{}, fmt.Errorf("%w: buffer %v", ErrInvalidArgument, buffer)
	}

	var stats PriceStats
	if quantity == 0 {
		return stats, nil
	}

	var (
		amount       float64
		best, worst  float64
		bufferRemain = buffer
		remain       = quantity
		done         bool
	)
	for price, qty := range b.bestFirst() {
		if bufferRemain > 0 {
			if qty <= bufferRemain {
				bufferRemain -= qty
				continue
			}
			qty -= bufferRemain
			bufferRemain = 0
		}
		if qty == 0 {
			continue
		}

		take := min(remain, qty)
		if stats.TotalQty == 0 {
			best = price
		}
		worst = price
		amount += price * take
		stats.TotalQty += take
		remain -= take

		if remain <= 0 {
			done = true
			break
		}
	}

	if !done {
		stats.DepthExceeded = true
		b.logger.Warn("OrderBook | quantity exceeded orderbook depth",
			zap.Stringer("side", b.side),
			zap.Float64("quantity", quantity),
			zap.Float64("buffer", buffer),
			zap.Float64("filled", stats.TotalQty),
		)
	}

	if stats.TotalQty > 0 {
		avg := amount / stats.TotalQty
		stats.Average = &avg
		stats.Best = &best
		stats.Worst = &worst
	}
	return stats, nil
}

func (b *SideOrderBook) String() string {
	top := "empty"
	if lvl, ok := b.Best(); ok {
		top = fmt.Sprintf("best=%v@%v", lvl.Quantity, lvl.Price)
	}
	keys := slices.Sorted(maps.Keys(b.meta))
	return fmt.Sprintf("SideOrderBook(%s, levels=%d, %s, meta=%v)", b.side, b.Len(), top, keys)
}
