// Package generate builds synthetic order book data for tests and benchmarks.
package generate

import (
	"math/rand/v2"

	"github.com/amirphl/depthbook/internal/orderbook"
)

// Bounds is a half-open [Lo, Hi) interval.
type Bounds struct {
	Lo, Hi float64
}

var (
	DefaultPriceBounds = Bounds{Lo: 0, Hi: 1000}
	DefaultQtyBounds   = Bounds{Lo: 5, Hi: 10}
)

func (b Bounds) sample(rng *rand.Rand) float64 {
	return b.Lo + (b.Hi-b.Lo)*rng.Float64()
}

// Ladder returns {100 + 10a: a + 1} for a in [0, size).
func Ladder(size int) map[float64]float64 {
	out := make(map[float64]float64, max(size, 0))
	for a := 0; a < size; a++ {
		out[100+float64(a)*10] = float64(a) + 1
	}
	return out
}

// Orders draws size random price levels. Colliding prices collapse, so the
// result may hold fewer than size entries.
func Orders(rng *rand.Rand, size int, price, qty Bounds) map[float64]float64 {
	out := make(map[float64]float64, max(size, 0))
	for i := 0; i < size; i++ {
		out[price.sample(rng)] = qty.sample(rng)
	}
	return out
}

// NewRand returns a deterministic generator for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Books builds a bids and an asks book over the same ladder.
func Books(size int, opts ...orderbook.Option) (*orderbook.SideOrderBook, *orderbook.SideOrderBook, error) {
	data := Ladder(size)
	bids, err := orderbook.New(orderbook.Bids, data, map[string]any{"source": "synthetic"}, opts...)
	if err != nil {
		return nil, nil, err
	}
	asks, err := orderbook.New(orderbook.Asks, data, map[string]any{"source": "synthetic"}, opts...)
	if err != nil {
		return nil, nil, err
	}
	return bids, asks, nil
}
